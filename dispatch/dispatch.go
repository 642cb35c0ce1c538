// Package dispatch implements the ResponseDispatcher: typed dispatch of
// responses to the game engine, and the lost-response retry liveness patch
// (spec §4.4).
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/GregorStocks/commander-bench-sub000/engine"
	"github.com/GregorStocks/commander-bench-sub000/policy"
	"github.com/GregorStocks/commander-bench-sub000/telemetry"
)

// DefaultRetryWindow is T_retry, the time after which an un-acknowledged
// send is retried exactly once.
const DefaultRetryWindow = 25 * time.Second

// Tracked is the last response sent for one game, kept for lost-response
// retry.
type Tracked struct {
	GameID   string
	Type     engine.ResponseType
	UUID     string
	Bool     bool
	String   string
	Int      int
	ManaType engine.ManaType
	PlayerID string

	SentAt  time.Time
	Retried bool
}

// Dispatcher sends typed responses to the engine and tracks the last send
// per game for retry.
type Dispatcher struct {
	mu        sync.Mutex
	responder engine.Responder
	tracked   map[string]*Tracked
	logger    telemetry.Logger
	pacer     *policy.Pacer
}

// New constructs a Dispatcher over the given engine collaborator. pacer may
// be nil, in which case responses are sent with no action-delay pacing.
func New(responder engine.Responder, logger telemetry.Logger, pacer *policy.Pacer) *Dispatcher {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Dispatcher{responder: responder, tracked: map[string]*Tracked{}, logger: logger, pacer: pacer}
}

// wait blocks for the configured action-delay pacing before a fresh
// (non-retry) send. A pacer error (context cancellation) is logged and
// swallowed: pacing is a courtesy to passive personalities, not a condition
// that should block the response from ever going out.
func (d *Dispatcher) wait(ctx context.Context) {
	if d.pacer == nil {
		return
	}
	if err := d.pacer.Wait(ctx); err != nil {
		d.logger.Warn(ctx, "action-delay pacer wait failed", "error", err.Error())
	}
}

func (d *Dispatcher) track(t *Tracked) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tracked[t.GameID] = t
}

// SendUUID dispatches a UUID response and records it as the tracked
// response for gameID.
func (d *Dispatcher) SendUUID(ctx context.Context, gameID, value string) error {
	d.wait(ctx)
	if err := d.responder.SendUUID(ctx, gameID, value); err != nil {
		return fmt.Errorf("send uuid: %w", err)
	}
	d.track(&Tracked{GameID: gameID, Type: engine.ResponseUUID, UUID: value, SentAt: time.Now()})
	return nil
}

// SendBool dispatches a boolean response.
func (d *Dispatcher) SendBool(ctx context.Context, gameID string, value bool) error {
	d.wait(ctx)
	if err := d.responder.SendBool(ctx, gameID, value); err != nil {
		return fmt.Errorf("send bool: %w", err)
	}
	d.track(&Tracked{GameID: gameID, Type: engine.ResponseBool, Bool: value, SentAt: time.Now()})
	return nil
}

// SendString dispatches a string response.
func (d *Dispatcher) SendString(ctx context.Context, gameID, value string) error {
	d.wait(ctx)
	if err := d.responder.SendString(ctx, gameID, value); err != nil {
		return fmt.Errorf("send string: %w", err)
	}
	d.track(&Tracked{GameID: gameID, Type: engine.ResponseString, String: value, SentAt: time.Now()})
	return nil
}

// SendInt dispatches an integer response.
func (d *Dispatcher) SendInt(ctx context.Context, gameID string, value int) error {
	d.wait(ctx)
	if err := d.responder.SendInt(ctx, gameID, value); err != nil {
		return fmt.Errorf("send int: %w", err)
	}
	d.track(&Tracked{GameID: gameID, Type: engine.ResponseInt, Int: value, SentAt: time.Now()})
	return nil
}

// SendManaType dispatches a mana-type-with-player-id response.
func (d *Dispatcher) SendManaType(ctx context.Context, gameID, playerID string, value engine.ManaType) error {
	d.wait(ctx)
	if err := d.responder.SendManaType(ctx, gameID, playerID, value); err != nil {
		return fmt.Errorf("send mana type: %w", err)
	}
	d.track(&Tracked{GameID: gameID, Type: engine.ResponseManaType, ManaType: value, PlayerID: playerID, SentAt: time.Now()})
	return nil
}

// ClearForActionableCallback clears the tracked response for gameID. Only
// actionable callbacks clear tracked state; passive callbacks (log, chat,
// state update) must not call this.
func (d *Dispatcher) ClearForActionableCallback(gameID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.tracked, gameID)
}

// MaybeRetry resends the tracked response for gameID if more than window
// has elapsed since it was sent, no actionable callback has arrived since
// (callers establish this by not having called ClearForActionableCallback),
// and it has not already been retried. Returns true if a resend occurred.
func (d *Dispatcher) MaybeRetry(ctx context.Context, gameID string, now time.Time, window time.Duration) (bool, error) {
	d.mu.Lock()
	t, ok := d.tracked[gameID]
	if !ok || t.Retried || now.Sub(t.SentAt) < window {
		d.mu.Unlock()
		return false, nil
	}
	t.Retried = true
	d.mu.Unlock()

	d.logger.Warn(ctx, "retrying lost response", "game_id", gameID, "type", string(t.Type))

	var err error
	switch t.Type {
	case engine.ResponseUUID:
		err = d.responder.SendUUID(ctx, gameID, t.UUID)
	case engine.ResponseBool:
		err = d.responder.SendBool(ctx, gameID, t.Bool)
	case engine.ResponseString:
		err = d.responder.SendString(ctx, gameID, t.String)
	case engine.ResponseInt:
		err = d.responder.SendInt(ctx, gameID, t.Int)
	case engine.ResponseManaType:
		err = d.responder.SendManaType(ctx, gameID, t.PlayerID, t.ManaType)
	}
	if err != nil {
		return false, fmt.Errorf("retry send: %w", err)
	}
	return true, nil
}

// TrackedFor returns a copy of the tracked response for gameID, if any.
func (d *Dispatcher) TrackedFor(gameID string) (Tracked, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.tracked[gameID]
	if !ok {
		return Tracked{}, false
	}
	return *t, true
}
