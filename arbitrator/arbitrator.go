// Package arbitrator implements the top-level state machine: it stores the
// pending engine callback, exposes the tool-call surface to the agent, runs
// the priority-yield loop, and enforces the stall/retry/loop-cap liveness
// rules (spec §4.5).
package arbitrator

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GregorStocks/commander-bench-sub000/automana"
	"github.com/GregorStocks/commander-bench-sub000/choice"
	"github.com/GregorStocks/commander-bench-sub000/config"
	"github.com/GregorStocks/commander-bench-sub000/dispatch"
	"github.com/GregorStocks/commander-bench-sub000/engine"
	"github.com/GregorStocks/commander-bench-sub000/gamelog"
	"github.com/GregorStocks/commander-bench-sub000/manaplan"
	"github.com/GregorStocks/commander-bench-sub000/policy"
	"github.com/GregorStocks/commander-bench-sub000/roundtracker"
	"github.com/GregorStocks/commander-bench-sub000/telemetry"
)

const (
	// StallNudgeInterval is the time since the last actionable callback
	// after which the core sends a speculative pass priority, provided some
	// transport evidence exists.
	StallNudgeInterval = 10 * time.Second
	// StallNudgeFallback nudges even without transport evidence.
	StallNudgeFallback = 60 * time.Second
	// ChatDedupWindow suppresses an identical chat message sent again
	// within this window.
	ChatDedupWindow = 30 * time.Second
	// WaitQuantum is the condition-variable wait granularity while yielding.
	WaitQuantum = 200 * time.Millisecond
	// MaxChatBufferEntries bounds the chat ring buffer.
	MaxChatBufferEntries = 20
)

// CardDatabase resolves oracle text by card name, an external collaborator.
type CardDatabase interface {
	OracleText(ctx context.Context, cardName string) (rules string, ok bool)
}

// pendingAction is the single actionable callback currently awaiting a
// response, plus its generation sequence for CAS-style clearing.
type pendingAction struct {
	seq      uint64
	callback engine.Callback
	arrived  time.Time
}

// chatEntry is one entry in the bounded chat ring buffer.
type chatEntry struct {
	From string
	Text string
	At   time.Time
}

// Arbitrator is the core callback arbitration and response engine.
type Arbitrator struct {
	mu   sync.Mutex
	cond *sync.Cond

	cfg config.Config

	responder engine.Responder
	cardDB    CardDatabase

	dispatcher *dispatch.Dispatcher
	builder    *choice.Builder
	log        *gamelog.Buffer
	round      *roundtracker.Tracker
	interactCap *policy.Cap
	turnState  *policy.TurnState

	logger  telemetry.Logger
	metrics telemetry.Metrics
	tracer  telemetry.Tracer

	gameID        string
	localPlayerID string

	deckCreatureTypesOverride map[string]bool

	pending        *pendingAction
	pendingSeq     uint64
	snapshot       *choice.Snapshot
	snapshotSeq    uint64
	choicesPayload map[string]any

	view *engine.GameView

	manaPlan        *manaplan.Plan
	manaAttempts    *automana.Attempts
	failedManaCasts map[string]struct{}

	chatBuffer   []chatEntry
	lastChatSent map[string]time.Time

	castOwnership map[string]string

	gameOver   bool
	playerDead bool

	cursor            int64
	lastSignature     string
	anyCallbackSeenAt time.Time
	lastActionableAt  time.Time

	shuttingDown bool
}

// Option configures an Arbitrator at construction time.
type Option func(*Arbitrator)

// WithCardDatabase sets the external card oracle-text collaborator.
func WithCardDatabase(db CardDatabase) Option {
	return func(a *Arbitrator) { a.cardDB = db }
}

// WithDeckCreatureTypes supplies a precomputed creature-type set for the
// configured decklist (e.g. resolved from a cache keyed by
// persistmongo.DeckKey before the Arbitrator is constructed), enabling the
// CHOOSE_CHOICE creature-type filter. Without this option the filter stays
// disabled rather than guessing at types.
func WithDeckCreatureTypes(types map[string]bool) Option {
	return func(a *Arbitrator) { a.deckCreatureTypesOverride = types }
}

// WithTelemetry sets the logger, metrics and tracer. Any nil argument falls
// back to a no-op implementation.
func WithTelemetry(logger telemetry.Logger, metrics telemetry.Metrics, tracer telemetry.Tracer) Option {
	return func(a *Arbitrator) {
		if logger != nil {
			a.logger = logger
		}
		if metrics != nil {
			a.metrics = metrics
		}
		if tracer != nil {
			a.tracer = tracer
		}
	}
}

// New constructs an Arbitrator.
func New(cfg config.Config, responder engine.Responder, opts ...Option) *Arbitrator {
	a := &Arbitrator{
		cfg:             cfg,
		responder:       responder,
		log:             gamelog.New(0),
		round:           roundtracker.New(),
		interactCap:     policy.NewCap(cfg.InteractionCap),
		turnState:       policy.NewTurnState(),
		logger:          telemetry.NewNoopLogger(),
		metrics:         telemetry.NewNoopMetrics(),
		tracer:          telemetry.NewNoopTracer(),
		failedManaCasts: map[string]struct{}{},
		lastChatSent:    map[string]time.Time{},
		castOwnership:   map[string]string{},
		manaAttempts:    automana.NewAttempts(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.cond = sync.NewCond(&a.mu)
	pacer := policy.NewPacer(cfg.ActionDelay, config.DefaultActionDelay, cfg.ActionDelayWarmupCount)
	a.dispatcher = dispatch.New(responder, a.logger, pacer)
	deckCreatureTypes := a.deckCreatureTypesOverride
	if deckCreatureTypes == nil {
		deckCreatureTypes = creatureTypesInDeck(cfg.DeckList)
	}
	a.builder = choice.NewBuilder(deckCreatureTypes)

	// The hook runs with a.mu already held: ResetForTurnChange is only
	// called from HandleCallback under the lock.
	a.turnState.OnReset(func() {
		a.failedManaCasts = map[string]struct{}{}
		a.manaPlan = nil
		a.manaAttempts = automana.NewAttempts()
		a.interactCap.Reset()
	})

	return a
}

// Contains implements the FailedSet / failedManaCastsFilter interfaces
// consumed by automana and choice. Caller must hold a.mu.
func (a *Arbitrator) Contains(objectID string) bool {
	_, ok := a.failedManaCasts[objectID]
	return ok
}

// Shutdown releases any waiter blocked in Wait with stop_reason=interrupted.
func (a *Arbitrator) Shutdown() {
	a.mu.Lock()
	a.shuttingDown = true
	a.mu.Unlock()
	a.cond.Broadcast()
}

// creatureTypesInDeck is the fallback used when no WithDeckCreatureTypes
// override is supplied. The deck's own card names are not creature types, so
// without an external resolver (persistmongo.DeckStore plus a card database)
// this returns nil, disabling the filter rather than guessing.
func creatureTypesInDeck(deck config.DeckList) map[string]bool {
	return nil
}

// setPending installs cb as the pending action, bumping the generation
// sequence and invalidating any existing choice snapshot (invariant 2).
// Caller must hold a.mu.
func (a *Arbitrator) setPending(cb engine.Callback) {
	a.pendingSeq++
	a.pending = &pendingAction{seq: a.pendingSeq, callback: cb, arrived: time.Now()}
	a.snapshot = nil
	a.choicesPayload = nil
	a.lastActionableAt = time.Now()
	a.dispatcher.ClearForActionableCallback(cb.GameID)
	a.cond.Broadcast()
}

// clearPendingIfSeq clears the pending slot only if it still matches seq
// (compare-and-swap against a stale read). Caller must hold a.mu.
func (a *Arbitrator) clearPendingIfSeq(seq uint64) bool {
	if a.pending != nil && a.pending.seq == seq {
		a.pending = nil
		a.snapshot = nil
		a.choicesPayload = nil
		return true
	}
	return false
}

// objectIDFromPrompt extracts an embedded object_id='...' reference, shared
// with the choice and automana packages' own copies (kept local to avoid a
// needless cross-package dependency for one regex).
var objectIDFromPrompt = regexp.MustCompile(`object_id='([^']+)'`)

// landPlayLineRe matches a log line recording our own land play. The engine
// distinguishes "casts" from "activates", so any "<us> plays " line is by
// construction a land play.
func landPlayLineRe(player string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(player) + ` plays `)
}

// castOwnerRe extracts the stack-owner column from an HTML-ish cast log
// line, e.g. `<span class="owner">Alice</span> casts Lightning Bolt
// (obj:abc123)`.
var castOwnerRe = regexp.MustCompile(`<span class="owner">([^<]+)</span> casts .*\(obj:([^)]+)\)`)

// deathLineRe matches the engine's "<player> has lost the game" line.
func deathLineRe(player string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(player) + ` has lost the game`)
}

// newSnapshotID generates an identifier for diagnostics/tracing; the
// snapshot's identity for CAS purposes is its sequence number, not this ID.
func newSnapshotID() string {
	return uuid.NewString()
}
