// Package policy enforces the per-turn interaction cap and loop-breaking
// (spec §4.5.1, §8 scenario 5), the set of per-turn counters that reset
// together on turn change (spec invariant 3), and the action-delay pacer
// used by passive personalities.
package policy

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Cap enforces the per-turn interaction ceiling. A fresh Cap starts at zero
// interactions; Increment reports whether this interaction pushed the count
// past the configured limit.
type Cap struct {
	mu    sync.Mutex
	count int
	limit int
}

// NewCap constructs a Cap with the given limit, clamped to at least
// MinLimit.
func NewCap(limit int) *Cap {
	if limit < MinLimit {
		limit = MinLimit
	}
	return &Cap{limit: limit}
}

// MinLimit is the lowest interaction cap accepted, per spec §6.
const MinLimit = 5

// Increment records one more interaction this turn and reports whether the
// cap has now been exceeded.
func (c *Cap) Increment() (exceeded bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	return c.count > c.limit
}

// Reset zeroes the interaction count, called on turn change.
func (c *Cap) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count = 0
}

// Count returns the current interaction count this turn.
func (c *Cap) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// TurnState groups the counters spec invariant 3 requires to reset together
// on every turn change: lands played, and a caller-supplied set of
// additional reset hooks (failed_mana_casts, the active mana plan, pool
// mana attempts) that live in other packages.
type TurnState struct {
	mu               sync.Mutex
	landsPlayedTurn  int
	resetHooks       []func()
}

// NewTurnState constructs an empty TurnState.
func NewTurnState() *TurnState {
	return &TurnState{}
}

// OnReset registers a hook invoked every time ResetForTurnChange runs. Used
// to wire in the failed-mana set, mana plan, and pool-attempt counter that
// live outside this package but share the same reset edge.
func (t *TurnState) OnReset(hook func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resetHooks = append(t.resetHooks, hook)
}

// RecordLandPlayed increments the lands-played-this-turn counter. Called
// when a log line matching "<us> plays " is observed.
func (t *TurnState) RecordLandPlayed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.landsPlayedTurn++
}

// LandsPlayedThisTurn returns the current count.
func (t *TurnState) LandsPlayedThisTurn() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.landsPlayedTurn
}

// ResetForTurnChange zeroes lands-played and runs every registered hook.
func (t *TurnState) ResetForTurnChange() {
	t.mu.Lock()
	t.landsPlayedTurn = 0
	hooks := append([]func(){}, t.resetHooks...)
	t.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}
}

// Pacer paces outbound responses for passive personalities: a warmup period
// of WarmupCount actions at WarmupDelay, then Delay thereafter. Built on
// golang.org/x/time/rate so the same primitive covers both windows without
// a second timer abstraction.
type Pacer struct {
	mu            sync.Mutex
	warmupLimiter *rate.Limiter
	steadyLimiter *rate.Limiter
	remaining     int
}

// NewPacer constructs a Pacer. delay is the steady-state pacing interval;
// warmupDelay applies for the first warmupCount actions.
func NewPacer(delay, warmupDelay time.Duration, warmupCount int) *Pacer {
	return &Pacer{
		warmupLimiter: rate.NewLimiter(rate.Every(warmupDelay), 1),
		steadyLimiter: rate.NewLimiter(rate.Every(delay), 1),
		remaining:     warmupCount,
	}
}

// Wait blocks until the next action may be sent, consuming one warmup slot
// if any remain.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	useWarmup := p.remaining > 0
	if useWarmup {
		p.remaining--
	}
	p.mu.Unlock()

	if useWarmup {
		return p.warmupLimiter.Wait(ctx)
	}
	return p.steadyLimiter.Wait(ctx)
}
