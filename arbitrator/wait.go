package arbitrator

import (
	"context"
	"time"

	"github.com/GregorStocks/commander-bench-sub000/dispatch"
	"github.com/GregorStocks/commander-bench-sub000/engine"
)

// serverSideYields translate one-to-one into the engine's own "pass until X"
// player action.
var serverSideYields = map[string]bool{
	"end_of_turn": true, "next_turn": true, "next_turn_skip_stack": true,
	"next_main": true, "stack_resolved": true, "my_turn": true,
	"end_step_before_my_turn": true,
}

// clientSideStepYields are auto-passed locally. Wait does not compare the
// engine's reported step with the named step: it keeps auto-passing and, once
// no action is pending and the round has changed since Wait began, returns
// stop_reason=step_not_reached.
var clientSideStepYields = map[string]bool{
	"upkeep": true, "draw": true, "precombat_main": true, "begin_combat": true,
	"declare_attackers": true, "declare_blockers": true, "end_combat": true,
	"postcombat_main": true, "end_turn": true,
}

// waitState tracks the book-keeping local to one Wait call: whether the
// server-side yield action has already been issued, and the round the caller
// started from (for client-side step-yield detection).
type waitState struct {
	serverYieldIssued bool
	startTurn         int
}

// Wait blocks until a decision is needed, per spec §4.5.2.
func (a *Arbitrator) Wait(ctx context.Context, yield string) map[string]any {
	ws := &waitState{}

	a.mu.Lock()
	ws.startTurn = a.round.Round()
	waitStartedAt := time.Now()
	a.mu.Unlock()

	actionsPassed := 0

	for {
		if ctx.Err() != nil {
			return map[string]any{"success": true, "stop_reason": "interrupted"}
		}

		a.mu.Lock()

		if a.shuttingDown {
			a.mu.Unlock()
			return map[string]any{"success": true, "stop_reason": "interrupted"}
		}
		if a.gameOver || a.playerDead {
			out := a.withTopLevelFlagsLocked(map[string]any{"success": true, "stop_reason": "game_over", "actions_passed": actionsPassed})
			a.mu.Unlock()
			return out
		}

		if a.pending != nil {
			result := a.handlePendingDuringWaitLocked(ctx, &actionsPassed)
			a.mu.Unlock()
			if result != nil {
				return result
			}
			continue
		}

		if yield == "" {
			out := a.withTopLevelFlagsLocked(map[string]any{"success": true, "stop_reason": "no_action", "actions_passed": actionsPassed})
			a.mu.Unlock()
			return out
		}

		if clientSideStepYields[yield] && a.round.Round() != ws.startTurn {
			out := a.withTopLevelFlagsLocked(map[string]any{"success": true, "stop_reason": "step_not_reached", "actions_passed": actionsPassed})
			a.mu.Unlock()
			return out
		}

		a.runStallRecoveryLocked(ctx, waitStartedAt)

		if serverSideYields[yield] && !ws.serverYieldIssued {
			ws.serverYieldIssued = true
			gameID := a.gameID
			a.mu.Unlock()
			_ = a.responder.PlayerAction(ctx, gameID, yield)
			a.mu.Lock()
		}

		a.waitQuantumLocked()
		a.mu.Unlock()
	}
}

// WaitAndChoices is Wait followed by GetChoices in one call.
func (a *Arbitrator) WaitAndChoices(ctx context.Context, yield string) map[string]any {
	result := a.Wait(ctx, yield)

	a.mu.Lock()
	hasPending := a.pending != nil
	a.mu.Unlock()
	if !hasPending {
		return result
	}

	choices := a.GetChoices(ctx)
	for k, v := range choices {
		if _, exists := result[k]; !exists {
			result[k] = v
		}
	}
	return result
}

// handlePendingDuringWaitLocked applies wait's priority-yield decision tree
// to the current pending action. A nil return means it performed a
// mechanical auto-pass and the wait loop should continue; a non-nil map is
// the terminal result to hand back from Wait. Caller holds a.mu; the lock is
// restored before returning in every path.
func (a *Arbitrator) handlePendingDuringWaitLocked(ctx context.Context, actionsPassed *int) map[string]any {
	pending := a.pending
	cb := pending.callback

	if cb.Kind == engine.KindTarget && !cb.Payload.Required {
		result := a.buildChoicesForPendingLocked(cb)
		if result.Snapshot.Len() == 0 {
			a.clearPendingIfSeq(pending.seq)
			gameID := cb.GameID
			a.mu.Unlock()
			_ = a.dispatcher.SendBool(ctx, gameID, false)
			a.mu.Lock()
			return nil
		}
	}

	if cb.Kind != engine.KindSelect {
		return a.withTopLevelFlagsLocked(map[string]any{
			"success": true, "stop_reason": "non_priority_action",
			"action_type": string(cb.Kind), "actions_passed": *actionsPassed,
		})
	}

	if _, ok := cb.Payload.Options["possibleAttackers"]; ok {
		return a.withTopLevelFlagsLocked(map[string]any{
			"success": true, "stop_reason": "combat", "combat_phase": "declare_attackers", "actions_passed": *actionsPassed,
		})
	}
	if _, ok := cb.Payload.Options["possibleBlockers"]; ok {
		return a.withTopLevelFlagsLocked(map[string]any{
			"success": true, "stop_reason": "combat", "combat_phase": "declare_blockers", "actions_passed": *actionsPassed,
		})
	}

	if a.hasNonManaPlayableLocked() {
		return a.withTopLevelFlagsLocked(map[string]any{
			"success": true, "stop_reason": "playable_cards", "has_playable_cards": true, "actions_passed": *actionsPassed,
		})
	}

	if !a.clearPendingIfSeq(pending.seq) {
		return nil
	}
	gameID := cb.GameID
	a.mu.Unlock()
	_ = a.dispatcher.SendBool(ctx, gameID, false)
	a.mu.Lock()
	*actionsPassed++
	return nil
}

func (a *Arbitrator) hasNonManaPlayableLocked() bool {
	if a.view == nil {
		return false
	}
	for id, abilities := range a.view.Playable {
		manaAbilities := a.view.PureManaAbilities[id]
		manaSet := make(map[string]bool, len(manaAbilities))
		for _, m := range manaAbilities {
			manaSet[m] = true
		}
		for _, ab := range abilities {
			if !manaSet[ab] {
				return true
			}
		}
	}
	return false
}

// runStallRecoveryLocked performs the lost-response retry and lost-callback
// nudge on one wait wakeup. Caller holds a.mu throughout; internal sends
// release and reacquire it.
func (a *Arbitrator) runStallRecoveryLocked(ctx context.Context, waitStartedAt time.Time) {
	gameID := a.gameID
	now := time.Now()

	a.mu.Unlock()
	_, _ = a.dispatcher.MaybeRetry(ctx, gameID, now, dispatch.DefaultRetryWindow)
	a.mu.Lock()

	if a.pending != nil {
		return
	}
	if _, tracked := a.dispatcher.TrackedFor(gameID); tracked {
		return
	}

	hasTransportEvidence := a.anyCallbackSeenAt.After(waitStartedAt) || a.anyCallbackSeenAt.Equal(waitStartedAt)
	sinceActionable := now.Sub(a.lastActionableAt)

	nudge := false
	switch {
	case hasTransportEvidence && sinceActionable > StallNudgeInterval:
		nudge = true
	case sinceActionable > StallNudgeFallback:
		nudge = true
	}
	if !nudge {
		return
	}
	a.lastActionableAt = now
	a.mu.Unlock()
	_ = a.responder.PlayerAction(ctx, gameID, "pass_priority")
	a.mu.Lock()
}

// waitQuantumLocked blocks on the condition variable for up to WaitQuantum.
// Caller holds a.mu; the lock is released during the wait and reacquired
// before returning, per sync.Cond's contract.
func (a *Arbitrator) waitQuantumLocked() {
	timer := time.AfterFunc(WaitQuantum, func() {
		a.mu.Lock()
		a.cond.Broadcast()
		a.mu.Unlock()
	})
	a.cond.Wait()
	timer.Stop()
}
