package arbitrator

import (
	"context"
	"strings"
	"time"

	"github.com/GregorStocks/commander-bench-sub000/automana"
	"github.com/GregorStocks/commander-bench-sub000/choice"
	"github.com/GregorStocks/commander-bench-sub000/classify"
	"github.com/GregorStocks/commander-bench-sub000/engine"
)

// HandleCallback is the single entry point for every callback the engine
// source delivers. It dispatches by classify.Route, mutating cached state
// under lock and notifying any blocked waiter.
func (a *Arbitrator) HandleCallback(ctx context.Context, cb engine.Callback) error {
	ctx, span := a.tracer.Start(ctx, "arbitrator.handle_callback")
	defer span.End()

	a.mu.Lock()
	a.gameID = cb.GameID
	a.anyCallbackSeenAt = time.Now()
	if cb.Kind.Actionable() {
		a.lastActionableAt = time.Now()
	}

	if cb.Payload.View != nil {
		if a.round.Observe(cb.Payload.View.Turn) {
			a.turnState.ResetForTurnChange()
		}
		a.view = cb.Payload.View
	}

	switch cb.Kind {
	case engine.KindStartGame:
		a.localPlayerID = cb.Payload.LocalPlayerID
		a.round.Reset()
		a.turnState.ResetForTurnChange()
		a.pending = nil
		a.snapshot = nil
		a.choicesPayload = nil
		a.manaPlan = nil
		a.gameOver = false
		a.playerDead = false
		a.mu.Unlock()
		a.cond.Broadcast()
		return nil

	case engine.KindGameOver:
		a.gameOver = true
		a.pending = nil
		a.mu.Unlock()
		a.cond.Broadcast()
		return nil

	case engine.KindUpdate:
		a.handlePassiveLogLocked(cb)
		a.mu.Unlock()
		a.cond.Broadcast()
		return nil

	case engine.KindChat:
		a.pushChatLocked(cb.Payload.ChatFrom, cb.Payload.ChatText)
		a.mu.Unlock()
		a.cond.Broadcast()
		return nil

	case engine.KindError:
		a.logger.Error(ctx, "engine reported error", "game_id", cb.GameID, "message", cb.Payload.Prompt)
		a.mu.Unlock()
		return nil
	}

	route := classify.Classify(cb)
	switch route {
	case classify.RouteChooseAbility:
		a.handleChooseAbilityLocked(ctx, cb)
		return nil

	case classify.RouteTargetAutoResolve:
		target := choice.ResolveTargets(cb)[0]
		a.mu.Unlock()
		return a.dispatcher.SendUUID(ctx, cb.GameID, target)

	case classify.RouteMana:
		a.handleManaLocked(ctx, cb)
		return nil

	default:
		a.setPending(cb)
		a.mu.Unlock()
		return nil
	}
}

// handlePassiveLogLocked updates the log buffer, land-played counter, and
// cast-ownership map from a passive UPDATE callback. Caller holds a.mu.
func (a *Arbitrator) handlePassiveLogLocked(cb engine.Callback) {
	line := cb.Payload.LogLine
	if line == "" {
		return
	}
	a.log.Append(line)

	if a.cfg.PlayerName != "" {
		if landPlayLineRe(a.cfg.PlayerName).MatchString(line) {
			a.turnState.RecordLandPlayed()
		}
		if deathLineRe(a.cfg.PlayerName).MatchString(line) {
			a.playerDead = true
		}
	}

	if m := castOwnerRe.FindStringSubmatch(line); m != nil {
		a.castOwnership[m[2]] = m[1]
	}
}

// pushChatLocked appends to the bounded chat ring buffer, dropping the
// oldest entry on overflow. Caller holds a.mu.
func (a *Arbitrator) pushChatLocked(from, text string) {
	a.chatBuffer = append(a.chatBuffer, chatEntry{From: from, Text: text, At: time.Now()})
	if len(a.chatBuffer) > MaxChatBufferEntries {
		a.chatBuffer = a.chatBuffer[len(a.chatBuffer)-MaxChatBufferEntries:]
	}
}

// handleChooseAbilityLocked resolves a CHOOSE_ABILITY callback without ever
// surfacing it to the agent: under an active mana plan, exactly one offered
// ability auto-selects; any other count is a plan failure and cancels the
// spell. With no plan active, a naive scoring heuristic compares the mana
// prompt against each ability description. Caller holds a.mu; unlocks before
// returning.
func (a *Arbitrator) handleChooseAbilityLocked(ctx context.Context, cb engine.Callback) {
	abilities := cb.Payload.Abilities

	if a.manaPlan.Active() {
		a.mu.Unlock()
		if len(abilities) == 1 {
			_ = a.dispatcher.SendInt(ctx, cb.GameID, 0)
		} else {
			_ = a.dispatcher.SendBool(ctx, cb.GameID, false)
			a.mu.Lock()
			a.manaPlan = nil
			a.mu.Unlock()
		}
		return
	}

	prompt := cb.Payload.Prompt
	best := bestAbilityIndex(prompt, abilities)
	a.mu.Unlock()
	_ = a.dispatcher.SendInt(ctx, cb.GameID, best)
}

// bestAbilityIndex scores each ability description against the mana prompt
// by counting how many of the prompt's needed color symbols it mentions,
// returning the index of the best match (ties broken by first occurrence).
func bestAbilityIndex(prompt string, abilities []string) int {
	needed := explicitColorsInPrompt(prompt)
	best, bestScore := 0, -1
	for i, ability := range abilities {
		score := 0
		lower := strings.ToLower(ability)
		for _, c := range needed {
			if strings.Contains(lower, strings.ToLower(c)) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}

func explicitColorsInPrompt(prompt string) []string {
	var out []string
	for _, sym := range []string{"W", "U", "B", "R", "G"} {
		if strings.Contains(prompt, "{"+sym) {
			out = append(out, sym)
		}
	}
	return out
}

// handleManaLocked hands a PLAY_MANA / PLAY_XMANA callback to AutoMana.
// Caller holds a.mu; always unlocks before returning.
func (a *Arbitrator) handleManaLocked(ctx context.Context, cb engine.Callback) {
	view := a.view
	plan := a.manaPlan
	attempts := a.manaAttempts
	a.mu.Unlock()

	decision := automana.Resolve(cb, view, plan, failedSetAdapter{a}, attempts)

	switch decision.Action {
	case automana.ActionTap:
		_ = a.dispatcher.SendUUID(ctx, cb.GameID, decision.ObjectID)
	case automana.ActionPool:
		playerID := a.localPlayerID
		_ = a.dispatcher.SendManaType(ctx, cb.GameID, playerID, decision.ManaType)
	case automana.ActionCancel:
		a.mu.Lock()
		if decision.ObjectID != "" {
			a.failedManaCasts[decision.ObjectID] = struct{}{}
		}
		a.manaPlan = nil
		if decision.ChatLine != "" {
			a.pushChatLocked("", decision.ChatLine)
		}
		a.mu.Unlock()
		_ = a.dispatcher.SendBool(ctx, cb.GameID, false)
	case automana.ActionDecline:
		a.mu.Lock()
		a.setPending(cb)
		a.mu.Unlock()
	}
}

// failedSetAdapter adapts Arbitrator's lock-guarded failedManaCasts map to
// the FailedSet/filter interfaces consumed by automana and choice, taking
// the lock itself so callers can invoke it outside a.mu.
type failedSetAdapter struct {
	a *Arbitrator
}

func (f failedSetAdapter) Contains(objectID string) bool {
	f.a.mu.Lock()
	defer f.a.mu.Unlock()
	return f.a.Contains(objectID)
}
