package arbitrator

import (
	"context"
	"strconv"
	"strings"

	"github.com/GregorStocks/commander-bench-sub000/choice"
	"github.com/GregorStocks/commander-bench-sub000/engine"
	"github.com/GregorStocks/commander-bench-sub000/manaplan"
	"github.com/GregorStocks/commander-bench-sub000/toolerrors"
)

// ChooseParams is the union of every parameter the choose tool accepts; only
// the fields relevant to the pending kind are consulted.
type ChooseParams struct {
	Index *int
	ID    string
	Answer *bool
	Amount *int
	Amounts []int
	Pile *int
	Text string
	ManaPlan string
	AutoTap bool
	Attackers []string
	Blockers  []string
}

// Choose resolves the pending action per spec §4.5.1.
func (a *Arbitrator) Choose(ctx context.Context, p ChooseParams) map[string]any {
	a.mu.Lock()

	if a.pending == nil {
		a.mu.Unlock()
		return errResult(toolerrors.New(toolerrors.NoPendingAction, "no pending action"))
	}
	pending := a.pending
	snap := a.snapshot

	if a.interactCap.Increment() {
		a.mu.Unlock()
		a.logger.Warn(ctx, "per-turn interaction cap exceeded", "game_id", pending.callback.GameID)
		result := a.DefaultAction(ctx)
		result["action_taken"] = "auto_passed_loop_detected"
		result["warning"] = "per-turn interaction cap exceeded"
		return result
	}

	if p.ManaPlan != "" && p.AutoTap {
		a.mu.Unlock()
		return errResult(toolerrors.New(toolerrors.MissingParam, "mana_plan and auto_tap are mutually exclusive"))
	}

	if snap == nil {
		built := a.buildChoicesForPendingLocked(pending.callback)
		snap = built.Snapshot
	}

	cb := pending.callback
	var result map[string]any
	switch cb.Kind {
	case engine.KindAsk:
		result = a.chooseAsk(ctx, pending, p)
	case engine.KindSelect:
		result = a.chooseSelect(ctx, pending, snap, p)
	case engine.KindPlayMana, engine.KindPlayXMana:
		result = a.choosePlayMana(ctx, pending, snap, p)
	case engine.KindTarget:
		result = a.chooseTarget(ctx, pending, snap, p)
	case engine.KindChooseAbility:
		result = a.chooseIndexOnly(ctx, pending, snap, p, engine.ResponseInt)
	case engine.KindChooseChoice:
		result = a.chooseChoice(ctx, pending, snap, p)
	case engine.KindChoosePile:
		result = a.choosePile(ctx, pending, p)
	case engine.KindGetAmount:
		result = a.chooseAmount(ctx, pending, cb, p)
	case engine.KindGetMultiAmount:
		result = a.chooseMultiAmount(ctx, pending, p)
	default:
		a.mu.Unlock()
		return errResult(toolerrors.New(toolerrors.UnknownActionType, "no dispatch handler for pending kind"))
	}
	return result
}

// resolveIndex returns p.Index if set, else resolves p.ID against snap's
// descriptors by ObjectID.
func resolveIndex(snap *choice.Snapshot, p ChooseParams) (int, bool) {
	if p.Index != nil {
		return *p.Index, true
	}
	if p.ID != "" && snap != nil {
		for _, d := range snap.Descriptors {
			if d.ObjectID == p.ID {
				return d.Index, true
			}
		}
	}
	return 0, false
}

func indexInRange(snap *choice.Snapshot, idx int) bool {
	return snap != nil && idx >= 0 && idx < len(snap.Descriptors)
}

// chooseAsk requires answer, ignoring any index (with a warning).
func (a *Arbitrator) chooseAsk(ctx context.Context, pending *pendingAction, p ChooseParams) map[string]any {
	defer a.mu.Unlock()
	if p.Index != nil {
		a.logger.Warn(ctx, "index ignored for ASK", "game_id", pending.callback.GameID)
	}
	if p.Answer == nil {
		return errResult(toolerrors.New(toolerrors.MissingParam, "answer is required"))
	}
	if !a.clearPendingIfSeq(pending.seq) {
		return errResult(toolerrors.New(toolerrors.NoPendingAction, "pending action was superseded"))
	}
	return a.dispatchResult(ctx, pending.callback.GameID, func(ctx context.Context) error {
		return a.dispatcher.SendBool(ctx, pending.callback.GameID, *p.Answer)
	}, "answered")
}

// chooseSelect prefers index/id over answer; answer=false passes priority,
// answer=true confirms combat.
func (a *Arbitrator) chooseSelect(ctx context.Context, pending *pendingAction, snap *choice.Snapshot, p ChooseParams) map[string]any {
	idx, hasIdx := resolveIndex(snap, p)
	if hasIdx {
		if !indexInRange(snap, idx) {
			if p.Answer != nil {
				return a.passOrConfirm(ctx, pending, *p.Answer)
			}
			a.mu.Unlock()
			return errResult(toolerrors.New(toolerrors.IndexOutOfRange, "index out of range"), snap)
		}
		desc := snap.Descriptors[idx]
		var plan *manaplan.Plan
		if p.ManaPlan != "" {
			entries, err := manaplan.Parse(p.ManaPlan)
			if err != nil {
				a.mu.Unlock()
				return errResult(toolerrors.NewWithCause(toolerrors.MissingParam, "invalid mana_plan", err))
			}
			plan = manaplan.NewPlan(entries)
		}
		if !a.clearPendingIfSeq(pending.seq) {
			a.mu.Unlock()
			return errResult(toolerrors.New(toolerrors.NoPendingAction, "pending action was superseded"))
		}
		if p.ManaPlan != "" {
			a.manaPlan = plan
		}
		gameID := pending.callback.GameID
		a.mu.Unlock()
		if desc.Sentinel == "all_attack" {
			return a.dispatchResult(ctx, gameID, func(ctx context.Context) error {
				return a.responder.PlayerAction(ctx, gameID, "all_attack")
			}, "all_attack")
		}
		return a.dispatchResult(ctx, gameID, func(ctx context.Context) error {
			return a.dispatcher.SendUUID(ctx, gameID, desc.ObjectID)
		}, "selected")
	}
	if p.Answer != nil {
		return a.passOrConfirm(ctx, pending, *p.Answer)
	}
	a.mu.Unlock()
	return errResult(toolerrors.New(toolerrors.MissingParam, "index, id, or answer is required"))
}

func (a *Arbitrator) passOrConfirm(ctx context.Context, pending *pendingAction, answer bool) map[string]any {
	if !a.clearPendingIfSeq(pending.seq) {
		a.mu.Unlock()
		return errResult(toolerrors.New(toolerrors.NoPendingAction, "pending action was superseded"))
	}
	gameID := pending.callback.GameID
	a.mu.Unlock()
	action := "passed_priority"
	if answer {
		action = "confirmed"
	}
	return a.dispatchResult(ctx, gameID, func(ctx context.Context) error {
		return a.dispatcher.SendBool(ctx, gameID, answer)
	}, action)
}

// choosePlayMana dispatches an index (source or pool type) or answer.
func (a *Arbitrator) choosePlayMana(ctx context.Context, pending *pendingAction, snap *choice.Snapshot, p ChooseParams) map[string]any {
	idx, hasIdx := resolveIndex(snap, p)
	if hasIdx {
		if !indexInRange(snap, idx) {
			if p.Answer != nil && !*p.Answer {
				return a.cancelMana(ctx, pending)
			}
			a.mu.Unlock()
			return errResult(toolerrors.New(toolerrors.IndexOutOfRange, "index out of range"), snap)
		}
		desc := snap.Descriptors[idx]
		if !a.clearPendingIfSeq(pending.seq) {
			a.mu.Unlock()
			return errResult(toolerrors.New(toolerrors.NoPendingAction, "pending action was superseded"))
		}
		gameID := pending.callback.GameID
		if desc.ManaType != "" {
			playerID := a.localPlayerID
			a.mu.Unlock()
			return a.dispatchResult(ctx, gameID, func(ctx context.Context) error {
				return a.dispatcher.SendManaType(ctx, gameID, playerID, desc.ManaType)
			}, "paid_pool")
		}
		a.mu.Unlock()
		return a.dispatchResult(ctx, gameID, func(ctx context.Context) error {
			return a.dispatcher.SendUUID(ctx, gameID, desc.ObjectID)
		}, "paid_tap")
	}
	if p.Answer != nil {
		if !*p.Answer {
			return a.cancelMana(ctx, pending)
		}
		if snap.Len() == 0 {
			return a.cancelMana(ctx, pending)
		}
	}
	a.mu.Unlock()
	return errResult(toolerrors.New(toolerrors.MissingParam, "index or answer is required"))
}

func (a *Arbitrator) cancelMana(ctx context.Context, pending *pendingAction) map[string]any {
	if !a.clearPendingIfSeq(pending.seq) {
		a.mu.Unlock()
		return errResult(toolerrors.New(toolerrors.NoPendingAction, "pending action was superseded"))
	}
	gameID := pending.callback.GameID
	payingFor := choice.ExtractPayingFor(pending.callback.Payload.Prompt)
	if payingFor == "" {
		payingFor = pending.callback.Payload.PayingFor
	}
	if payingFor != "" {
		a.failedManaCasts[payingFor] = struct{}{}
	}
	a.manaPlan = nil
	a.mu.Unlock()
	return a.dispatchResult(ctx, gameID, func(ctx context.Context) error {
		return a.dispatcher.SendBool(ctx, gameID, false)
	}, "cancelled")
}

// chooseTarget picks a target; a required TARGET auto-selects or cancels on
// invalid/missing index, an optional one reports an error.
func (a *Arbitrator) chooseTarget(ctx context.Context, pending *pendingAction, snap *choice.Snapshot, p ChooseParams) map[string]any {
	required := pending.callback.Payload.Required
	idx, hasIdx := resolveIndex(snap, p)

	if !hasIdx || !indexInRange(snap, idx) {
		if !required {
			a.mu.Unlock()
			if !hasIdx {
				return errResult(toolerrors.New(toolerrors.MissingParam, "index or id is required"))
			}
			return errResult(toolerrors.New(toolerrors.IndexOutOfRange, "index out of range"), snap)
		}
		if snap.Len() == 0 {
			return a.cancelRequiredTarget(ctx, pending)
		}
		idx = 0
	}

	desc := snap.Descriptors[idx]
	if !a.clearPendingIfSeq(pending.seq) {
		a.mu.Unlock()
		return errResult(toolerrors.New(toolerrors.NoPendingAction, "pending action was superseded"))
	}
	gameID := pending.callback.GameID
	a.mu.Unlock()
	return a.dispatchResult(ctx, gameID, func(ctx context.Context) error {
		return a.dispatcher.SendUUID(ctx, gameID, desc.ObjectID)
	}, "targeted")
}

func (a *Arbitrator) cancelRequiredTarget(ctx context.Context, pending *pendingAction) map[string]any {
	if !a.clearPendingIfSeq(pending.seq) {
		a.mu.Unlock()
		return errResult(toolerrors.New(toolerrors.NoPendingAction, "pending action was superseded"))
	}
	gameID := pending.callback.GameID
	a.mu.Unlock()
	return a.dispatchResult(ctx, gameID, func(ctx context.Context) error {
		return a.dispatcher.SendBool(ctx, gameID, false)
	}, "auto_cancelled_no_targets")
}

// chooseIndexOnly requires index (CHOOSE_ABILITY).
func (a *Arbitrator) chooseIndexOnly(ctx context.Context, pending *pendingAction, snap *choice.Snapshot, p ChooseParams, _ engine.ResponseType) map[string]any {
	idx, hasIdx := resolveIndex(snap, p)
	if !hasIdx {
		a.mu.Unlock()
		return errResult(toolerrors.New(toolerrors.MissingParam, "index is required"))
	}
	if !indexInRange(snap, idx) {
		a.mu.Unlock()
		return errResult(toolerrors.New(toolerrors.IndexOutOfRange, "index out of range"), snap)
	}
	if !a.clearPendingIfSeq(pending.seq) {
		a.mu.Unlock()
		return errResult(toolerrors.New(toolerrors.NoPendingAction, "pending action was superseded"))
	}
	gameID := pending.callback.GameID
	a.mu.Unlock()
	return a.dispatchResult(ctx, gameID, func(ctx context.Context) error {
		return a.dispatcher.SendInt(ctx, gameID, idx)
	}, "chose_ability")
}

// chooseChoice prefers a case-insensitive text match, else index.
func (a *Arbitrator) chooseChoice(ctx context.Context, pending *pendingAction, snap *choice.Snapshot, p ChooseParams) map[string]any {
	if p.Text != "" {
		for _, d := range snap.Descriptors {
			if strings.EqualFold(d.Key, p.Text) || strings.EqualFold(d.Name, p.Text) {
				if !a.clearPendingIfSeq(pending.seq) {
					a.mu.Unlock()
					return errResult(toolerrors.New(toolerrors.NoPendingAction, "pending action was superseded"))
				}
				gameID := pending.callback.GameID
				a.mu.Unlock()
				return a.dispatchResult(ctx, gameID, func(ctx context.Context) error {
					return a.dispatcher.SendString(ctx, gameID, d.Key)
				}, "chose_text")
			}
		}
		a.mu.Unlock()
		return errResult(toolerrors.New(toolerrors.InvalidChoice, "text did not match any choice"), snap)
	}
	idx, hasIdx := resolveIndex(snap, p)
	if !hasIdx {
		a.mu.Unlock()
		return errResult(toolerrors.New(toolerrors.MissingParam, "text or index is required"))
	}
	if !indexInRange(snap, idx) {
		a.mu.Unlock()
		return errResult(toolerrors.New(toolerrors.IndexOutOfRange, "index out of range"), snap)
	}
	desc := snap.Descriptors[idx]
	if !a.clearPendingIfSeq(pending.seq) {
		a.mu.Unlock()
		return errResult(toolerrors.New(toolerrors.NoPendingAction, "pending action was superseded"))
	}
	gameID := pending.callback.GameID
	a.mu.Unlock()
	return a.dispatchResult(ctx, gameID, func(ctx context.Context) error {
		return a.dispatcher.SendString(ctx, gameID, desc.Key)
	}, "chose_text")
}

// choosePile requires pile in {1,2}.
func (a *Arbitrator) choosePile(ctx context.Context, pending *pendingAction, p ChooseParams) map[string]any {
	if p.Pile == nil || (*p.Pile != 1 && *p.Pile != 2) {
		a.mu.Unlock()
		return errResult(toolerrors.New(toolerrors.MissingParam, "pile must be 1 or 2"))
	}
	if !a.clearPendingIfSeq(pending.seq) {
		a.mu.Unlock()
		return errResult(toolerrors.New(toolerrors.NoPendingAction, "pending action was superseded"))
	}
	gameID := pending.callback.GameID
	idx := *p.Pile - 1
	a.mu.Unlock()
	return a.dispatchResult(ctx, gameID, func(ctx context.Context) error {
		return a.dispatcher.SendInt(ctx, gameID, idx)
	}, "chose_pile")
}

// chooseAmount clamps amount into [min,max].
func (a *Arbitrator) chooseAmount(ctx context.Context, pending *pendingAction, cb engine.Callback, p ChooseParams) map[string]any {
	if p.Amount == nil {
		a.mu.Unlock()
		return errResult(toolerrors.New(toolerrors.MissingParam, "amount is required"))
	}
	amt := *p.Amount
	if amt < cb.Payload.Min {
		amt = cb.Payload.Min
	}
	if amt > cb.Payload.Max {
		amt = cb.Payload.Max
	}
	if !a.clearPendingIfSeq(pending.seq) {
		a.mu.Unlock()
		return errResult(toolerrors.New(toolerrors.NoPendingAction, "pending action was superseded"))
	}
	gameID := pending.callback.GameID
	a.mu.Unlock()
	return a.dispatchResult(ctx, gameID, func(ctx context.Context) error {
		return a.dispatcher.SendInt(ctx, gameID, amt)
	}, "chose_amount")
}

// chooseMultiAmount joins amounts into the engine's space-separated wire form.
func (a *Arbitrator) chooseMultiAmount(ctx context.Context, pending *pendingAction, p ChooseParams) map[string]any {
	if len(p.Amounts) == 0 {
		a.mu.Unlock()
		return errResult(toolerrors.New(toolerrors.MissingParam, "amounts is required"))
	}
	if !a.clearPendingIfSeq(pending.seq) {
		a.mu.Unlock()
		return errResult(toolerrors.New(toolerrors.NoPendingAction, "pending action was superseded"))
	}
	gameID := pending.callback.GameID
	parts := make([]string, len(p.Amounts))
	for i, n := range p.Amounts {
		parts[i] = strconv.Itoa(n)
	}
	wire := strings.Join(parts, " ")
	a.mu.Unlock()
	return a.dispatchResult(ctx, gameID, func(ctx context.Context) error {
		return a.dispatcher.SendString(ctx, gameID, wire)
	}, "chose_amounts")
}

// DefaultAction applies deterministic defaults without consulting the agent:
// pass for SELECT/ASK, cancel for PLAY_MANA, first choice otherwise, min
// amount for GET_AMOUNT.
func (a *Arbitrator) DefaultAction(ctx context.Context) map[string]any {
	a.mu.Lock()
	if a.pending == nil {
		a.mu.Unlock()
		return errResult(toolerrors.New(toolerrors.NoPendingAction, "no pending action"))
	}
	pending := a.pending
	cb := pending.callback

	switch cb.Kind {
	case engine.KindAsk, engine.KindSelect:
		answer := false
		return a.passOrConfirm(ctx, pending, answer)
	case engine.KindPlayMana, engine.KindPlayXMana:
		return a.cancelMana(ctx, pending)
	case engine.KindTarget:
		targets := choice.ResolveTargets(cb)
		if cb.Payload.Required && len(targets) > 0 {
			if !a.clearPendingIfSeq(pending.seq) {
				a.mu.Unlock()
				return errResult(toolerrors.New(toolerrors.NoPendingAction, "pending action was superseded"))
			}
			gameID := cb.GameID
			target := targets[0]
			a.mu.Unlock()
			return a.dispatchResult(ctx, gameID, func(ctx context.Context) error {
				return a.dispatcher.SendUUID(ctx, gameID, target)
			}, "targeted")
		}
		return a.cancelRequiredTarget(ctx, pending)
	case engine.KindGetAmount:
		if !a.clearPendingIfSeq(pending.seq) {
			a.mu.Unlock()
			return errResult(toolerrors.New(toolerrors.NoPendingAction, "pending action was superseded"))
		}
		gameID := cb.GameID
		min := cb.Payload.Min
		a.mu.Unlock()
		return a.dispatchResult(ctx, gameID, func(ctx context.Context) error {
			return a.dispatcher.SendInt(ctx, gameID, min)
		}, "chose_amount")
	default:
		if !a.clearPendingIfSeq(pending.seq) {
			a.mu.Unlock()
			return errResult(toolerrors.New(toolerrors.NoPendingAction, "pending action was superseded"))
		}
		gameID := cb.GameID
		a.mu.Unlock()
		return a.dispatchResult(ctx, gameID, func(ctx context.Context) error {
			return a.dispatcher.SendInt(ctx, gameID, 0)
		}, "default_first_choice")
	}
}

// dispatchResult runs send, returning the standard success/error map.
func (a *Arbitrator) dispatchResult(ctx context.Context, gameID string, send func(context.Context) error, actionTaken string) map[string]any {
	if err := send(ctx); err != nil {
		return errResult(toolerrors.NewWithCause(toolerrors.InternalError, "failed to dispatch response", err))
	}
	return map[string]any{"success": true, "action_taken": actionTaken}
}

func errResult(te *toolerrors.ToolError, snap ...*choice.Snapshot) map[string]any {
	out := map[string]any{
		"success":    false,
		"error":      te.Error(),
		"error_code": string(te.ErrCode),
		"retryable":  te.Retryable(),
	}
	if te.Retryable() && len(snap) > 0 && snap[0] != nil {
		out["choices"] = choice.DescriptorsPayload(snap[0].Descriptors)
	}
	return out
}
