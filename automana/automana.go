// Package automana implements the auto-tap heuristic invoked on every
// PLAY_MANA / PLAY_XMANA callback: consume an active mana plan if one
// exists, else naively tap a free mana source, else fall back to the pool,
// else cancel the spell.
package automana

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/GregorStocks/commander-bench-sub000/engine"
	"github.com/GregorStocks/commander-bench-sub000/manaplan"
)

// PoolAttemptCap is the number of consecutive pool-mana sends for the same
// paying-for object allowed before AutoMana gives up and cancels.
const PoolAttemptCap = 10

// Action is the decision AutoMana reaches for one PLAY_MANA callback.
type Action string

const (
	// ActionTap means tap the named object for mana.
	ActionTap Action = "tap"
	// ActionPool means send the named pool mana type.
	ActionPool Action = "pool"
	// ActionCancel means send a cancel (answer=false); the paying-for
	// object should be added to failed_mana_casts and the plan cleared.
	ActionCancel Action = "cancel"
	// ActionDecline means AutoMana has nothing useful to do and the
	// callback should be surfaced to the agent as the pending action.
	ActionDecline Action = "decline"
)

// Decision is AutoMana's resolution for one callback.
type Decision struct {
	Action    Action
	ObjectID  string
	ManaType  engine.ManaType
	ChatLine  string // set only on ActionCancel, for the synthetic chat note
	PlanBroken bool  // true if an active plan was present but failed
}

// FailedSet reports whether an object ID has already been tried and failed
// for mana payment this turn.
type FailedSet interface {
	Contains(objectID string) bool
}

// Attempts tracks consecutive pool-mana sends per paying-for object, reset
// on turn change (by discarding the whole Attempts value) or on any tap.
type Attempts struct {
	mu       sync.Mutex
	payingFor string
	count    int
}

// NewAttempts constructs an empty attempt tracker.
func NewAttempts() *Attempts {
	return &Attempts{}
}

// recordPool increments the counter for payingFor, resetting it first if the
// paying-for object changed since the last call. Returns the new count.
func (a *Attempts) recordPool(payingFor string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.payingFor != payingFor {
		a.payingFor = payingFor
		a.count = 0
	}
	a.count++
	return a.count
}

// resetOnTap clears the attempt counter; called whenever a tap succeeds.
func (a *Attempts) resetOnTap() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.count = 0
	a.payingFor = ""
}

// objectIDRe extracts the paying-for object id embedded in a mana prompt.
var objectIDRe = regexp.MustCompile(`object_id='([^']+)'`)

func extractPayingFor(prompt string) string {
	m := objectIDRe.FindStringSubmatch(prompt)
	if m == nil {
		return ""
	}
	return m[1]
}

// manaSymbolRe finds mana symbols in a prompt such as {W}, {U/B}, {2/R}.
var manaSymbolRe = regexp.MustCompile(`\{([^}]+)\}`)

func explicitPoolTypes(prompt string) []engine.ManaType {
	var types []engine.ManaType
	seen := map[engine.ManaType]bool{}
	for _, m := range manaSymbolRe.FindAllStringSubmatch(prompt, -1) {
		for _, part := range strings.Split(m[1], "/") {
			mt, ok := symbolToManaType[strings.ToUpper(part)]
			if ok && !seen[mt] {
				seen[mt] = true
				types = append(types, mt)
			}
		}
	}
	return types
}

var symbolToManaType = map[string]engine.ManaType{
	"W": engine.ManaWhite, "U": engine.ManaBlue, "B": engine.ManaBlack,
	"R": engine.ManaRed, "G": engine.ManaGreen, "C": engine.ManaColorless,
}

// abilityCostRe captures the activation-cost portion of an ability
// description, e.g. "{1}, {T}: Add {BR}" -> cost "{1}, {T}".
var abilityCostRe = regexp.MustCompile(`^([^:]*):`)

// isFreeTapAbility reports whether ability's activation cost is exactly a
// tap with no generic or X pips, e.g. "{T}: Add {W}" qualifies but
// "{1}, {T}: Add {BR}" does not (it would trigger another mana payment).
func isFreeTapAbility(ability string) bool {
	m := abilityCostRe.FindStringSubmatch(ability)
	if m == nil {
		return false
	}
	cost := m[1]
	if !strings.Contains(cost, "{T}") {
		return false
	}
	for _, sym := range manaSymbolRe.FindAllStringSubmatch(cost, -1) {
		inner := sym[1]
		if inner == "T" {
			continue
		}
		if strings.ContainsAny(inner, "X") {
			return false
		}
		if _, err := strconv.Atoi(inner); err == nil {
			return false
		}
	}
	return true
}

// Resolve implements the four-step AutoMana algorithm (spec §4.6).
func Resolve(cb engine.Callback, view *engine.GameView, plan *manaplan.Plan, failedManaCasts FailedSet, attempts *Attempts) Decision {
	payingFor := cb.Payload.PayingFor
	if payingFor == "" {
		payingFor = extractPayingFor(cb.Payload.Prompt)
	}

	if plan.Active() {
		return resolveFromPlan(plan, payingFor, view, failedManaCasts, attempts)
	}

	if view != nil {
		if id, ok := naiveAutoTap(view, payingFor, failedManaCasts); ok {
			attempts.resetOnTap()
			return Decision{Action: ActionTap, ObjectID: id}
		}
	}

	if d, ok := poolFallback(cb.Payload.Prompt, view, payingFor, attempts); ok {
		return d
	}

	return cancel(payingFor)
}

func resolveFromPlan(plan *manaplan.Plan, payingFor string, view *engine.GameView, failedManaCasts FailedSet, attempts *Attempts) Decision {
	entry, ok := plan.Pop()
	if !ok {
		return Decision{Action: ActionCancel, ObjectID: payingFor, PlanBroken: true, ChatLine: cancelChatLine()}
	}

	switch entry.Kind {
	case manaplan.EntryTap:
		if !planTapValid(view, entry.ObjectID, payingFor, failedManaCasts) {
			return Decision{Action: ActionCancel, ObjectID: payingFor, PlanBroken: true, ChatLine: cancelChatLine()}
		}
		attempts.resetOnTap()
		return Decision{Action: ActionTap, ObjectID: entry.ObjectID}
	case manaplan.EntryPool:
		return Decision{Action: ActionPool, ManaType: entry.ManaType}
	default:
		return Decision{Action: ActionCancel, ObjectID: payingFor, PlanBroken: true, ChatLine: cancelChatLine()}
	}
}

func planTapValid(view *engine.GameView, objectID, payingFor string, failedManaCasts FailedSet) bool {
	if objectID == payingFor {
		return false
	}
	if failedManaCasts != nil && failedManaCasts.Contains(objectID) {
		return false
	}
	if view == nil {
		return false
	}
	_, ok := view.Playable[objectID]
	return ok
}

func naiveAutoTap(view *engine.GameView, payingFor string, failedManaCasts FailedSet) (string, bool) {
	var ids []string
	for id := range view.Playable {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if id == payingFor {
			continue
		}
		if failedManaCasts != nil && failedManaCasts.Contains(id) {
			continue
		}
		for _, ability := range view.PureManaAbilities[id] {
			if isFreeTapAbility(ability) {
				return id, true
			}
		}
	}
	return "", false
}

func poolFallback(prompt string, view *engine.GameView, payingFor string, attempts *Attempts) (Decision, bool) {
	explicit := explicitPoolTypes(prompt)

	var available []engine.ManaType
	if view != nil && len(view.Players) > 0 {
		pool := view.Players[0].ManaPool
		for _, mt := range engine.OrderedManaTypes {
			if pool[mt] > 0 {
				available = append(available, mt)
			}
		}
	}

	var candidate engine.ManaType
	switch {
	case len(explicit) > 0:
		for _, mt := range explicit {
			for _, a := range available {
				if a == mt {
					candidate = mt
				}
			}
		}
		if candidate == "" {
			return Decision{}, false
		}
	case len(available) == 1:
		candidate = available[0]
	case len(available) > 1:
		return Decision{Action: ActionDecline}, true // generic prompt, multiple colors available: let the agent decide
	default:
		return Decision{}, false
	}

	n := attempts.recordPool(payingFor)
	if n > PoolAttemptCap {
		return cancel(payingFor), true
	}
	return Decision{Action: ActionPool, ManaType: candidate}, true
}

func cancel(payingFor string) Decision {
	return Decision{Action: ActionCancel, ObjectID: payingFor, ChatLine: cancelChatLine()}
}

func cancelChatLine() string {
	return "Spell cancelled — not enough mana"
}
