// Package classify splits incoming engine callbacks into the passive kinds
// that only update cached state and the actionable kinds that demand special
// handling before (or instead of) being surfaced to the agent.
package classify

import (
	"github.com/GregorStocks/commander-bench-sub000/choice"
	"github.com/GregorStocks/commander-bench-sub000/engine"
)

// Route is the Arbitrator's intake routing decision for one callback.
type Route string

const (
	// RoutePassive means the callback only updates cached state (game view,
	// log buffer, chat, cast-ownership) and never blocks the Arbitrator.
	RoutePassive Route = "passive"

	// RouteChooseAbility means a CHOOSE_ABILITY callback, which is always
	// resolved in intake (either by the active mana plan or by the naive
	// scoring heuristic) and never surfaced to the agent as a pending action.
	RouteChooseAbility Route = "choose_ability"

	// RouteTargetAutoResolve means a required TARGET callback with exactly
	// one legal target, auto-resolved in intake.
	RouteTargetAutoResolve Route = "target_auto_resolve"

	// RouteMana means a PLAY_MANA / PLAY_XMANA callback, handed to AutoMana;
	// becomes the pending action only if AutoMana declines.
	RouteMana Route = "mana"

	// RoutePending means the callback becomes the pending action and
	// waiters are notified.
	RoutePending Route = "pending"
)

// Classify decides how the Arbitrator's intake path should handle cb. It
// never mutates cb or any arbitrator state and needs no game view: legal
// targets are counted from cb itself via choice.ResolveTargets.
func Classify(cb engine.Callback) Route {
	if !cb.Kind.Actionable() {
		return RoutePassive
	}

	switch cb.Kind {
	case engine.KindChooseAbility:
		return RouteChooseAbility
	case engine.KindTarget:
		if cb.Payload.Required && len(choice.ResolveTargets(cb)) == 1 {
			return RouteTargetAutoResolve
		}
		return RoutePending
	case engine.KindPlayMana, engine.KindPlayXMana:
		return RouteMana
	default:
		return RoutePending
	}
}
