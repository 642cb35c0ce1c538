package automana

import (
	"testing"

	"github.com/GregorStocks/commander-bench-sub000/engine"
	"github.com/GregorStocks/commander-bench-sub000/manaplan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noFailedCasts struct{}

func (noFailedCasts) Contains(string) bool { return false }

type failedSet map[string]bool

func (f failedSet) Contains(id string) bool { return f[id] }

func TestResolveNaiveAutoTap(t *testing.T) {
	t.Parallel()
	view := &engine.GameView{
		Playable:          map[string][]string{"land1": {"{T}: Add {W}"}},
		PureManaAbilities: map[string][]string{"land1": {"{T}: Add {W}"}},
		Players:           []engine.PlayerView{{Name: "Alice", ManaPool: map[engine.ManaType]int{}}},
	}
	cb := engine.Callback{Kind: engine.KindPlayMana, Payload: engine.Payload{PayingFor: "spell1"}}
	d := Resolve(cb, view, nil, noFailedCasts{}, NewAttempts())
	assert.Equal(t, ActionTap, d.Action)
	assert.Equal(t, "land1", d.ObjectID)
}

func TestResolveSkipsRecursivePaymentAbility(t *testing.T) {
	t.Parallel()
	view := &engine.GameView{
		Playable:          map[string][]string{"artifact1": {"{1}, {T}: Add {B}{R}"}},
		PureManaAbilities: map[string][]string{"artifact1": {"{1}, {T}: Add {B}{R}"}},
		Players:           []engine.PlayerView{{Name: "Alice", ManaPool: map[engine.ManaType]int{engine.ManaRed: 1}}},
	}
	cb := engine.Callback{Kind: engine.KindPlayMana, Payload: engine.Payload{PayingFor: "spell1", Prompt: "Pay {R}"}}
	d := Resolve(cb, view, nil, noFailedCasts{}, NewAttempts())
	assert.Equal(t, ActionPool, d.Action)
	assert.Equal(t, engine.ManaRed, d.ManaType)
}

func TestResolvePoolFallbackSingleChoice(t *testing.T) {
	t.Parallel()
	view := &engine.GameView{
		Playable:          map[string][]string{},
		PureManaAbilities: map[string][]string{},
		Players:           []engine.PlayerView{{Name: "Alice", ManaPool: map[engine.ManaType]int{engine.ManaGreen: 2}}},
	}
	cb := engine.Callback{Kind: engine.KindPlayMana, Payload: engine.Payload{PayingFor: "spell1"}}
	d := Resolve(cb, view, nil, noFailedCasts{}, NewAttempts())
	assert.Equal(t, ActionPool, d.Action)
	assert.Equal(t, engine.ManaGreen, d.ManaType)
}

func TestResolveDeclinesOnGenericPromptMultipleColors(t *testing.T) {
	t.Parallel()
	view := &engine.GameView{
		Playable:          map[string][]string{},
		PureManaAbilities: map[string][]string{},
		Players:           []engine.PlayerView{{Name: "Alice", ManaPool: map[engine.ManaType]int{engine.ManaGreen: 2, engine.ManaBlue: 1}}},
	}
	cb := engine.Callback{Kind: engine.KindPlayMana, Payload: engine.Payload{PayingFor: "spell1"}}
	d := Resolve(cb, view, nil, noFailedCasts{}, NewAttempts())
	assert.Equal(t, ActionDecline, d.Action)
}

func TestResolveCancelsWhenNothingWorks(t *testing.T) {
	t.Parallel()
	view := &engine.GameView{
		Playable:          map[string][]string{},
		PureManaAbilities: map[string][]string{},
		Players:           []engine.PlayerView{{Name: "Alice", ManaPool: map[engine.ManaType]int{}}},
	}
	cb := engine.Callback{Kind: engine.KindPlayMana, Payload: engine.Payload{PayingFor: "spell1"}}
	d := Resolve(cb, view, nil, noFailedCasts{}, NewAttempts())
	assert.Equal(t, ActionCancel, d.Action)
	assert.Equal(t, "spell1", d.ObjectID)
	assert.NotEmpty(t, d.ChatLine)
}

func TestResolvePoolAttemptCapCancels(t *testing.T) {
	t.Parallel()
	view := &engine.GameView{
		Playable:          map[string][]string{},
		PureManaAbilities: map[string][]string{},
		Players:           []engine.PlayerView{{Name: "Alice", ManaPool: map[engine.ManaType]int{engine.ManaGreen: 1}}},
	}
	cb := engine.Callback{Kind: engine.KindPlayMana, Payload: engine.Payload{PayingFor: "spell1"}}
	attempts := NewAttempts()
	var last Decision
	for i := 0; i < PoolAttemptCap+1; i++ {
		last = Resolve(cb, view, nil, noFailedCasts{}, attempts)
	}
	assert.Equal(t, ActionCancel, last.Action)
}

func TestResolvePlanConsumesTapEntry(t *testing.T) {
	t.Parallel()
	view := &engine.GameView{
		Playable:          map[string][]string{"land1": {"{T}: Add {U}"}},
		PureManaAbilities: map[string][]string{"land1": {"{T}: Add {U}"}},
		Players:           []engine.PlayerView{{Name: "Alice", ManaPool: map[engine.ManaType]int{}}},
	}
	entries, err := manaplan.Parse(`[{"tap":"land1"}]`)
	require.NoError(t, err)
	plan := manaplan.NewPlan(entries)

	cb := engine.Callback{Kind: engine.KindPlayMana, Payload: engine.Payload{PayingFor: "spell1"}}
	d := Resolve(cb, view, plan, noFailedCasts{}, NewAttempts())
	assert.Equal(t, ActionTap, d.Action)
	assert.Equal(t, "land1", d.ObjectID)
	assert.True(t, plan.Empty())
}

func TestResolvePlanBreaksWhenTargetNotPlayable(t *testing.T) {
	t.Parallel()
	view := &engine.GameView{Playable: map[string][]string{}, PureManaAbilities: map[string][]string{}}
	entries, err := manaplan.Parse(`[{"tap":"land1"}]`)
	require.NoError(t, err)
	plan := manaplan.NewPlan(entries)

	cb := engine.Callback{Kind: engine.KindPlayMana, Payload: engine.Payload{PayingFor: "spell1"}}
	d := Resolve(cb, view, plan, noFailedCasts{}, NewAttempts())
	assert.Equal(t, ActionCancel, d.Action)
	assert.True(t, d.PlanBroken)
}

func TestResolvePlanSkipsFailedManaCasts(t *testing.T) {
	t.Parallel()
	view := &engine.GameView{
		Playable:          map[string][]string{"land1": {"{T}: Add {U}"}},
		PureManaAbilities: map[string][]string{"land1": {"{T}: Add {U}"}},
	}
	entries, err := manaplan.Parse(`[{"tap":"land1"}]`)
	require.NoError(t, err)
	plan := manaplan.NewPlan(entries)

	cb := engine.Callback{Kind: engine.KindPlayMana, Payload: engine.Payload{PayingFor: "spell1"}}
	d := Resolve(cb, view, plan, failedSet{"land1": true}, NewAttempts())
	assert.Equal(t, ActionCancel, d.Action)
}
