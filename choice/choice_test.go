package choice

import (
	"testing"

	"github.com/GregorStocks/commander-bench-sub000/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noFailedCasts struct{}

func (noFailedCasts) Contains(string) bool { return false }

func baseView() *engine.GameView {
	return &engine.GameView{
		Turn: 3, Phase: "main1", Step: "main", ActivePlayer: "Alice", PriorityPlayer: "Alice",
		Players: []engine.PlayerView{
			{Name: "Alice", Life: 40, ManaPool: map[engine.ManaType]int{}},
			{Name: "Bob", Life: 35},
		},
		Playable:          map[string][]string{},
		PureManaAbilities: map[string][]string{},
	}
}

func TestBuildAskDefaultsToBoolean(t *testing.T) {
	t.Parallel()
	b := NewBuilder(nil)
	res := b.Build(engine.Callback{Kind: engine.KindAsk, Payload: engine.Payload{Prompt: "Do you want to mulligan?"}}, baseView(), noFailedCasts{}, 0, false)
	assert.Equal(t, engine.ResponseBool, res.Snapshot.ResponseType)
	assert.Equal(t, "boolean", res.Payload["response_type"])
}

func TestBuildSelectSkipsPureManaObjects(t *testing.T) {
	t.Parallel()
	view := baseView()
	view.Playable["land1"] = []string{"tap for mana"}
	view.PureManaAbilities["land1"] = []string{"tap for mana"}
	view.Playable["creature1"] = []string{"cast"}

	b := NewBuilder(nil)
	res := b.Build(engine.Callback{Kind: engine.KindSelect}, view, noFailedCasts{}, 0, false)
	require.Len(t, res.Snapshot.Descriptors, 1)
	assert.Equal(t, "creature1", res.Snapshot.Descriptors[0].ObjectID)
}

func TestBuildSelectFallsBackToBooleanWhenNoChoices(t *testing.T) {
	t.Parallel()
	b := NewBuilder(nil)
	res := b.Build(engine.Callback{Kind: engine.KindSelect}, baseView(), noFailedCasts{}, 0, false)
	assert.Equal(t, engine.ResponseBool, res.Snapshot.ResponseType)
}

func TestBuildSelectCombatAttackers(t *testing.T) {
	t.Parallel()
	view := baseView()
	view.Players[0].Battlefield = []engine.Permanent{{ID: "c1", Name: "Bear", Power: 2, Toughness: 2}}

	b := NewBuilder(nil)
	cb := engine.Callback{Kind: engine.KindSelect, Payload: engine.Payload{Options: map[string]any{"possibleAttackers": []string{"c1"}}}}
	res := b.Build(cb, view, noFailedCasts{}, 0, false)
	require.Len(t, res.Snapshot.Descriptors, 2)
	assert.Equal(t, "c1", res.Snapshot.Descriptors[0].ObjectID)
	assert.Equal(t, "all_attack", res.Snapshot.Descriptors[1].Sentinel)
	assert.Equal(t, "declare_attackers", res.Payload["combat_phase"])
}

func TestBuildTargetOptionalNoLegalTargetsAutoCancels(t *testing.T) {
	t.Parallel()
	b := NewBuilder(nil)
	res := b.Build(engine.Callback{Kind: engine.KindTarget, Payload: engine.Payload{Required: false}}, baseView(), noFailedCasts{}, 0, false)
	assert.Equal(t, true, res.Payload["auto_cancelled"])
	assert.Equal(t, "auto_cancelled_no_targets", res.Payload["action_taken"])
	assert.Empty(t, res.Snapshot.Descriptors)
}

func TestBuildChooseChoiceFiltersLargeSets(t *testing.T) {
	t.Parallel()
	choices := make([]string, 60)
	for i := range choices {
		choices[i] = "Zombie"
	}
	choices[0] = "Goblin"
	creatureTypes := map[string]bool{"zombie": true}

	b := NewBuilder(creatureTypes)
	res := b.Build(engine.Callback{Kind: engine.KindChooseChoice, Payload: engine.Payload{Choices: choices}}, baseView(), noFailedCasts{}, 0, false)
	assert.Len(t, res.Snapshot.Descriptors, 59)
	assert.NotEmpty(t, res.Snapshot.Note)
}

func TestBuildPlayManaOffersExplicitSymbolPoolTypes(t *testing.T) {
	t.Parallel()
	view := baseView()
	view.Players[0].ManaPool = map[engine.ManaType]int{engine.ManaRed: 1, engine.ManaBlue: 2}

	b := NewBuilder(nil)
	cb := engine.Callback{Kind: engine.KindPlayMana, Payload: engine.Payload{Prompt: "Pay {R} for object_id='spell1'"}}
	res := b.Build(cb, view, noFailedCasts{}, 0, false)
	found := false
	for _, d := range res.Snapshot.Descriptors {
		if d.ManaType == engine.ManaRed {
			found = true
		}
		assert.NotEqual(t, engine.ManaBlue, d.ManaType)
	}
	assert.True(t, found)
	assert.Equal(t, "spell1", res.Payload["paying_for"])
}

func TestExtractPayingFor(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "abc-123", ExtractPayingFor("Pay mana for object_id='abc-123'"))
	assert.Equal(t, "", ExtractPayingFor("no object here"))
}
