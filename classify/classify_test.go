package classify

import (
	"testing"

	"github.com/GregorStocks/commander-bench-sub000/engine"
	"github.com/stretchr/testify/assert"
)

func TestClassifyPassive(t *testing.T) {
	t.Parallel()
	assert.Equal(t, RoutePassive, Classify(engine.Callback{Kind: engine.KindUpdate}))
	assert.Equal(t, RoutePassive, Classify(engine.Callback{Kind: engine.KindChat}))
}

func TestClassifyChooseAbility(t *testing.T) {
	t.Parallel()
	assert.Equal(t, RouteChooseAbility, Classify(engine.Callback{Kind: engine.KindChooseAbility}))
}

func TestClassifyTargetAutoResolve(t *testing.T) {
	t.Parallel()
	cb := engine.Callback{Kind: engine.KindTarget, Payload: engine.Payload{Required: true, LegalTargets: []string{"t1"}}}
	assert.Equal(t, RouteTargetAutoResolve, Classify(cb))
}

func TestClassifyTargetAutoResolveFromOptionsFallback(t *testing.T) {
	t.Parallel()
	cb := engine.Callback{Kind: engine.KindTarget, Payload: engine.Payload{
		Required: true,
		Options:  map[string]any{"possibleTargets": []string{"t1"}},
	}}
	assert.Equal(t, RouteTargetAutoResolve, Classify(cb))
}

func TestClassifyTargetAutoResolveFromOfferedCardsFallback(t *testing.T) {
	t.Parallel()
	cb := engine.Callback{Kind: engine.KindTarget, Payload: engine.Payload{
		Required: true,
		Options:  map[string]any{"offeredCards": []any{"t1"}},
	}}
	assert.Equal(t, RouteTargetAutoResolve, Classify(cb))
}

func TestClassifyTargetMultipleLegal(t *testing.T) {
	t.Parallel()
	cb := engine.Callback{Kind: engine.KindTarget, Payload: engine.Payload{Required: true, LegalTargets: []string{"t1", "t2"}}}
	assert.Equal(t, RoutePending, Classify(cb))
}

func TestClassifyMana(t *testing.T) {
	t.Parallel()
	assert.Equal(t, RouteMana, Classify(engine.Callback{Kind: engine.KindPlayMana}))
	assert.Equal(t, RouteMana, Classify(engine.Callback{Kind: engine.KindPlayXMana}))
}

func TestClassifyDefaultPending(t *testing.T) {
	t.Parallel()
	assert.Equal(t, RoutePending, Classify(engine.Callback{Kind: engine.KindAsk}))
}
