package manaplan

import (
	"testing"

	"github.com/GregorStocks/commander-bench-sub000/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmpty(t *testing.T) {
	t.Parallel()
	entries, err := Parse("")
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestParseMixed(t *testing.T) {
	t.Parallel()
	entries, err := Parse(`[{"tap":"u1"},{"tap":"u2"},{"pool":"RED"}]`)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, Entry{Kind: EntryTap, ObjectID: "u1"}, entries[0])
	assert.Equal(t, Entry{Kind: EntryPool, ManaType: engine.ManaRed}, entries[2])
}

func TestParseUnknownPoolType(t *testing.T) {
	t.Parallel()
	_, err := Parse(`[{"pool":"PURPLE"}]`)
	assert.Error(t, err)
}

func TestPlanConsumptionOrder(t *testing.T) {
	t.Parallel()
	entries, err := Parse(`[{"tap":"u1"},{"tap":"u2"},{"pool":"RED"}]`)
	require.NoError(t, err)
	plan := NewPlan(entries)
	require.True(t, plan.Active())

	e1, ok := plan.Pop()
	require.True(t, ok)
	assert.Equal(t, "u1", e1.ObjectID)
	assert.Equal(t, 2, plan.Len())

	plan.Pop()
	assert.False(t, plan.Empty())

	e3, ok := plan.Pop()
	require.True(t, ok)
	assert.Equal(t, engine.ManaRed, e3.ManaType)
	assert.True(t, plan.Empty())

	_, ok = plan.Pop()
	assert.False(t, ok)
}

func TestNilPlanIsInactiveAndEmpty(t *testing.T) {
	t.Parallel()
	var plan *Plan
	assert.False(t, plan.Active())
	assert.True(t, plan.Empty())
	assert.Equal(t, 0, plan.Len())
	_, ok := plan.Pop()
	assert.False(t, ok)
}
