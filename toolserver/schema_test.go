package toolserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GregorStocks/commander-bench-sub000/engine"
)

func TestSchemaValidator_AskRequiresAnswer(t *testing.T) {
	t.Parallel()
	v := NewSchemaValidator()

	err := v.Validate(engine.KindAsk, map[string]any{})
	assert.Error(t, err)

	err = v.Validate(engine.KindAsk, map[string]any{"answer": true})
	assert.NoError(t, err)

	err = v.Validate(engine.KindAsk, map[string]any{"answer": "yes"})
	assert.Error(t, err, "answer must be boolean")
}

func TestSchemaValidator_ChoosePileRequiresInteger(t *testing.T) {
	t.Parallel()
	v := NewSchemaValidator()

	assert.Error(t, v.Validate(engine.KindChoosePile, map[string]any{}))
	assert.NoError(t, v.Validate(engine.KindChoosePile, map[string]any{"pile": float64(1)}))
}

func TestSchemaValidator_UnregisteredKindAlwaysValidates(t *testing.T) {
	t.Parallel()
	v := NewSchemaValidator()
	assert.NoError(t, v.Validate(engine.KindUpdate, map[string]any{"anything": "goes"}))
}

func TestSchemaValidator_CompileCachePersistsAcrossCalls(t *testing.T) {
	t.Parallel()
	v := NewSchemaValidator()

	_, err := v.schemaFor(engine.KindGetAmount)
	require.NoError(t, err)
	first := v.compiled[engine.KindGetAmount]

	_, err = v.schemaFor(engine.KindGetAmount)
	require.NoError(t, err)
	assert.Same(t, first, v.compiled[engine.KindGetAmount])
}
