package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PLAYER_NAME", "DECK_FILE", "ACTION_DELAY_MS", "ACTION_DELAY_WARMUP_COUNT",
		"INTERACTION_CAP", "ERROR_LOG_PATH", "BRIDGE_EVENT_LOG_PATH",
		"KEEP_ALIVE_AFTER_GAME", "CONFIG_FILE",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadRequiresPlayerName(t *testing.T) {
	clearEnv(t)
	_, err := Load()
	require.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("PLAYER_NAME", "Alice")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "Alice", cfg.PlayerName)
	assert.Equal(t, DefaultActionDelay, cfg.ActionDelay)
	assert.Equal(t, DefaultInteractionCap, cfg.InteractionCap)
	assert.Equal(t, DefaultErrorLogPath, cfg.ErrorLogPath)
	assert.False(t, cfg.KeepAliveAfterGame)
}

func TestLoadClampsInteractionCap(t *testing.T) {
	clearEnv(t)
	t.Setenv("PLAYER_NAME", "Alice")
	t.Setenv("INTERACTION_CAP", "1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, MinInteractionCap, cfg.InteractionCap)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PLAYER_NAME", "Bob")
	t.Setenv("ACTION_DELAY_MS", "1200")
	t.Setenv("INTERACTION_CAP", "30")
	t.Setenv("KEEP_ALIVE_AFTER_GAME", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1200*time.Millisecond, cfg.ActionDelay)
	assert.Equal(t, 30, cfg.InteractionCap)
	assert.True(t, cfg.KeepAliveAfterGame)
}

func TestLoadDeckFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("PLAYER_NAME", "Carol")

	dir := t.TempDir()
	deckPath := dir + "/deck.yaml"
	require.NoError(t, os.WriteFile(deckPath, []byte(`
maindeck:
  - name: Sol Ring
    quantity: 1
  - name: Island
    quantity: 17
sideboard: []
`), 0o644))
	t.Setenv("DECK_FILE", deckPath)

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.DeckList.Maindeck, 2)
	assert.Equal(t, "Sol Ring", cfg.DeckList.Maindeck[0].Name)
}
