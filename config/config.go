// Package config loads the per-process configuration surface: player
// identity, decklist, action-delay pacing, the per-turn interaction cap, log
// paths, and the keep-alive-after-game flag. Configuration is loaded from
// environment variables with an optional YAML file overlay, matching the
// layered approach used across the corpus's command entrypoints.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the fully resolved process configuration surface (spec §6).
type Config struct {
	// PlayerName is the display identity used to detect the player's own
	// death in the game log.
	PlayerName string `yaml:"player_name"`

	// DeckList is the verbatim deck contents, exposed by get_decklist and
	// scanned for creature types when filtering large CHOOSE_CHOICE lists.
	DeckList DeckList `yaml:"deck_list"`

	// ActionDelay is the configured pause before dispatching a response for
	// passive personalities.
	ActionDelay time.Duration `yaml:"action_delay"`

	// ActionDelayWarmupCount is the number of initial actions paced at
	// DefaultActionDelay before ActionDelay takes effect.
	ActionDelayWarmupCount int `yaml:"action_delay_warmup_count"`

	// InteractionCap is the per-turn interaction ceiling; must be >= MinInteractionCap.
	InteractionCap int `yaml:"interaction_cap"`

	// ErrorLogPath is the file errors are appended to, newline-separated.
	ErrorLogPath string `yaml:"error_log_path"`

	// BridgeEventLogPath is the file bridge events are appended to as
	// newline-delimited JSON.
	BridgeEventLogPath string `yaml:"bridge_event_log_path"`

	// KeepAliveAfterGame controls whether the process stays up once the
	// engine reports game over.
	KeepAliveAfterGame bool `yaml:"keep_alive_after_game"`
}

// DeckList is a player's maindeck and optional sideboard.
type DeckList struct {
	Maindeck  []CardQuantity `yaml:"maindeck"`
	Sideboard []CardQuantity `yaml:"sideboard,omitempty"`
}

// CardQuantity pairs a card name with the copies run.
type CardQuantity struct {
	Name     string `yaml:"name"`
	Quantity int    `yaml:"quantity"`
}

const (
	// DefaultActionDelay is the action delay used during warmup and absent
	// any override.
	DefaultActionDelay = 500 * time.Millisecond
	// DefaultActionDelayWarmupCount is the number of actions paced at
	// DefaultActionDelay before ActionDelay applies.
	DefaultActionDelayWarmupCount = 20
	// DefaultInteractionCap is the per-turn interaction ceiling absent an
	// override.
	DefaultInteractionCap = 25
	// MinInteractionCap is the lowest interaction cap the bridge accepts.
	MinInteractionCap = 5
	// DefaultErrorLogPath is the error log location absent an override.
	DefaultErrorLogPath = "mcp-error.log"
	// DefaultBridgeEventLogPath is the bridge event log location absent an
	// override.
	DefaultBridgeEventLogPath = "mcp-events.log"
)

// Load resolves the configuration surface from environment variables,
// optionally overlaid by a YAML file named by CONFIG_FILE.
//
// Environment variables:
//
//	PLAYER_NAME                  - display identity (required)
//	DECK_FILE                    - path to a YAML deck list (optional)
//	ACTION_DELAY_MS              - response pacing in milliseconds (default: 500)
//	ACTION_DELAY_WARMUP_COUNT    - actions paced at the default before ACTION_DELAY_MS applies (default: 20)
//	INTERACTION_CAP              - per-turn interaction ceiling, clamped to >= 5 (default: 25)
//	ERROR_LOG_PATH               - error log file (default: mcp-error.log)
//	BRIDGE_EVENT_LOG_PATH        - bridge event log file (default: mcp-events.log)
//	KEEP_ALIVE_AFTER_GAME        - "true" to keep the process up after game over (default: false)
//	CONFIG_FILE                  - optional YAML file overlaying the above
func Load() (Config, error) {
	cfg := Config{
		ActionDelay:            DefaultActionDelay,
		ActionDelayWarmupCount: DefaultActionDelayWarmupCount,
		InteractionCap:         DefaultInteractionCap,
		ErrorLogPath:           DefaultErrorLogPath,
		BridgeEventLogPath:     DefaultBridgeEventLogPath,
	}

	cfg.PlayerName = envOr("PLAYER_NAME", cfg.PlayerName)
	cfg.ErrorLogPath = envOr("ERROR_LOG_PATH", cfg.ErrorLogPath)
	cfg.BridgeEventLogPath = envOr("BRIDGE_EVENT_LOG_PATH", cfg.BridgeEventLogPath)
	cfg.ActionDelay = envDurationMsOr("ACTION_DELAY_MS", cfg.ActionDelay)
	cfg.ActionDelayWarmupCount = envIntOr("ACTION_DELAY_WARMUP_COUNT", cfg.ActionDelayWarmupCount)
	cfg.InteractionCap = envIntOr("INTERACTION_CAP", cfg.InteractionCap)
	cfg.KeepAliveAfterGame = envBoolOr("KEEP_ALIVE_AFTER_GAME", cfg.KeepAliveAfterGame)

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		if err := loadYAMLFile(file, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config file %q: %w", file, err)
		}
	}

	if deckFile := os.Getenv("DECK_FILE"); deckFile != "" {
		deck, err := loadDeckFile(deckFile)
		if err != nil {
			return Config{}, fmt.Errorf("load deck file %q: %w", deckFile, err)
		}
		cfg.DeckList = deck
	}

	if cfg.PlayerName == "" {
		return Config{}, fmt.Errorf("PLAYER_NAME is required")
	}
	if cfg.InteractionCap < MinInteractionCap {
		cfg.InteractionCap = MinInteractionCap
	}

	return cfg, nil
}

func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func loadDeckFile(path string) (DeckList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DeckList{}, err
	}
	var deck DeckList
	if err := yaml.Unmarshal(data, &deck); err != nil {
		return DeckList{}, err
	}
	return deck, nil
}

func envOr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOr(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envDurationMsOr(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultVal
}

func envBoolOr(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}
