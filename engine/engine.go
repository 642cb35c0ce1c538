// Package engine defines the data model and collaborator interfaces for the
// third-party rules engine: the callback kinds it emits, the game view it
// carries, and the typed response primitives the core dispatches back.
package engine

import (
	"context"
	"time"
)

// Kind identifies the shape of a Callback.
type Kind string

const (
	KindAsk             Kind = "ASK"
	KindSelect          Kind = "SELECT"
	KindTarget          Kind = "TARGET"
	KindChooseAbility   Kind = "CHOOSE_ABILITY"
	KindChooseChoice    Kind = "CHOOSE_CHOICE"
	KindChoosePile      Kind = "CHOOSE_PILE"
	KindPlayMana        Kind = "PLAY_MANA"
	KindPlayXMana       Kind = "PLAY_XMANA"
	KindGetAmount       Kind = "GET_AMOUNT"
	KindGetMultiAmount  Kind = "GET_MULTI_AMOUNT"
	KindGameOver        Kind = "GAME_OVER"
	KindUpdate          Kind = "UPDATE"
	KindChat            Kind = "CHAT"
	KindError           Kind = "ERROR"
	KindStartGame       Kind = "START_GAME"
)

// Actionable reports whether callbacks of this kind demand a typed response
// from the agent (as opposed to passive kinds that only update state).
func (k Kind) Actionable() bool {
	switch k {
	case KindUpdate, KindChat, KindError, KindStartGame:
		return false
	default:
		return true
	}
}

// ManaType is one of the six mana pool channels.
type ManaType string

const (
	ManaWhite     ManaType = "W"
	ManaBlue      ManaType = "U"
	ManaBlack     ManaType = "B"
	ManaRed       ManaType = "R"
	ManaGreen     ManaType = "G"
	ManaColorless ManaType = "C"
)

// OrderedManaTypes is the canonical W,U,B,R,G,C enumeration order used
// whenever pool choices are offered without an explicit prompt symbol.
var OrderedManaTypes = []ManaType{ManaWhite, ManaBlue, ManaBlack, ManaRed, ManaGreen, ManaColorless}

// Callback is one asynchronous message from the engine. Immutable once
// received.
type Callback struct {
	GameID    string
	Kind      Kind
	Payload   Payload
	Received  time.Time
}

// Payload carries kind-specific data. Only the fields relevant to Kind are
// populated; the rest are zero.
type Payload struct {
	// Prompt is the human-readable prompt text shown to the agent.
	Prompt string

	// View is the game-state snapshot carried on most callbacks.
	View *GameView

	// Required marks a TARGET callback as mandatory (agent cannot decline).
	Required bool

	// LegalTargets lists target IDs for a TARGET callback.
	LegalTargets []string

	// Options carries raw engine-supplied option data: possibleAttackers,
	// possibleBlockers, possibleTargets, offered cards, etc.
	Options map[string]any

	// Abilities maps ability index/key to its description for
	// CHOOSE_ABILITY.
	Abilities []string

	// Choices lists the raw string choices for CHOOSE_CHOICE.
	Choices []string

	// Pile1, Pile2 list card names for CHOOSE_PILE.
	Pile1 []string
	Pile2 []string

	// Min, Max bound a GET_AMOUNT prompt.
	Min, Max int

	// MultiAmounts describes each item of a GET_MULTI_AMOUNT prompt.
	MultiAmounts []AmountSpec

	// PayingFor is the object ID a PLAY_MANA / PLAY_XMANA callback is
	// paying mana for, extracted from the prompt's embedded object_id.
	PayingFor string

	// ChatFrom, ChatText populate a CHAT callback.
	ChatFrom string
	ChatText string

	// LogLine populates an UPDATE callback's raw log line, if any.
	LogLine string

	// LocalPlayerID carries the local player's engine-assigned ID on a
	// START_GAME callback.
	LocalPlayerID string
}

// AmountSpec describes one item of a GET_MULTI_AMOUNT prompt.
type AmountSpec struct {
	Description string
	Min, Max, Default int
}

// GameView is the cached snapshot of engine state carried on most callbacks.
type GameView struct {
	Turn          int
	Phase         string
	Step          string
	ActivePlayer  string
	PriorityPlayer string

	Players []PlayerView

	Stack []StackEntry

	Combat []CombatGroup

	// Playable maps object ID to the list of playable ability names it
	// offers right now. PureManaAbilities lists, for the same object ID,
	// the subset of those abilities that are pure mana abilities.
	Playable          map[string][]string
	PureManaAbilities map[string][]string
}

// PlayerView is one player's visible state.
type PlayerView struct {
	Name        string
	Life        int
	LibrarySize int
	HandSize    int
	Hand        []CardView // populated only for the local player's mulligan prompts
	Battlefield []Permanent
	Graveyard   []string
	Exile       []string
	ManaPool    map[ManaType]int
	Counters    map[string]int
	Commanders  []string
}

// CardView describes a hand card for mulligan display.
type CardView struct {
	Name     string
	ManaCost string
	ManaValue int
	IsLand   bool
	Power, Toughness int
}

// Permanent is one battlefield object.
type Permanent struct {
	ID                string
	Name              string
	Tapped            bool
	Power, Toughness  int
	Loyalty           int
	Counters          map[string]int
	SummoningSickness bool
	Token             bool
	Copy              bool
	FaceDown          bool
	Controller        string
}

// StackEntry is one object on the stack.
type StackEntry struct {
	ObjectID   string
	RulesText  string
	TargetCount int
}

// CombatGroup pairs an attacker with its blockers.
type CombatGroup struct {
	Attacker string
	Blockers []string
	Defender string
}

// Response is a typed reply sent back to the engine.
type Response struct {
	GameID   string
	Type     ResponseType
	UUID     string
	Bool     bool
	String   string
	Int      int
	ManaType ManaType
	// PlayerID is required alongside ManaType for send-mana-type responses.
	PlayerID string
}

// ResponseType identifies which of the five response primitives was used.
type ResponseType string

const (
	ResponseUUID     ResponseType = "uuid"
	ResponseBool     ResponseType = "boolean"
	ResponseString   ResponseType = "string"
	ResponseInt      ResponseType = "integer"
	ResponseManaType ResponseType = "mana_type"
)

// Responder is the collaborator interface the core dispatches typed
// responses through, plus the player-action primitive used for server-side
// yields and the two chat primitives.
type Responder interface {
	SendUUID(ctx context.Context, gameID, value string) error
	SendBool(ctx context.Context, gameID string, value bool) error
	SendString(ctx context.Context, gameID, value string) error
	SendInt(ctx context.Context, gameID string, value int) error
	SendManaType(ctx context.Context, gameID, playerID string, value ManaType) error

	// PlayerAction issues the engine's own "pass until X" action for
	// server-side yield modes.
	PlayerAction(ctx context.Context, gameID, action string) error

	SendChat(ctx context.Context, gameID, message string) error
	JoinChat(ctx context.Context, gameID string) error
}

// Source is the collaborator interface the core consumes the asynchronous
// callback stream through.
type Source interface {
	// Callbacks returns a channel of incoming callbacks; closed when the
	// engine connection ends.
	Callbacks() <-chan Callback
}
