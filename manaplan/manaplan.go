// Package manaplan parses and consumes an agent-supplied mana-payment plan:
// an ordered queue of tap/pool entries consumed head-first as PLAY_MANA and
// PLAY_XMANA callbacks arrive for a single spell cast.
package manaplan

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/GregorStocks/commander-bench-sub000/engine"
)

// EntryKind distinguishes a tap entry (pay with a specific permanent) from a
// pool entry (pay from the floating mana pool).
type EntryKind string

const (
	EntryTap  EntryKind = "tap"
	EntryPool EntryKind = "pool"
)

// Entry is one step of a mana plan.
type Entry struct {
	Kind     EntryKind
	ObjectID string         // set when Kind == EntryTap
	ManaType engine.ManaType // set when Kind == EntryPool
}

// rawEntry mirrors the wire shape an agent sends: {"tap": "<uuid>"} or
// {"pool": "RED"}.
type rawEntry struct {
	Tap  string `json:"tap,omitempty"`
	Pool string `json:"pool,omitempty"`
}

// manaTypeAliases maps the long-form pool names the source historically used
// (and that agents tend to send) onto the single-letter channel.
var manaTypeAliases = map[string]engine.ManaType{
	"W": engine.ManaWhite, "WHITE": engine.ManaWhite,
	"U": engine.ManaBlue, "BLUE": engine.ManaBlue,
	"B": engine.ManaBlack, "BLACK": engine.ManaBlack,
	"R": engine.ManaRed, "RED": engine.ManaRed,
	"G": engine.ManaGreen, "GREEN": engine.ManaGreen,
	"C": engine.ManaColorless, "COLORLESS": engine.ManaColorless,
}

// Parse decodes an agent-supplied mana_plan JSON array into an ordered list
// of entries. An empty or whitespace-only string is treated as "no plan"
// and returns a nil slice with no error.
func Parse(raw string) ([]Entry, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var rawEntries []rawEntry
	if err := json.Unmarshal([]byte(raw), &rawEntries); err != nil {
		return nil, fmt.Errorf("parse mana_plan: %w", err)
	}
	entries := make([]Entry, 0, len(rawEntries))
	for i, re := range rawEntries {
		switch {
		case re.Tap != "":
			entries = append(entries, Entry{Kind: EntryTap, ObjectID: re.Tap})
		case re.Pool != "":
			mt, ok := manaTypeAliases[strings.ToUpper(re.Pool)]
			if !ok {
				return nil, fmt.Errorf("mana_plan[%d]: unknown pool mana type %q", i, re.Pool)
			}
			entries = append(entries, Entry{Kind: EntryPool, ManaType: mt})
		default:
			return nil, fmt.Errorf("mana_plan[%d]: must set tap or pool", i)
		}
	}
	return entries, nil
}

// Plan is the Arbitrator's mutable mana-plan queue. It is attached to the
// Arbitrator, not to the pending action, because the engine sends one fresh
// callback per mana pip; the plan must survive across that whole sequence
// within a single spell cast.
type Plan struct {
	mu      sync.Mutex
	entries []Entry
}

// NewPlan constructs a Plan from a parsed entry list. A nil or empty slice
// means no plan is active.
func NewPlan(entries []Entry) *Plan {
	if len(entries) == 0 {
		return nil
	}
	return &Plan{entries: entries}
}

// Active reports whether a plan exists (nil-safe).
func (p *Plan) Active() bool {
	return p != nil
}

// Pop removes and returns the head entry. ok is false if the plan is nil or
// already empty.
func (p *Plan) Pop() (entry Entry, ok bool) {
	if p == nil {
		return Entry{}, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.entries) == 0 {
		return Entry{}, false
	}
	entry = p.entries[0]
	p.entries = p.entries[1:]
	return entry, true
}

// Empty reports whether the plan has no entries remaining (nil counts as
// empty).
func (p *Plan) Empty() bool {
	if p == nil {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries) == 0
}

// Len reports the number of entries remaining.
func (p *Plan) Len() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
