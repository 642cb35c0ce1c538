// Package choice builds the indexed, typed choice list the Arbitrator hands
// to the agent for a pending action (ChoiceBuilder, spec §4.3), and holds
// the most recently built snapshot so `choose` can resolve an index back to
// an engine value (ChoiceSnapshot).
package choice

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/GregorStocks/commander-bench-sub000/engine"
)

// Descriptor maps one zero-based choice index to the engine value it
// resolves to, plus the display fields shown to the agent.
type Descriptor struct {
	Index int

	// Resolution: exactly one of ObjectID, Sentinel, ManaType, Key is
	// meaningful, depending on the generating callback kind.
	ObjectID string
	Sentinel string
	ManaType engine.ManaType
	Key      string

	Name             string
	Action           string // cast | land | activate
	ManaCost         string
	Power, Toughness int
	Abilities        []string // non-mana ability names, for activated abilities

	TargetType string // permanent | card | player
	Controller string
	Tapped     bool
	IsYou      bool
}

// Snapshot is the most recently built choice list plus its diagnostics.
// Non-nil only when it was produced from the currently pending action.
type Snapshot struct {
	Descriptors  []Descriptor
	ActionType   engine.Kind
	ResponseType engine.ResponseType
	GeneratedAt  time.Time
	Note         string // e.g. the CHOOSE_CHOICE creature-type filter explanation
}

// Len returns the number of choices in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Descriptors)
}

// objectIDRe extracts the paying-for object id from a PLAY_MANA prompt, e.g.
// "Pay mana for object_id='abc-123'".
var objectIDRe = regexp.MustCompile(`object_id='([^']+)'`)

// ExtractPayingFor extracts the object ID a mana prompt is paying for.
func ExtractPayingFor(prompt string) string {
	m := objectIDRe.FindStringSubmatch(prompt)
	if m == nil {
		return ""
	}
	return m[1]
}

// manaSymbolRe finds explicit mana symbols in a prompt, e.g. {W}, {U/B}, {2/R}.
var manaSymbolRe = regexp.MustCompile(`\{([^}]+)\}`)

// explicitPoolTypes returns the pool mana types an explicit prompt symbol
// set calls for, in the order the symbols appear. A hybrid symbol like
// {U/B} offers both U and B; a generic/numeric symbol like {2} or {X}
// contributes nothing.
func explicitPoolTypes(prompt string) []engine.ManaType {
	var types []engine.ManaType
	seen := map[engine.ManaType]bool{}
	for _, m := range manaSymbolRe.FindAllStringSubmatch(prompt, -1) {
		for _, part := range strings.Split(m[1], "/") {
			mt, ok := symbolToManaType[strings.ToUpper(part)]
			if !ok {
				continue
			}
			if !seen[mt] {
				seen[mt] = true
				types = append(types, mt)
			}
		}
	}
	return types
}

var symbolToManaType = map[string]engine.ManaType{
	"W": engine.ManaWhite,
	"U": engine.ManaBlue,
	"B": engine.ManaBlack,
	"R": engine.ManaRed,
	"G": engine.ManaGreen,
	"C": engine.ManaColorless,
}

// Builder converts a pending callback plus the cached game view into an
// indexed choice payload, recording a fresh Snapshot each time.
type Builder struct {
	// CreatureTypesInDeck is consulted to filter large CHOOSE_CHOICE lists.
	// Nil or empty disables filtering.
	CreatureTypesInDeck map[string]bool
}

// NewBuilder constructs a Builder.
func NewBuilder(creatureTypesInDeck map[string]bool) *Builder {
	return &Builder{CreatureTypesInDeck: creatureTypesInDeck}
}

// Result is the full payload handed to the agent for one pending action.
type Result struct {
	Snapshot *Snapshot
	Payload  map[string]any
}

// failedManaCastsFilter is satisfied by the Arbitrator's failed_mana_casts
// set so ChoiceBuilder can skip objects already tried and failed this turn.
type failedManaCastsFilter interface {
	Contains(objectID string) bool
}

// Build produces the indexed choice payload for cb, given the current game
// view and the set of object IDs already tried and failed for mana this
// turn. landDropsUsed is the count of lands played this turn, surfaced on
// our main phase.
func (b *Builder) Build(cb engine.Callback, view *engine.GameView, failedManaCasts failedManaCastsFilter, landDropsUsed int, weAreActiveOnMain bool) Result {
	snap := &Snapshot{ActionType: cb.Kind, GeneratedAt: time.Now()}
	payload := map[string]any{
		"action_pending": true,
		"action_type":    string(cb.Kind),
		"message":        cb.Payload.Prompt,
	}
	if view != nil {
		payload["context"] = contextString(view)
		payload["players"] = playersSummary(view)
		if pool := ourManaPool(view); pool != nil {
			payload["mana_pool"] = pool
		}
		payload["untapped_lands"] = untappedLandCount(view)
		if weAreActiveOnMain {
			payload["land_drops_used"] = landDropsUsed
		}
	}

	switch cb.Kind {
	case engine.KindAsk:
		snap.ResponseType = engine.ResponseBool
		payload["response_type"] = string(engine.ResponseBool)
		if isMulliganPrompt(cb.Payload.Prompt) && view != nil {
			payload["hand"] = mulliganHand(view)
		}

	case engine.KindSelect:
		b.buildSelect(cb, view, failedManaCasts, snap, payload)

	case engine.KindTarget:
		b.buildTarget(cb, view, snap, payload)

	case engine.KindChooseAbility:
		snap.ResponseType = engine.ResponseInt
		payload["response_type"] = string(engine.ResponseInt)
		for i, desc := range cb.Payload.Abilities {
			snap.Descriptors = append(snap.Descriptors, Descriptor{Index: i, Key: desc, Name: desc})
		}
		payload["choices"] = descriptorsToMaps(snap.Descriptors)

	case engine.KindChooseChoice:
		b.buildChooseChoice(cb, snap, payload)

	case engine.KindChoosePile:
		snap.ResponseType = engine.ResponseInt
		payload["response_type"] = string(engine.ResponseInt)
		snap.Descriptors = []Descriptor{
			{Index: 0, Key: "1", Name: "pile 1"},
			{Index: 1, Key: "2", Name: "pile 2"},
		}
		payload["pile_1"] = cb.Payload.Pile1
		payload["pile_2"] = cb.Payload.Pile2
		payload["choices"] = descriptorsToMaps(snap.Descriptors)

	case engine.KindPlayMana, engine.KindPlayXMana:
		b.buildMana(cb, view, failedManaCasts, snap, payload)

	case engine.KindGetAmount:
		snap.ResponseType = engine.ResponseInt
		payload["response_type"] = string(engine.ResponseInt)
		payload["min"] = cb.Payload.Min
		payload["max"] = cb.Payload.Max

	case engine.KindGetMultiAmount:
		snap.ResponseType = engine.ResponseString
		payload["response_type"] = string(engine.ResponseString)
		items := make([]map[string]any, 0, len(cb.Payload.MultiAmounts))
		for _, a := range cb.Payload.MultiAmounts {
			items = append(items, map[string]any{
				"description": a.Description,
				"min":         a.Min,
				"max":         a.Max,
				"default":     a.Default,
			})
		}
		payload["amounts"] = items
	}

	payload["choice_diagnostics"] = map[string]any{
		"action_type":   string(snap.ActionType),
		"response_type": string(snap.ResponseType),
		"count":         len(snap.Descriptors),
		"generated_at":  snap.GeneratedAt,
	}
	if snap.Note != "" {
		payload["note"] = snap.Note
	}

	return Result{Snapshot: snap, Payload: payload}
}

func (b *Builder) buildSelect(cb engine.Callback, view *engine.GameView, failedManaCasts failedManaCastsFilter, snap *Snapshot, payload map[string]any) {
	if attackers, ok := cb.Payload.Options["possibleAttackers"]; ok {
		ids := toStringSlice(attackers)
		payload["combat_phase"] = "declare_attackers"
		b.buildCombatSelect(ids, view, snap, payload)
		return
	}
	if blockers, ok := cb.Payload.Options["possibleBlockers"]; ok {
		ids := toStringSlice(blockers)
		payload["combat_phase"] = "declare_blockers"
		b.buildCombatSelect(ids, view, snap, payload)
		return
	}

	var playableIDs []string
	if view != nil {
		for id := range view.Playable {
			playableIDs = append(playableIDs, id)
		}
		sort.Strings(playableIDs)
	}

	idx := 0
	for _, id := range playableIDs {
		abilities := view.Playable[id]
		manaAbilities := view.PureManaAbilities[id]
		nonMana := subtractStrings(abilities, manaAbilities)
		if len(nonMana) == 0 {
			continue // only mana abilities: paid through PLAY_MANA, not SELECT
		}
		if failedManaCasts != nil && failedManaCasts.Contains(id) {
			continue
		}
		perm := findPermanent(view, id)
		d := Descriptor{Index: idx, ObjectID: id, Name: displayName(view, id), Action: selectAction(nonMana)}
		if perm != nil {
			d.Power, d.Toughness = perm.Power, perm.Toughness
		}
		d.Abilities = nonMana
		snap.Descriptors = append(snap.Descriptors, d)
		idx++
	}

	if len(snap.Descriptors) == 0 {
		snap.ResponseType = engine.ResponseBool
		payload["response_type"] = string(engine.ResponseBool)
		return
	}
	snap.ResponseType = engine.ResponseUUID
	payload["response_type"] = string(engine.ResponseUUID)
	payload["choices"] = descriptorsToMaps(snap.Descriptors)
}

func (b *Builder) buildCombatSelect(ids []string, view *engine.GameView, snap *Snapshot, payload map[string]any) {
	idx := 0
	for _, id := range ids {
		perm := findPermanent(view, id)
		d := Descriptor{Index: idx, ObjectID: id, Name: displayName(view, id)}
		if perm != nil {
			d.Power, d.Toughness = perm.Power, perm.Toughness
			d.Tapped = perm.Tapped
		}
		snap.Descriptors = append(snap.Descriptors, d)
		idx++
	}
	snap.Descriptors = append(snap.Descriptors, Descriptor{Index: idx, Sentinel: "all_attack", Name: "All attack"})
	snap.ResponseType = engine.ResponseUUID
	payload["response_type"] = string(engine.ResponseUUID)
	payload["choices"] = descriptorsToMaps(snap.Descriptors)
}

// ResolveTargets returns the legal target list for a TARGET callback,
// merging cb.Payload.LegalTargets with the options.possibleTargets and
// options.offeredCards fallback sources an engine may use instead of the
// dedicated field. Classify, DefaultAction, and buildTarget all need the
// same merged list to decide whether a required TARGET has exactly one
// legal target and auto-resolves rather than reaching the agent.
func ResolveTargets(cb engine.Callback) []string {
	targets := cb.Payload.LegalTargets
	if len(targets) == 0 {
		if raw, ok := cb.Payload.Options["possibleTargets"]; ok {
			targets = toStringSlice(raw)
		}
	}
	if len(targets) == 0 {
		if raw, ok := cb.Payload.Options["offeredCards"]; ok {
			targets = toStringSlice(raw)
		}
	}
	return targets
}

func (b *Builder) buildTarget(cb engine.Callback, view *engine.GameView, snap *Snapshot, payload map[string]any) {
	targets := ResolveTargets(cb)

	if len(targets) == 0 && !cb.Payload.Required {
		payload["auto_cancelled"] = true
		payload["action_taken"] = "auto_cancelled_no_targets"
		snap.Descriptors = nil
		return
	}

	for i, id := range targets {
		d := Descriptor{Index: i, ObjectID: id, Name: displayName(view, id), TargetType: targetType(view, id)}
		if perm := findPermanent(view, id); perm != nil {
			d.Power, d.Toughness = perm.Power, perm.Toughness
			d.Tapped = perm.Tapped
			d.Controller = perm.Controller
			d.IsYou = isLocalPlayer(view, perm.Controller)
		} else if isLocalPlayer(view, id) {
			d.TargetType = "player"
			d.IsYou = true
		}
		snap.Descriptors = append(snap.Descriptors, d)
	}
	snap.ResponseType = engine.ResponseUUID
	payload["response_type"] = string(engine.ResponseUUID)
	payload["choices"] = descriptorsToMaps(snap.Descriptors)
}

// chooseChoiceFilterThreshold is the set size above which a creature-type
// filter is attempted, per spec §4.3 / §8.
const chooseChoiceFilterThreshold = 50

func (b *Builder) buildChooseChoice(cb engine.Callback, snap *Snapshot, payload map[string]any) {
	choices := cb.Payload.Choices
	if len(choices) >= chooseChoiceFilterThreshold && len(b.CreatureTypesInDeck) > 0 {
		var filtered []string
		for _, c := range choices {
			if b.CreatureTypesInDeck[strings.ToLower(c)] {
				filtered = append(filtered, c)
			}
		}
		if len(filtered) > 0 {
			choices = filtered
			snap.Note = "filtered to creature types in your deck; send text to pick any value"
		}
	}
	for i, c := range choices {
		snap.Descriptors = append(snap.Descriptors, Descriptor{Index: i, Key: c, Name: c})
	}
	snap.ResponseType = engine.ResponseString
	payload["response_type"] = string(engine.ResponseString)
	payload["choices"] = descriptorsToMaps(snap.Descriptors)
}

func (b *Builder) buildMana(cb engine.Callback, view *engine.GameView, failedManaCasts failedManaCastsFilter, snap *Snapshot, payload map[string]any) {
	payingFor := cb.Payload.PayingFor
	if payingFor == "" {
		payingFor = ExtractPayingFor(cb.Payload.Prompt)
	}

	var sourceIDs []string
	if view != nil {
		for id := range view.Playable {
			sourceIDs = append(sourceIDs, id)
		}
		sort.Strings(sourceIDs)
	}
	idx := 0
	for _, id := range sourceIDs {
		if id == payingFor {
			continue
		}
		if failedManaCasts != nil && failedManaCasts.Contains(id) {
			continue
		}
		if len(view.PureManaAbilities[id]) == 0 {
			continue
		}
		snap.Descriptors = append(snap.Descriptors, Descriptor{Index: idx, ObjectID: id, Name: displayName(view, id)})
		idx++
	}

	explicit := explicitPoolTypes(cb.Payload.Prompt)
	var poolTypes []engine.ManaType
	if len(explicit) > 0 {
		poolTypes = explicit
	} else if view != nil {
		pool := ourManaPoolRaw(view)
		for _, mt := range engine.OrderedManaTypes {
			if pool[mt] > 0 {
				poolTypes = append(poolTypes, mt)
			}
		}
	}
	for _, mt := range poolTypes {
		snap.Descriptors = append(snap.Descriptors, Descriptor{Index: idx, ManaType: mt, Name: string(mt)})
		idx++
	}

	snap.ResponseType = engine.ResponseUUID
	payload["response_type"] = string(engine.ResponseUUID)
	payload["choices"] = descriptorsToMaps(snap.Descriptors)
	payload["paying_for"] = payingFor
}

// DescriptorsPayload renders descriptors in the same shape Build attaches to
// a payload's "choices" key, for callers that need to re-attach a snapshot's
// choices outside of Build (e.g. on a validation error).
func DescriptorsPayload(descs []Descriptor) []map[string]any {
	return descriptorsToMaps(descs)
}

func descriptorsToMaps(descs []Descriptor) []map[string]any {
	out := make([]map[string]any, 0, len(descs))
	for _, d := range descs {
		m := map[string]any{"index": d.Index, "name": d.Name}
		if d.ObjectID != "" {
			m["id"] = d.ObjectID
		}
		if d.Sentinel != "" {
			m["sentinel"] = d.Sentinel
		}
		if d.ManaType != "" {
			m["mana_type"] = string(d.ManaType)
		}
		if d.Key != "" {
			m["key"] = d.Key
		}
		if d.Action != "" {
			m["action"] = d.Action
		}
		if d.ManaCost != "" {
			m["mana_cost"] = d.ManaCost
		}
		if d.Power != 0 || d.Toughness != 0 {
			m["power"] = d.Power
			m["toughness"] = d.Toughness
		}
		if len(d.Abilities) > 0 {
			m["abilities"] = d.Abilities
		}
		if d.TargetType != "" {
			m["target_type"] = d.TargetType
		}
		if d.Controller != "" {
			m["controller"] = d.Controller
		}
		if d.Tapped {
			m["tapped"] = d.Tapped
		}
		if d.IsYou {
			m["is_you"] = d.IsYou
		}
		out = append(out, m)
	}
	return out
}

func contextString(view *engine.GameView) string {
	yourMain := ""
	if isOurMainPhase(view) {
		yourMain = " YOUR_MAIN?"
	}
	return fmt.Sprintf("T%d %s/%s (%s)%s", view.Turn, view.Phase, view.Step, view.ActivePlayer, yourMain)
}

func isOurMainPhase(view *engine.GameView) bool {
	return strings.Contains(strings.ToLower(view.Phase), "main")
}

func playersSummary(view *engine.GameView) string {
	parts := make([]string, 0, len(view.Players))
	for _, p := range view.Players {
		suffix := ""
		if isLocalPlayer(view, p.Name) {
			suffix = " (you)"
		}
		parts = append(parts, fmt.Sprintf("%s: %d%s", p.Name, p.Life, suffix))
	}
	return strings.Join(parts, ", ")
}

// isLocalPlayer is a placeholder hook; the Arbitrator always calls Build
// with a view whose Players[0] convention marks the local player, matching
// the rest of the cached state. Kept as a function so tests can stub it via
// a single-player view without a dedicated field.
func isLocalPlayer(view *engine.GameView, name string) bool {
	if view == nil || len(view.Players) == 0 {
		return false
	}
	return view.Players[0].Name == name
}

func ourManaPool(view *engine.GameView) map[string]int {
	raw := ourManaPoolRaw(view)
	if raw == nil {
		return nil
	}
	out := make(map[string]int, len(raw))
	for k, v := range raw {
		out[string(k)] = v
	}
	return out
}

func ourManaPoolRaw(view *engine.GameView) map[engine.ManaType]int {
	if view == nil || len(view.Players) == 0 {
		return nil
	}
	return view.Players[0].ManaPool
}

func untappedLandCount(view *engine.GameView) int {
	if view == nil || len(view.Players) == 0 {
		return 0
	}
	count := 0
	for _, perm := range view.Players[0].Battlefield {
		if !perm.Tapped && strings.Contains(strings.ToLower(perm.Name), "land") {
			count++
		}
	}
	return count
}

func isMulliganPrompt(prompt string) bool {
	return strings.Contains(strings.ToLower(prompt), "mulligan")
}

func mulliganHand(view *engine.GameView) []map[string]any {
	if len(view.Players) == 0 {
		return nil
	}
	hand := view.Players[0].Hand
	out := make([]map[string]any, 0, len(hand))
	for _, c := range hand {
		out = append(out, map[string]any{
			"name":      c.Name,
			"mana_cost": c.ManaCost,
			"mana_value": c.ManaValue,
			"is_land":   c.IsLand,
			"power":     c.Power,
			"toughness": c.Toughness,
		})
	}
	return out
}

func findPermanent(view *engine.GameView, id string) *engine.Permanent {
	if view == nil {
		return nil
	}
	for _, p := range view.Players {
		for i := range p.Battlefield {
			if p.Battlefield[i].ID == id {
				return &p.Battlefield[i]
			}
		}
	}
	return nil
}

func displayName(view *engine.GameView, id string) string {
	if perm := findPermanent(view, id); perm != nil {
		return perm.Name
	}
	return id
}

func targetType(view *engine.GameView, id string) string {
	if findPermanent(view, id) != nil {
		return "permanent"
	}
	if isLocalPlayer(view, id) {
		return "player"
	}
	for _, p := range view.Players {
		if p.Name == id {
			return "player"
		}
	}
	return "card"
}

func selectAction(nonManaAbilities []string) string {
	for _, a := range nonManaAbilities {
		lower := strings.ToLower(a)
		if strings.Contains(lower, "play land") || strings.Contains(lower, "land drop") {
			return "land"
		}
		if strings.Contains(lower, "cast") {
			return "cast"
		}
	}
	return "activate"
}

func subtractStrings(all, remove []string) []string {
	removeSet := make(map[string]bool, len(remove))
	for _, r := range remove {
		removeSet[r] = true
	}
	var out []string
	for _, a := range all {
		if !removeSet[a] {
			out = append(out, a)
		}
	}
	return out
}

func toStringSlice(v any) []string {
	switch val := v.(type) {
	case []string:
		return val
	case []any:
		out := make([]string, 0, len(val))
		for _, e := range val {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
