package arbitrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/GregorStocks/commander-bench-sub000/choice"
	"github.com/GregorStocks/commander-bench-sub000/config"
	"github.com/GregorStocks/commander-bench-sub000/engine"
	"github.com/GregorStocks/commander-bench-sub000/toolerrors"
)

// buildChoicesForPendingLocked builds (and caches) the choice snapshot for
// the currently pending action. Caller must hold a.mu.
func (a *Arbitrator) buildChoicesForPendingLocked(cb engine.Callback) choice.Result {
	active := a.weAreActiveOnMainLocked()
	result := a.builder.Build(cb, a.view, a, a.turnState.LandsPlayedThisTurn(), active)
	a.snapshot = result.Snapshot
	a.choicesPayload = result.Payload
	return result
}

// copyPayload shallow-copies a choice payload so callers can add
// response-specific keys (success, cursor flags) without mutating the
// cached snapshot payload shared across repeated get_choices calls.
func copyPayload(src map[string]any) map[string]any {
	out := make(map[string]any, len(src)+2)
	for k, v := range src {
		out[k] = v
	}
	return out
}

func (a *Arbitrator) weAreActiveOnMainLocked() bool {
	if a.view == nil || len(a.view.Players) == 0 {
		return false
	}
	return strings.Contains(strings.ToLower(a.view.Phase), "main") && a.view.ActivePlayer == a.view.Players[0].Name
}

// PendingKind reports the engine.Kind of the current pending action, for
// callers (e.g. toolserver) that need to pick a request schema before
// calling Choose.
func (a *Arbitrator) PendingKind() (engine.Kind, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending == nil {
		return "", false
	}
	return a.pending.callback.Kind, true
}

// GetPending reports whether a pending action exists and its kind.
func (a *Arbitrator) GetPending(ctx context.Context) map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending == nil {
		return a.withTopLevelFlagsLocked(map[string]any{"pending": false})
	}
	return a.withTopLevelFlagsLocked(map[string]any{
		"pending":      true,
		"action_type":  string(a.pending.callback.Kind),
		"message":      a.pending.callback.Payload.Prompt,
	})
}

// GetChoices builds and returns the indexed choice payload for the pending
// action. Idempotent: repeated calls with no intervening callback return
// equivalent payloads from the same cached snapshot.
func (a *Arbitrator) GetChoices(ctx context.Context) map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending == nil {
		return errResult(toolerrors.New(toolerrors.NoPendingAction, "no pending action"))
	}
	if a.choicesPayload == nil {
		a.buildChoicesForPendingLocked(a.pending.callback)
	}
	payload := copyPayload(a.choicesPayload)
	payload["success"] = true
	if cancelled, _ := payload["auto_cancelled"].(bool); cancelled {
		gameID := a.pending.callback.GameID
		a.clearPendingIfSeq(a.pending.seq)
		a.mu.Unlock()
		_ = a.dispatcher.SendBool(ctx, gameID, false)
		a.mu.Lock()
	}
	return a.withTopLevelFlagsLocked(payload)
}

// withTopLevelFlagsLocked attaches recent_chat, game_over, and player_dead to
// a result map, per the tool-surface contract. Caller must hold a.mu.
func (a *Arbitrator) withTopLevelFlagsLocked(m map[string]any) map[string]any {
	if a.gameOver {
		m["game_over"] = true
	}
	if a.playerDead {
		m["player_dead"] = true
	}
	if len(a.chatBuffer) > 0 {
		recent := make([]map[string]any, len(a.chatBuffer))
		for i, c := range a.chatBuffer {
			recent[i] = map[string]any{"from": c.From, "text": c.Text}
		}
		m["recent_chat"] = recent
	}
	return m
}

// SendChat forwards a chat message, suppressing an identical message sent
// within the last 30s.
func (a *Arbitrator) SendChat(ctx context.Context, message string) map[string]any {
	a.mu.Lock()
	gameID := a.gameID
	if last, ok := a.lastChatSent[message]; ok && time.Since(last) < ChatDedupWindow {
		a.mu.Unlock()
		return map[string]any{"success": true, "action_taken": "suppressed_duplicate"}
	}
	a.lastChatSent[message] = time.Now()
	a.mu.Unlock()

	if err := a.responder.SendChat(ctx, gameID, message); err != nil {
		return errResult(toolerrors.NewWithCause(toolerrors.InternalError, "failed to send chat", err))
	}
	return map[string]any{"success": true, "action_taken": "sent"}
}

// GetGameState snapshots the cached game view as a structured map, bumping
// the monotone cursor only when the canonicalized signature changes.
func (a *Arbitrator) GetGameState(ctx context.Context, cursor int64) map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.view == nil {
		return a.withTopLevelFlagsLocked(map[string]any{"success": true, "unchanged": false, "cursor": a.cursor})
	}

	sig := signatureOf(a.view)
	if sig == a.lastSignature {
		if cursor == a.cursor {
			return a.withTopLevelFlagsLocked(map[string]any{"success": true, "unchanged": true, "cursor": a.cursor})
		}
		return a.withTopLevelFlagsLocked(map[string]any{"success": true, "unchanged": false, "cursor": a.cursor, "state": viewToMap(a.view)})
	}
	a.lastSignature = sig
	a.cursor++
	return a.withTopLevelFlagsLocked(map[string]any{"success": true, "unchanged": false, "cursor": a.cursor, "state": viewToMap(a.view)})
}

func signatureOf(view *engine.GameView) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|%s|%s", view.Turn, view.Phase, view.Step, view.ActivePlayer, view.PriorityPlayer)
	for _, p := range view.Players {
		fmt.Fprintf(h, "|%s:%d:%d:%d", p.Name, p.Life, p.LibrarySize, p.HandSize)
		for _, perm := range p.Battlefield {
			fmt.Fprintf(h, ",%s:%v:%d:%d", perm.ID, perm.Tapped, perm.Power, perm.Toughness)
		}
	}
	for _, s := range view.Stack {
		fmt.Fprintf(h, "|stack:%s", s.ObjectID)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func viewToMap(view *engine.GameView) map[string]any {
	players := make([]map[string]any, 0, len(view.Players))
	for _, p := range view.Players {
		battlefield := make([]map[string]any, 0, len(p.Battlefield))
		for _, perm := range p.Battlefield {
			battlefield = append(battlefield, map[string]any{
				"id": perm.ID, "name": perm.Name, "tapped": perm.Tapped,
				"power": perm.Power, "toughness": perm.Toughness,
			})
		}
		players = append(players, map[string]any{
			"name": p.Name, "life": p.Life, "hand_size": p.HandSize,
			"library_size": p.LibrarySize, "battlefield": battlefield,
			"mana_pool": manaPoolToMap(p.ManaPool),
		})
	}
	return map[string]any{
		"turn": view.Turn, "phase": view.Phase, "step": view.Step,
		"active_player": view.ActivePlayer, "priority_player": view.PriorityPlayer,
		"players": players,
	}
}

func manaPoolToMap(pool map[engine.ManaType]int) map[string]int {
	out := make(map[string]int, len(pool))
	for k, v := range pool {
		out[string(k)] = v
	}
	return out
}

// GetGameLog serves the three mutually exclusive access modes: cursor-based
// incremental read, since_turn/since_player scan, or a bare tail read.
func (a *Arbitrator) GetGameLog(ctx context.Context, maxChars int, cursor *int64, sinceTurn *int, sincePlayer string) map[string]any {
	a.mu.Lock()
	log := a.log
	a.mu.Unlock()

	switch {
	case cursor != nil && sinceTurn != nil:
		return errResult(toolerrors.New(toolerrors.MissingParam, "cursor and since_turn are mutually exclusive"))
	case cursor != nil:
		res := log.ReadSince(*cursor)
		return map[string]any{"success": true, "log": res.Data, "cursor": log.Cursor(), "cursor_reset": res.CursorReset}
	case sinceTurn != nil:
		if sincePlayer == "" {
			return errResult(toolerrors.New(toolerrors.MissingParam, "since_player is required with since_turn"))
		}
		res := log.ReadSincePlayerTurn(sincePlayer, *sinceTurn)
		return map[string]any{"success": true, "log": res.Data, "truncated": res.Truncated, "cursor": log.Cursor()}
	default:
		return map[string]any{"success": true, "log": log.ReadTail(maxChars), "cursor": log.Cursor()}
	}
}

// GetOracleText resolves exactly one of card_name, card_names, object_id,
// object_ids. In-game IDs resolve through the cached view; names resolve
// through the external card database.
func (a *Arbitrator) GetOracleText(ctx context.Context, cardName string, cardNames []string, objectID string, objectIDs []string) map[string]any {
	provided := 0
	for _, v := range []bool{cardName != "", len(cardNames) > 0, objectID != "", len(objectIDs) > 0} {
		if v {
			provided++
		}
	}
	if provided != 1 {
		return errResult(toolerrors.New(toolerrors.MissingParam, "exactly one of card_name, card_names, object_id, object_ids is required"))
	}

	if cardName != "" {
		rules, ok := a.lookupOracleText(ctx, cardName)
		if !ok {
			return errResult(toolerrors.New(toolerrors.InvalidChoice, "unknown card name"))
		}
		return map[string]any{"success": true, "name": cardName, "rules": rules}
	}
	if len(cardNames) > 0 {
		cards := make([]map[string]any, 0, len(cardNames))
		for _, name := range cardNames {
			rules, ok := a.lookupOracleText(ctx, name)
			if ok {
				cards = append(cards, map[string]any{"name": name, "rules": rules})
			}
		}
		return map[string]any{"success": true, "cards": cards}
	}
	if objectID != "" {
		name, ok := a.lookupOracleByObjectID(objectID)
		if !ok {
			return errResult(toolerrors.New(toolerrors.InvalidChoice, "unknown object id"))
		}
		rules, _ := a.lookupOracleText(ctx, name)
		return map[string]any{"success": true, "name": name, "rules": rules}
	}
	cards := make([]map[string]any, 0, len(objectIDs))
	for _, id := range objectIDs {
		name, ok := a.lookupOracleByObjectID(id)
		if !ok {
			continue
		}
		rules, _ := a.lookupOracleText(ctx, name)
		cards = append(cards, map[string]any{"name": name, "rules": rules})
	}
	return map[string]any{"success": true, "cards": cards}
}

func (a *Arbitrator) lookupOracleText(ctx context.Context, cardName string) (string, bool) {
	a.mu.Lock()
	db := a.cardDB
	a.mu.Unlock()
	if db == nil {
		return "", false
	}
	return db.OracleText(ctx, cardName)
}

func (a *Arbitrator) lookupOracleByObjectID(id string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.view == nil {
		return "", false
	}
	for _, p := range a.view.Players {
		for _, perm := range p.Battlefield {
			if perm.ID == id {
				return perm.Name, true
			}
		}
	}
	return "", false
}

// GetDecklist dumps the deck the player was constructed with.
func (a *Arbitrator) GetDecklist(ctx context.Context) map[string]any {
	return map[string]any{
		"success":   true,
		"maindeck":  deckToMaps(a.cfg.DeckList.Maindeck),
		"sideboard": deckToMaps(a.cfg.DeckList.Sideboard),
	}
}

func deckToMaps(cards []config.CardQuantity) []map[string]any {
	out := make([]map[string]any, 0, len(cards))
	for _, c := range cards {
		out = append(out, map[string]any{"name": c.Name, "quantity": c.Quantity})
	}
	return out
}
