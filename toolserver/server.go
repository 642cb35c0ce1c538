package toolserver

import (
	"context"
	"errors"
	"io"
	"net/http"

	goahttp "goa.design/goa/v3/http"

	"github.com/GregorStocks/commander-bench-sub000/arbitrator"
	"github.com/GregorStocks/commander-bench-sub000/toolerrors"
)

// Server serves the arbitrator's tool surface as JSON over HTTP, one route
// per tool under /tools/.
type Server struct {
	arb       *arbitrator.Arbitrator
	validator *SchemaValidator
	encoder   func(context.Context, http.ResponseWriter) goahttp.Encoder
	decoder   func(*http.Request) goahttp.Decoder
}

// New builds a Server wrapping arb. Encoding defaults to goahttp's JSON
// request decoder / response encoder, matching the transport the rest of
// the corpus's generated HTTP servers use.
func New(arb *arbitrator.Arbitrator) *Server {
	return &Server{
		arb:       arb,
		validator: NewSchemaValidator(),
		encoder:   goahttp.ResponseEncoder,
		decoder:   goahttp.RequestDecoder,
	}
}

// Mux builds the http.Handler exposing every tool route.
func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /tools/wait", s.handleWait)
	mux.HandleFunc("POST /tools/choose", s.handleChoose)
	mux.HandleFunc("POST /tools/get_pending", s.handleSimple(func(ctx context.Context, _ map[string]any) map[string]any {
		return s.arb.GetPending(ctx)
	}))
	mux.HandleFunc("POST /tools/get_choices", s.handleSimple(func(ctx context.Context, _ map[string]any) map[string]any {
		return s.arb.GetChoices(ctx)
	}))
	mux.HandleFunc("POST /tools/default_action", s.handleSimple(func(ctx context.Context, _ map[string]any) map[string]any {
		return s.arb.DefaultAction(ctx)
	}))
	mux.HandleFunc("POST /tools/send_chat", s.handleSendChat)
	mux.HandleFunc("POST /tools/get_game_state", s.handleGetGameState)
	mux.HandleFunc("POST /tools/get_game_log", s.handleGetGameLog)
	mux.HandleFunc("POST /tools/get_oracle_text", s.handleGetOracleText)
	mux.HandleFunc("POST /tools/get_decklist", s.handleSimple(func(ctx context.Context, _ map[string]any) map[string]any {
		return s.arb.GetDecklist(ctx)
	}))
	return mux
}

func (s *Server) decodeBody(r *http.Request) (map[string]any, error) {
	var body map[string]any
	if r.Body == nil {
		return map[string]any{}, nil
	}
	if err := s.decoder(r).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if body == nil {
		body = map[string]any{}
	}
	return body, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.encoder(r.Context(), w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) writeToolError(w http.ResponseWriter, r *http.Request, te *toolerrors.ToolError) {
	s.writeJSON(w, r, map[string]any{
		"success":    false,
		"error":      te.Error(),
		"error_code": string(te.ErrCode),
		"retryable":  te.Retryable(),
	})
}

func (s *Server) handleSimple(fn func(ctx context.Context, body map[string]any) map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := s.decodeBody(r)
		if err != nil {
			s.writeToolError(w, r, toolerrors.NewWithCause(toolerrors.MissingParam, "malformed json body", err))
			return
		}
		s.writeJSON(w, r, fn(r.Context(), body))
	}
}

func (s *Server) handleWait(w http.ResponseWriter, r *http.Request) {
	body, err := s.decodeBody(r)
	if err != nil {
		s.writeToolError(w, r, toolerrors.NewWithCause(toolerrors.MissingParam, "malformed json body", err))
		return
	}
	yield, _ := body["yield"].(string)
	includeChoices, _ := body["include_choices"].(bool)
	if includeChoices {
		s.writeJSON(w, r, s.arb.WaitAndChoices(r.Context(), yield))
		return
	}
	s.writeJSON(w, r, s.arb.Wait(r.Context(), yield))
}

func (s *Server) handleChoose(w http.ResponseWriter, r *http.Request) {
	body, err := s.decodeBody(r)
	if err != nil {
		s.writeToolError(w, r, toolerrors.NewWithCause(toolerrors.MissingParam, "malformed json body", err))
		return
	}

	if kind, ok := s.arb.PendingKind(); ok {
		if verr := s.validator.Validate(kind, body); verr != nil {
			s.writeToolError(w, r, toolerrors.NewWithCause(toolerrors.MissingParam, "arguments do not match the pending action's schema", verr))
			return
		}
	}

	p := decodeChooseParams(body)
	s.writeJSON(w, r, s.arb.Choose(r.Context(), p))
}

func decodeChooseParams(body map[string]any) arbitrator.ChooseParams {
	var p arbitrator.ChooseParams
	if v, ok := body["index"].(float64); ok {
		i := int(v)
		p.Index = &i
	}
	if v, ok := body["id"].(string); ok {
		p.ID = v
	}
	if v, ok := body["answer"].(bool); ok {
		p.Answer = &v
	}
	if v, ok := body["amount"].(float64); ok {
		a := int(v)
		p.Amount = &a
	}
	if arr, ok := body["amounts"].([]any); ok {
		p.Amounts = make([]int, 0, len(arr))
		for _, v := range arr {
			if f, ok := v.(float64); ok {
				p.Amounts = append(p.Amounts, int(f))
			}
		}
	}
	if v, ok := body["pile"].(float64); ok {
		pile := int(v)
		p.Pile = &pile
	}
	if v, ok := body["text"].(string); ok {
		p.Text = v
	}
	if v, ok := body["mana_plan"].(string); ok {
		p.ManaPlan = v
	}
	if v, ok := body["auto_tap"].(bool); ok {
		p.AutoTap = v
	}
	if arr, ok := body["attackers"].([]any); ok {
		p.Attackers = toStringSlice(arr)
	}
	if arr, ok := body["blockers"].([]any); ok {
		p.Blockers = toStringSlice(arr)
	}
	return p
}

func toStringSlice(arr []any) []string {
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (s *Server) handleSendChat(w http.ResponseWriter, r *http.Request) {
	body, err := s.decodeBody(r)
	if err != nil {
		s.writeToolError(w, r, toolerrors.NewWithCause(toolerrors.MissingParam, "malformed json body", err))
		return
	}
	message, _ := body["message"].(string)
	if message == "" {
		s.writeToolError(w, r, toolerrors.New(toolerrors.MissingParam, "message is required"))
		return
	}
	s.writeJSON(w, r, s.arb.SendChat(r.Context(), message))
}

func (s *Server) handleGetGameState(w http.ResponseWriter, r *http.Request) {
	body, err := s.decodeBody(r)
	if err != nil {
		s.writeToolError(w, r, toolerrors.NewWithCause(toolerrors.MissingParam, "malformed json body", err))
		return
	}
	var cursor int64
	if v, ok := body["cursor"].(float64); ok {
		cursor = int64(v)
	}
	s.writeJSON(w, r, s.arb.GetGameState(r.Context(), cursor))
}

func (s *Server) handleGetGameLog(w http.ResponseWriter, r *http.Request) {
	body, err := s.decodeBody(r)
	if err != nil {
		s.writeToolError(w, r, toolerrors.NewWithCause(toolerrors.MissingParam, "malformed json body", err))
		return
	}
	maxChars := 4000
	if v, ok := body["max_chars"].(float64); ok {
		maxChars = int(v)
	}
	var cursor *int64
	if v, ok := body["cursor"].(float64); ok {
		c := int64(v)
		cursor = &c
	}
	var sinceTurn *int
	if v, ok := body["since_turn"].(float64); ok {
		t := int(v)
		sinceTurn = &t
	}
	sincePlayer, _ := body["since_player"].(string)
	s.writeJSON(w, r, s.arb.GetGameLog(r.Context(), maxChars, cursor, sinceTurn, sincePlayer))
}

func (s *Server) handleGetOracleText(w http.ResponseWriter, r *http.Request) {
	body, err := s.decodeBody(r)
	if err != nil {
		s.writeToolError(w, r, toolerrors.NewWithCause(toolerrors.MissingParam, "malformed json body", err))
		return
	}
	cardName, _ := body["card_name"].(string)
	objectID, _ := body["object_id"].(string)
	var cardNames, objectIDs []string
	if arr, ok := body["card_names"].([]any); ok {
		cardNames = toStringSlice(arr)
	}
	if arr, ok := body["object_ids"].([]any); ok {
		objectIDs = toStringSlice(arr)
	}
	s.writeJSON(w, r, s.arb.GetOracleText(r.Context(), cardName, cardNames, objectID, objectIDs))
}
