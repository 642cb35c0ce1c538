package toolserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GregorStocks/commander-bench-sub000/arbitrator"
	"github.com/GregorStocks/commander-bench-sub000/config"
	"github.com/GregorStocks/commander-bench-sub000/engine"
)

// fakeResponder records every dispatched response for assertions.
type fakeResponder struct {
	bools []bool
}

func (f *fakeResponder) SendUUID(context.Context, string, string) error { return nil }
func (f *fakeResponder) SendBool(_ context.Context, _ string, v bool) error {
	f.bools = append(f.bools, v)
	return nil
}
func (f *fakeResponder) SendString(context.Context, string, string) error           { return nil }
func (f *fakeResponder) SendInt(context.Context, string, int) error                 { return nil }
func (f *fakeResponder) SendManaType(context.Context, string, string, engine.ManaType) error {
	return nil
}
func (f *fakeResponder) PlayerAction(context.Context, string, string) error { return nil }
func (f *fakeResponder) SendChat(context.Context, string, string) error    { return nil }
func (f *fakeResponder) JoinChat(context.Context, string) error            { return nil }

func newTestServer(t *testing.T) (*Server, *fakeResponder) {
	t.Helper()
	responder := &fakeResponder{}
	cfg := config.Config{PlayerName: "Alice", InteractionCap: config.DefaultInteractionCap}
	arb := arbitrator.New(cfg, responder)
	return New(arb), responder
}

func postJSON(t *testing.T, srv *Server, path string, body map[string]any) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest("POST", path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestServer_GetPending_NoneThenAsk(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	out := postJSON(t, srv, "/tools/get_pending", nil)
	require.Equal(t, false, out["pending"])

	srv.arb.HandleCallback(context.Background(), engine.Callback{
		GameID: "g1", Kind: engine.KindAsk,
		Payload: engine.Payload{Prompt: "Do you want to mulligan?"},
	})

	out = postJSON(t, srv, "/tools/get_pending", nil)
	require.Equal(t, true, out["pending"])
	require.Equal(t, "ASK", out["action_type"])
}

func TestServer_Choose_AskAnswer(t *testing.T) {
	t.Parallel()
	srv, responder := newTestServer(t)

	srv.arb.HandleCallback(context.Background(), engine.Callback{
		GameID: "g1", Kind: engine.KindAsk,
		Payload: engine.Payload{Prompt: "Do you want to mulligan?"},
	})

	out := postJSON(t, srv, "/tools/choose", map[string]any{"answer": true})
	require.Equal(t, true, out["success"])
	require.Equal(t, "answered", out["action_taken"])
	require.Equal(t, []bool{true}, responder.bools)
}

func TestServer_Choose_SchemaRejectsMissingAnswer(t *testing.T) {
	t.Parallel()
	srv, responder := newTestServer(t)

	srv.arb.HandleCallback(context.Background(), engine.Callback{
		GameID: "g1", Kind: engine.KindAsk,
		Payload: engine.Payload{Prompt: "Do you want to mulligan?"},
	})

	out := postJSON(t, srv, "/tools/choose", map[string]any{})
	require.Equal(t, false, out["success"])
	require.Equal(t, "missing_param", out["error_code"])
	require.Empty(t, responder.bools, "choose must not dispatch when schema validation fails")
}

func TestServer_Choose_NoPendingAction(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t)

	out := postJSON(t, srv, "/tools/choose", map[string]any{"answer": true})
	require.Equal(t, false, out["success"])
	require.Equal(t, "no_pending_action", out["error_code"])
}

func TestServer_GetDecklist(t *testing.T) {
	t.Parallel()
	responder := &fakeResponder{}
	cfg := config.Config{
		PlayerName:     "Alice",
		InteractionCap: config.DefaultInteractionCap,
		DeckList: config.DeckList{
			Maindeck: []config.CardQuantity{{Name: "Sol Ring", Quantity: 1}},
		},
	}
	arb := arbitrator.New(cfg, responder)
	srv := New(arb)

	out := postJSON(t, srv, "/tools/get_decklist", nil)
	require.Equal(t, true, out["success"])
	maindeck, ok := out["maindeck"].([]any)
	require.True(t, ok)
	require.Len(t, maindeck, 1)
}
