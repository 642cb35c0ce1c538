package arbitrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GregorStocks/commander-bench-sub000/config"
	"github.com/GregorStocks/commander-bench-sub000/engine"
)

// fakeResponder records dispatched responses and never errors.
type fakeResponder struct {
	bools  []bool
	uuids  []string
	ints   []int
	chats  []string
}

func (f *fakeResponder) SendUUID(_ context.Context, _ string, v string) error {
	f.uuids = append(f.uuids, v)
	return nil
}
func (f *fakeResponder) SendBool(_ context.Context, _ string, v bool) error {
	f.bools = append(f.bools, v)
	return nil
}
func (f *fakeResponder) SendString(context.Context, string, string) error { return nil }
func (f *fakeResponder) SendInt(_ context.Context, _ string, v int) error {
	f.ints = append(f.ints, v)
	return nil
}
func (f *fakeResponder) SendManaType(context.Context, string, string, engine.ManaType) error {
	return nil
}
func (f *fakeResponder) PlayerAction(context.Context, string, string) error { return nil }
func (f *fakeResponder) SendChat(_ context.Context, _ string, msg string) error {
	f.chats = append(f.chats, msg)
	return nil
}
func (f *fakeResponder) JoinChat(context.Context, string) error { return nil }

func newTestArbitrator(t *testing.T) (*Arbitrator, *fakeResponder) {
	t.Helper()
	responder := &fakeResponder{}
	cfg := config.Config{PlayerName: "Alice", InteractionCap: config.DefaultInteractionCap}
	return New(cfg, responder), responder
}

func TestArbitrator_AskLifecycle(t *testing.T) {
	t.Parallel()
	a, responder := newTestArbitrator(t)
	ctx := context.Background()

	require.NoError(t, a.HandleCallback(ctx, engine.Callback{
		GameID: "g1", Kind: engine.KindAsk,
		Payload: engine.Payload{Prompt: "Do you want to mulligan?"},
	}))

	pending := a.GetPending(ctx)
	require.Equal(t, true, pending["pending"])
	require.Equal(t, "ASK", pending["action_type"])

	result := a.Choose(ctx, ChooseParams{Answer: boolPtr(true)})
	require.Equal(t, true, result["success"])
	require.Equal(t, []bool{true}, responder.bools)

	cleared := a.GetPending(ctx)
	require.Equal(t, false, cleared["pending"])
}

func TestArbitrator_ChooseAfterResolvedReturnsNoPendingAction(t *testing.T) {
	t.Parallel()
	a, _ := newTestArbitrator(t)
	ctx := context.Background()

	require.NoError(t, a.HandleCallback(ctx, engine.Callback{
		GameID: "g1", Kind: engine.KindAsk,
		Payload: engine.Payload{Prompt: "mulligan?"},
	}))
	first := a.Choose(ctx, ChooseParams{Answer: boolPtr(true)})
	require.Equal(t, true, first["success"])

	second := a.Choose(ctx, ChooseParams{Answer: boolPtr(false)})
	require.Equal(t, false, second["success"])
	require.Equal(t, "no_pending_action", second["error_code"])
}

func TestArbitrator_GetChoicesIsIdempotent(t *testing.T) {
	t.Parallel()
	a, _ := newTestArbitrator(t)
	ctx := context.Background()

	require.NoError(t, a.HandleCallback(ctx, engine.Callback{
		GameID: "g1", Kind: engine.KindGetAmount,
		Payload: engine.Payload{Prompt: "how much?", Min: 0, Max: 5},
	}))

	first := a.GetChoices(ctx)
	second := a.GetChoices(ctx)
	require.Equal(t, true, first["success"])
	require.Equal(t, first, second)
}

func TestArbitrator_GetAmountClampsToRange(t *testing.T) {
	t.Parallel()
	a, responder := newTestArbitrator(t)
	ctx := context.Background()

	require.NoError(t, a.HandleCallback(ctx, engine.Callback{
		GameID: "g1", Kind: engine.KindGetAmount,
		Payload: engine.Payload{Prompt: "how much?", Min: 1, Max: 3},
	}))

	result := a.Choose(ctx, ChooseParams{Amount: intPtr(10)})
	require.Equal(t, true, result["success"])
	require.Equal(t, []int{3}, responder.ints)
}

func TestArbitrator_StartGameResetsPending(t *testing.T) {
	t.Parallel()
	a, _ := newTestArbitrator(t)
	ctx := context.Background()

	require.NoError(t, a.HandleCallback(ctx, engine.Callback{
		GameID: "g1", Kind: engine.KindAsk,
		Payload: engine.Payload{Prompt: "mulligan?"},
	}))
	require.NoError(t, a.HandleCallback(ctx, engine.Callback{
		GameID: "g1", Kind: engine.KindStartGame,
		Payload: engine.Payload{LocalPlayerID: "p1"},
	}))

	pending := a.GetPending(ctx)
	require.Equal(t, false, pending["pending"])
}

func TestArbitrator_SendChatSuppressesDuplicateWithinWindow(t *testing.T) {
	t.Parallel()
	a, responder := newTestArbitrator(t)
	ctx := context.Background()

	first := a.SendChat(ctx, "gg")
	require.Equal(t, "sent", first["action_taken"])

	second := a.SendChat(ctx, "gg")
	require.Equal(t, "suppressed_duplicate", second["action_taken"])
	require.Equal(t, []string{"gg"}, responder.chats)
}

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }
