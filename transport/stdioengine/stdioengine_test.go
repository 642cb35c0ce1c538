package stdioengine

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClient_PumpDecodesCallbacks(t *testing.T) {
	t.Parallel()
	input := strings.NewReader(
		`{"game_id":"g1","kind":"ASK","payload":{"Prompt":"mulligan?"}}` + "\n" +
			`{"game_id":"g1","kind":"UPDATE","payload":{"LogLine":"Alice draws a card"}}` + "\n",
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := New(ctx, input, &bytes.Buffer{})

	cb1 := <-c.Callbacks()
	require.Equal(t, "g1", cb1.GameID)
	require.Equal(t, "ASK", string(cb1.Kind))
	require.Equal(t, "mulligan?", cb1.Payload.Prompt)

	cb2 := <-c.Callbacks()
	require.Equal(t, "UPDATE", string(cb2.Kind))
	require.Equal(t, "Alice draws a card", cb2.Payload.LogLine)

	_, ok := <-c.Callbacks()
	require.False(t, ok, "channel should close once input is exhausted")
}

func TestClient_PumpSkipsMalformedLines(t *testing.T) {
	t.Parallel()
	input := strings.NewReader(
		"not json\n" + `{"game_id":"g1","kind":"CHAT","payload":{"ChatFrom":"Bob","ChatText":"hi"}}` + "\n",
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := New(ctx, input, &bytes.Buffer{})

	select {
	case cb := <-c.Callbacks():
		require.Equal(t, "CHAT", string(cb.Kind))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
}

func TestClient_WriteResponses(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := New(ctx, strings.NewReader(""), &out)

	require.NoError(t, c.SendBool(ctx, "g1", true))
	require.NoError(t, c.SendUUID(ctx, "g1", "obj-1"))
	require.NoError(t, c.SendInt(ctx, "g1", 3))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)

	var first wireResponse
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.Equal(t, "boolean", first.Type)
	require.NotNil(t, first.Bool)
	require.True(t, *first.Bool)

	var second wireResponse
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	require.Equal(t, "uuid", second.Type)
	require.Equal(t, "obj-1", second.UUID)
}
