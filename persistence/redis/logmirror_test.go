package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func setupLogMirror(t *testing.T) (*LogMirror, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewLogMirror(client, ""), client
}

func TestLogMirror_AppendWritesToStream(t *testing.T) {
	t.Parallel()
	m, client := setupLogMirror(t)
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, "game-1", 1, "turn 1: Alice draws a card"))
	require.NoError(t, m.Append(ctx, "game-1", 2, "turn 1: Alice plays a land"))

	entries, err := client.XRange(ctx, m.streamKey("game-1"), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "turn 1: Alice draws a card", entries[0].Values["line"])
	require.Equal(t, "turn 1: Alice plays a land", entries[1].Values["line"])
}

func TestLogMirror_SeparateGamesUseSeparateStreams(t *testing.T) {
	t.Parallel()
	m, client := setupLogMirror(t)
	ctx := context.Background()

	require.NoError(t, m.Append(ctx, "game-1", 1, "game one line"))
	require.NoError(t, m.Append(ctx, "game-2", 1, "game two line"))

	entries, err := client.XRange(ctx, m.streamKey("game-1"), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "game one line", entries[0].Values["line"])
}
