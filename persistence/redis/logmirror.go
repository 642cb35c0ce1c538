package redis

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix    = "commander-bridge"
	defaultStreamCap = 10_000
)

// LogMirror optionally mirrors GameLogBuffer appends to a Redis stream so a
// second process (e.g. a web viewer) can tail the log without coupling to
// the arbitrator process. It is write-only from the arbitrator's
// perspective; nothing in this module reads the mirrored stream back.
type LogMirror struct {
	client    *redis.Client
	prefix    string
	streamCap int64
}

// NewLogMirror builds a LogMirror using client, namespacing the stream key
// under prefix (default "commander-bridge").
func NewLogMirror(client *redis.Client, prefix string) *LogMirror {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &LogMirror{client: client, prefix: prefix, streamCap: defaultStreamCap}
}

func (m *LogMirror) streamKey(gameID string) string {
	return m.prefix + ":log:" + gameID
}

// Append mirrors one game log line, trimming the stream to its approximate
// capacity so it cannot grow unbounded across a long game.
func (m *LogMirror) Append(ctx context.Context, gameID string, cursor int64, line string) error {
	return m.client.XAdd(ctx, &redis.XAddArgs{
		Stream: m.streamKey(gameID),
		MaxLen: m.streamCap,
		Approx: true,
		Values: map[string]any{
			"cursor": strconv.FormatInt(cursor, 10),
			"line":   line,
		},
	}).Err()
}
