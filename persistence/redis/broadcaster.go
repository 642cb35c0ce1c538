// Package redis mirrors the game log and wait-wakeup signal to Redis for
// multi-process deployments, grounded on the corpus's channel-based
// publish/subscribe broadcaster adapted onto Redis pub/sub and streams.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Notifier is the cross-process analogue of the in-process sync.Cond used
// by Arbitrator.Wait: Notify wakes any process blocked in Subscribe for the
// same game, in place of cond.Broadcast.
type Notifier interface {
	// Notify wakes every current Subscribe call for gameID.
	Notify(ctx context.Context, gameID string) error
	// Subscribe returns a channel that receives a value after Notify calls
	// for gameID, and a Close func to release it. The channel buffers one
	// value; notifications arriving while one is already buffered are
	// coalesced into it.
	Subscribe(ctx context.Context, gameID string) (<-chan struct{}, func() error, error)
}

// Broadcaster is a Notifier backed by a Redis pub/sub channel per game.
type Broadcaster struct {
	client *redis.Client
	prefix string
}

// NewBroadcaster builds a Broadcaster using client, namespacing channels
// under prefix (default "commander-bridge").
func NewBroadcaster(client *redis.Client, prefix string) *Broadcaster {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Broadcaster{client: client, prefix: prefix}
}

func (b *Broadcaster) channel(gameID string) string {
	return fmt.Sprintf("%s:wake:%s", b.prefix, gameID)
}

// Notify implements Notifier.
func (b *Broadcaster) Notify(ctx context.Context, gameID string) error {
	return b.client.Publish(ctx, b.channel(gameID), "1").Err()
}

// Subscribe implements Notifier. The returned channel is closed when ctx is
// done or Close is called.
func (b *Broadcaster) Subscribe(ctx context.Context, gameID string) (<-chan struct{}, func() error, error) {
	sub := b.client.Subscribe(ctx, b.channel(gameID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		ch := sub.Channel()
		for {
			select {
			case _, ok := <-ch:
				if !ok {
					close(out)
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			case <-done:
				close(out)
				return
			case <-ctx.Done():
				close(out)
				return
			}
		}
	}()

	closeFn := func() error {
		close(done)
		return sub.Close()
	}
	return out, closeFn, nil
}
