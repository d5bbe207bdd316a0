package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/avelhorn/hubtrader/internal/domain"
)

// CommandBus implements domain.CommandBus using Redis Pub/Sub. Pub/Sub is
// deliberately fire-and-forget: delivery is at-most-once and unacknowledged,
// which matches the bus contract — the interval timer is the primary driver
// and a lost admin command simply never runs.
type CommandBus struct {
	rdb *redis.Client
}

// NewCommandBus creates a CommandBus backed by the given Client.
func NewCommandBus(c *Client) *CommandBus {
	return &CommandBus{rdb: c.Underlying()}
}

// Publish sends a raw byte payload to a channel.
func (b *CommandBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe creates a Pub/Sub subscription and returns a read-only channel
// emitting raw payloads. The subscription and the returned channel are
// closed when the context is cancelled.
func (b *CommandBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	pubsub := b.rdb.Subscribe(ctx, channel)

	// Verify the subscription is established by receiving the confirmation.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Compile-time interface check.
var _ domain.CommandBus = (*CommandBus)(nil)
