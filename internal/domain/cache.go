package domain

import (
	"context"
	"time"
)

// CommandBus is the publish/subscribe channel carrying admin commands to the
// scheduler. At-most-once, unordered, no acknowledgement.
type CommandBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe returns a channel of raw payloads. The subscription and the
	// returned channel are closed when ctx is cancelled.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// LockManager provides named critical sections. Acquire returns ErrLockHeld
// when the lock is taken; the returned release function is safe to call more
// than once.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// RateLimiter throttles calls to the upstream order source.
type RateLimiter interface {
	// Allow reports whether one more request is permitted under a sliding
	// window of limit requests per window, counting the request if so.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	// Wait blocks until a request is permitted or ctx is cancelled.
	Wait(ctx context.Context, key string, limit int, window time.Duration) error
}

// PriceCache is the hot copy of the latest aggregates, refreshed after each
// sweep and read by the undercut detector.
type PriceCache interface {
	SetBatch(ctx context.Context, prices []AggregatedPrice) error
	// Get returns ErrNotFound when no aggregate is cached for the key.
	Get(ctx context.Context, typeID, regionID int32) (AggregatedPrice, error)
}

// TokenSource resolves upstream access tokens for registered characters.
// Tokens are provisioned by the external auth service; this backend only
// reads them. AccessToken returns ErrNoToken when a character has no usable
// token.
type TokenSource interface {
	Characters(ctx context.Context) ([]int64, error)
	AccessToken(ctx context.Context, characterID int64) (string, error)
}
