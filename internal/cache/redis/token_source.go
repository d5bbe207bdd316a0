package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/avelhorn/hubtrader/internal/domain"
)

// TokenSource implements domain.TokenSource against the keys maintained by
// the external auth service: the character registry lives in the set
// "characters" and each character's current access token at
// "token:{characterID}" with the token's own expiry as the key TTL. This
// backend only reads; provisioning and refresh belong to the auth service.
type TokenSource struct {
	rdb *redis.Client
}

// NewTokenSource creates a TokenSource backed by the given Client.
func NewTokenSource(c *Client) *TokenSource {
	return &TokenSource{rdb: c.Underlying()}
}

const characterSetKey = "characters"

func tokenKey(characterID int64) string {
	return "token:" + strconv.FormatInt(characterID, 10)
}

// Characters returns the ids of all registered characters.
func (ts *TokenSource) Characters(ctx context.Context) ([]int64, error) {
	members, err := ts.rdb.SMembers(ctx, characterSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list characters: %w", err)
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("redis: bad character id %q: %w", m, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// AccessToken returns the character's current access token, or
// domain.ErrNoToken when none is provisioned (or it has expired).
func (ts *TokenSource) AccessToken(ctx context.Context, characterID int64) (string, error) {
	token, err := ts.rdb.Get(ctx, tokenKey(characterID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrNoToken
		}
		return "", fmt.Errorf("redis: get token for character %d: %w", characterID, err)
	}
	return token, nil
}

// Compile-time interface check.
var _ domain.TokenSource = (*TokenSource)(nil)
