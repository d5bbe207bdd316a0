package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/avelhorn/hubtrader/internal/domain"
)

// PriceCache implements domain.PriceCache using Redis hashes. Each aggregate
// is stored at key "agg:{regionID}:{typeID}" and expires after the TTL so a
// stalled pipeline cannot serve arbitrarily old prices to the undercut
// detector.
type PriceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPriceCache creates a PriceCache backed by the given Client. A zero ttl
// disables expiry.
func NewPriceCache(c *Client, ttl time.Duration) *PriceCache {
	return &PriceCache{rdb: c.Underlying(), ttl: ttl}
}

func aggKey(typeID, regionID int32) string {
	return fmt.Sprintf("agg:%d:%d", regionID, typeID)
}

// SetBatch stores the latest aggregates in one pipeline round trip.
func (pc *PriceCache) SetBatch(ctx context.Context, prices []domain.AggregatedPrice) error {
	if len(prices) == 0 {
		return nil
	}

	pipe := pc.rdb.Pipeline()
	for _, p := range prices {
		key := aggKey(p.TypeID, p.RegionID)
		pipe.HSet(ctx, key, map[string]interface{}{
			"buy_price":   strconv.FormatFloat(p.BuyPrice, 'f', -1, 64),
			"sell_price":  strconv.FormatFloat(p.SellPrice, 'f', -1, 64),
			"buy_volume":  strconv.FormatInt(p.BuyVolume, 10),
			"sell_volume": strconv.FormatInt(p.SellVolume, 10),
			"updated_at":  strconv.FormatInt(p.UpdatedAt.UnixNano(), 10),
		})
		if pc.ttl > 0 {
			pipe.Expire(ctx, key, pc.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set aggregate batch: %w", err)
	}
	return nil
}

// Get retrieves the cached aggregate for one (type, region). It returns
// domain.ErrNotFound when the key does not exist or has expired.
func (pc *PriceCache) Get(ctx context.Context, typeID, regionID int32) (domain.AggregatedPrice, error) {
	vals, err := pc.rdb.HGetAll(ctx, aggKey(typeID, regionID)).Result()
	if err != nil {
		return domain.AggregatedPrice{}, fmt.Errorf("redis: get aggregate (%d, %d): %w", typeID, regionID, err)
	}
	if len(vals) == 0 {
		return domain.AggregatedPrice{}, domain.ErrNotFound
	}

	p := domain.AggregatedPrice{TypeID: typeID, RegionID: regionID}
	if p.BuyPrice, err = strconv.ParseFloat(vals["buy_price"], 64); err != nil {
		return domain.AggregatedPrice{}, fmt.Errorf("redis: parse buy_price: %w", err)
	}
	if p.SellPrice, err = strconv.ParseFloat(vals["sell_price"], 64); err != nil {
		return domain.AggregatedPrice{}, fmt.Errorf("redis: parse sell_price: %w", err)
	}
	if p.BuyVolume, err = strconv.ParseInt(vals["buy_volume"], 10, 64); err != nil {
		return domain.AggregatedPrice{}, fmt.Errorf("redis: parse buy_volume: %w", err)
	}
	if p.SellVolume, err = strconv.ParseInt(vals["sell_volume"], 10, 64); err != nil {
		return domain.AggregatedPrice{}, fmt.Errorf("redis: parse sell_volume: %w", err)
	}
	ts, err := strconv.ParseInt(vals["updated_at"], 10, 64)
	if err != nil {
		return domain.AggregatedPrice{}, fmt.Errorf("redis: parse updated_at: %w", err)
	}
	p.UpdatedAt = time.Unix(0, ts).UTC()

	return p, nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
