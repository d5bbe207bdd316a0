// Package pricing holds the pure market computations: reducing raw order
// pages into per-type aggregates and comparing a character's resting orders
// against those aggregates.
package pricing

import (
	"sort"
	"time"

	"github.com/avelhorn/hubtrader/internal/domain"
)

// Aggregate reduces a complete page set of raw orders for one region into
// one AggregatedPrice per distinct item type. SellPrice is the lowest
// sell-side price (the cheapest competing offer), BuyPrice the highest
// buy-side price (the most competitive bid); volumes sum VolumeRemain per
// side. A side with no orders yields price 0 and volume 0, not an absent
// row. Results are ordered by type id so repeated runs persist in a stable
// order.
func Aggregate(regionID int32, orders []domain.RawOrder, now time.Time) []domain.AggregatedPrice {
	type sides struct {
		agg     domain.AggregatedPrice
		hasSell bool
	}
	byType := make(map[int32]*sides)

	for _, o := range orders {
		s, ok := byType[o.TypeID]
		if !ok {
			s = &sides{agg: domain.AggregatedPrice{
				TypeID:    o.TypeID,
				RegionID:  regionID,
				UpdatedAt: now,
			}}
			byType[o.TypeID] = s
		}

		if o.IsBuyOrder {
			if o.Price > s.agg.BuyPrice {
				s.agg.BuyPrice = o.Price
			}
			s.agg.BuyVolume += o.VolumeRemain
		} else {
			if !s.hasSell || o.Price < s.agg.SellPrice {
				s.agg.SellPrice = o.Price
				s.hasSell = true
			}
			s.agg.SellVolume += o.VolumeRemain
		}
	}

	out := make([]domain.AggregatedPrice, 0, len(byType))
	for _, s := range byType {
		out = append(out, s.agg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TypeID < out[j].TypeID })
	return out
}

// Snapshot copies aggregates into immutable history points stamped at
// aggregation completion.
func Snapshot(prices []domain.AggregatedPrice, recordedAt time.Time) []domain.PriceHistoryPoint {
	points := make([]domain.PriceHistoryPoint, 0, len(prices))
	for _, p := range prices {
		points = append(points, domain.PriceHistoryPoint{
			TypeID:     p.TypeID,
			RegionID:   p.RegionID,
			BuyPrice:   p.BuyPrice,
			SellPrice:  p.SellPrice,
			BuyVolume:  p.BuyVolume,
			SellVolume: p.SellVolume,
			RecordedAt: recordedAt,
		})
	}
	return points
}
