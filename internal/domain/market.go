package domain

import "time"

// RawOrder is a single resting order as returned by the upstream order
// source for one region page.
type RawOrder struct {
	OrderID      int64
	TypeID       int32
	LocationID   int64
	Price        float64
	VolumeRemain int64
	IsBuyOrder   bool
	Issued       time.Time
}

// AggregatedPrice is the per-(type, region) market summary produced by the
// aggregator: best resting bid, best resting ask, and summed remaining
// volumes. One logical row per key, overwritten on every sweep.
//
// BuyPrice and SellPrice are zero when the side has no orders, never
// negative.
type AggregatedPrice struct {
	TypeID     int32
	RegionID   int32
	BuyPrice   float64
	SellPrice  float64
	BuyVolume  int64
	SellVolume int64
	UpdatedAt  time.Time
}

// PriceHistoryPoint is an immutable snapshot of an AggregatedPrice taken at
// aggregation time. Append-only; removed only by retention cleanup.
type PriceHistoryPoint struct {
	TypeID     int32
	RegionID   int32
	BuyPrice   float64
	SellPrice  float64
	BuyVolume  int64
	SellVolume int64
	RecordedAt time.Time
}
