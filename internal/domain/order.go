package domain

import "time"

// OrderState marks whether a mirrored character order was present in the
// most recent sync. Orders are soft-expired, never hard-deleted.
type OrderState string

const (
	OrderActive  OrderState = "active"
	OrderExpired OrderState = "expired"
)

// CharacterOrder is a trader's resting order mirrored from the upstream
// source, upserted on each order sync.
type CharacterOrder struct {
	OrderID      int64
	CharacterID  int64
	TypeID       int32
	RegionID     int32
	LocationID   int64
	IsBuyOrder   bool
	Price        float64
	VolumeTotal  int64
	VolumeRemain int64
	Issued       time.Time
	State        OrderState
}

// SyncStatus is the per-character outcome of an order-sync sweep. One
// character failing must not block the others, so outcomes are collected
// instead of returned as a single error.
type SyncStatus string

const (
	SyncOK      SyncStatus = "ok"
	SyncNoToken SyncStatus = "no_token"
	SyncError   SyncStatus = "error"
)

// SyncResult pairs a character with its sweep outcome.
type SyncResult struct {
	CharacterID int64
	Status      SyncStatus
	Orders      int
	Err         error
}
