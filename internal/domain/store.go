package domain

import (
	"context"
	"time"
)

// PriceStore persists the per-(type, region) aggregate rows. Rows are
// overwritten each sweep, never appended.
type PriceStore interface {
	UpsertBatch(ctx context.Context, prices []AggregatedPrice) error
	Get(ctx context.Context, typeID, regionID int32) (AggregatedPrice, error)
	ListByRegion(ctx context.Context, regionID int32) ([]AggregatedPrice, error)
	ListTypeIDs(ctx context.Context, regionID int32) ([]int32, error)
}

// HistoryStore persists the append-only aggregate snapshots.
type HistoryStore interface {
	AppendBatch(ctx context.Context, points []PriceHistoryPoint) error
	ListRange(ctx context.Context, typeID, regionID int32, since, until time.Time) ([]PriceHistoryPoint, error)
	ListBefore(ctx context.Context, cutoff time.Time) ([]PriceHistoryPoint, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// FetchJobStore records aggregation attempts. Status transitions are
// monotonic; terminal rows are never reopened.
type FetchJobStore interface {
	Create(ctx context.Context, job FetchJob) error
	MarkRunning(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string, itemsCount int) error
	MarkFailed(ctx context.Context, id string, errorMessage string) error
	LastCompleted(ctx context.Context, regionID int32) (FetchJob, error)
	ListRecent(ctx context.Context, limit int) ([]FetchJob, error)
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// OrderStore mirrors character resting orders. Orders absent from the
// latest sync are soft-expired via ExpireMissing.
type OrderStore interface {
	UpsertBatch(ctx context.Context, orders []CharacterOrder) error
	ExpireMissing(ctx context.Context, characterID int64, liveOrderIDs []int64) (int64, error)
	ListActive(ctx context.Context, characterID int64) ([]CharacterOrder, error)
}

// TransactionStore reads the immutable wallet transaction log. This backend
// never writes transactions; the external sync does.
type TransactionStore interface {
	ListByCharacter(ctx context.Context, characterID int64) ([]Transaction, error)
}

// ProfitStore persists the append-only profit ledger.
type ProfitStore interface {
	AppendBatch(ctx context.Context, entries []ProfitEntry) error
	ListByCharacter(ctx context.Context, characterID int64) ([]ProfitEntry, error)
}
