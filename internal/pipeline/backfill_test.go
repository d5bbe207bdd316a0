package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/avelhorn/hubtrader/internal/domain"
)

type fakeHistorySource struct {
	mu    sync.Mutex
	days  map[int32][]domain.PriceHistoryPoint // keyed by type id
	calls int
}

func (f *fakeHistorySource) FetchTypeHistory(_ context.Context, _ int32, typeID int32) ([]domain.PriceHistoryPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.days[typeID], nil
}

func (f *fakeHistorySource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestBackfillAppendsOnlyWithinHorizon(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	prices := newMemPriceStore()
	if err := prices.UpsertBatch(ctx, []domain.AggregatedPrice{
		{TypeID: 34, RegionID: testRegion, SellPrice: 4.95, UpdatedAt: now},
	}); err != nil {
		t.Fatalf("seed aggregate: %v", err)
	}

	source := &fakeHistorySource{days: map[int32][]domain.PriceHistoryPoint{
		34: {
			historyPoint(34, now.Add(-120*24*time.Hour)), // beyond the horizon
			historyPoint(34, now.Add(-10*24*time.Hour)),
			historyPoint(34, now.Add(-24*time.Hour)),
		},
	}}
	history := &memHistoryStore{}

	b := NewBackfiller(source, prices, history, []int32{testRegion}, 90*24*time.Hour, discardLogger())
	if err := b.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if history.count() != 2 {
		t.Fatalf("backfilled %d points, want 2 (days past the horizon are discarded)", history.count())
	}
}

func TestBackfillSkipsRegionWithNoAggregates(t *testing.T) {
	history := &memHistoryStore{}
	b := NewBackfiller(&fakeHistorySource{}, newMemPriceStore(), history, []int32{testRegion}, 90*24*time.Hour, discardLogger())

	if err := b.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if history.count() != 0 {
		t.Fatalf("backfilled %d points for an empty region, want 0", history.count())
	}
}
