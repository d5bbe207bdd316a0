// Package pipeline contains the aggregation loops: the per-region fetcher,
// the scheduler that drives it, retention cleanup, history backfill, and the
// character order sync.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/avelhorn/hubtrader/internal/domain"
	"github.com/avelhorn/hubtrader/internal/pricing"
)

// OrderSource retrieves the full order book for one region.
type OrderSource interface {
	FetchRegionOrders(ctx context.Context, regionID int32) ([]domain.RawOrder, error)
}

// RegionFetcher runs one complete aggregation cycle for a region: it opens a
// fetch job, pulls every order page, reduces them to aggregates, persists the
// aggregates plus a history snapshot, refreshes the hot cache, and closes the
// job. Any failure before persistence marks the job failed and commits
// nothing.
type RegionFetcher struct {
	source  OrderSource
	prices  domain.PriceStore
	history domain.HistoryStore
	jobs    domain.FetchJobStore
	cache   domain.PriceCache
	logger  *slog.Logger
}

// NewRegionFetcher creates a RegionFetcher. cache may be nil, in which case
// the hot cache is simply not refreshed.
func NewRegionFetcher(
	source OrderSource,
	prices domain.PriceStore,
	history domain.HistoryStore,
	jobs domain.FetchJobStore,
	cache domain.PriceCache,
	logger *slog.Logger,
) *RegionFetcher {
	return &RegionFetcher{
		source:  source,
		prices:  prices,
		history: history,
		jobs:    jobs,
		cache:   cache,
		logger:  logger.With(slog.String("component", "region_fetcher")),
	}
}

// Fetch runs one aggregation cycle and returns the number of item types
// aggregated. The fetch job it creates records the outcome either way.
func (f *RegionFetcher) Fetch(ctx context.Context, regionID int32) (int, error) {
	job := domain.FetchJob{
		ID:        uuid.NewString(),
		RegionID:  regionID,
		Status:    domain.JobPending,
		StartedAt: time.Now().UTC(),
	}
	if err := f.jobs.Create(ctx, job); err != nil {
		return 0, fmt.Errorf("pipeline: create fetch job for region %d: %w", regionID, err)
	}
	if err := f.jobs.MarkRunning(ctx, job.ID); err != nil {
		return 0, fmt.Errorf("pipeline: start fetch job %s: %w", job.ID, err)
	}

	count, err := f.run(ctx, regionID)
	if err != nil {
		if markErr := f.jobs.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
			f.logger.Error("failed to mark fetch job failed",
				slog.String("job_id", job.ID),
				slog.String("error", markErr.Error()),
			)
		}
		return 0, err
	}

	if err := f.jobs.MarkCompleted(ctx, job.ID, count); err != nil {
		return count, fmt.Errorf("pipeline: complete fetch job %s: %w", job.ID, err)
	}

	f.logger.Info("region aggregated",
		slog.Int("region_id", int(regionID)),
		slog.Int("items", count),
		slog.String("job_id", job.ID),
	)
	return count, nil
}

func (f *RegionFetcher) run(ctx context.Context, regionID int32) (int, error) {
	orders, err := f.source.FetchRegionOrders(ctx, regionID)
	if err != nil {
		return 0, fmt.Errorf("pipeline: fetch region %d orders: %w", regionID, err)
	}

	now := time.Now().UTC()
	aggregates := pricing.Aggregate(regionID, orders, now)
	if len(aggregates) == 0 {
		f.logger.Warn("region has no orders", slog.Int("region_id", int(regionID)))
		return 0, nil
	}

	if err := f.prices.UpsertBatch(ctx, aggregates); err != nil {
		return 0, fmt.Errorf("pipeline: persist region %d aggregates: %w", regionID, err)
	}
	if err := f.history.AppendBatch(ctx, pricing.Snapshot(aggregates, now)); err != nil {
		return 0, fmt.Errorf("pipeline: persist region %d history: %w", regionID, err)
	}

	// The durable rows are already committed; a stale cache only delays the
	// undercut detector by one cycle.
	if f.cache != nil {
		if err := f.cache.SetBatch(ctx, aggregates); err != nil {
			f.logger.Warn("price cache refresh failed",
				slog.Int("region_id", int(regionID)),
				slog.String("error", err.Error()),
			)
		}
	}

	return len(aggregates), nil
}

// Fresh reports whether the region's latest completed fetch finished within
// maxAge. A region with no completed fetch yet is never fresh.
func (f *RegionFetcher) Fresh(ctx context.Context, regionID int32, maxAge time.Duration) (bool, error) {
	last, err := f.jobs.LastCompleted(ctx, regionID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("pipeline: last completed fetch for region %d: %w", regionID, err)
	}
	if last.CompletedAt == nil {
		return false, nil
	}
	return time.Since(*last.CompletedAt) < maxAge, nil
}
