package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/avelhorn/hubtrader/internal/domain"
)

// HistorySource retrieves the upstream daily market history for one
// (region, type) pair.
type HistorySource interface {
	FetchTypeHistory(ctx context.Context, regionID, typeID int32) ([]domain.PriceHistoryPoint, error)
}

// backfillParallelism bounds the concurrent per-type history requests.
const backfillParallelism = 4

// Backfiller seeds price_history with upstream daily statistics for every
// type already aggregated in a region, so trend queries have data from
// before the first live sweep. Appends are idempotent: days already
// snapshotted are left untouched.
type Backfiller struct {
	source  HistorySource
	prices  domain.PriceStore
	history domain.HistoryStore
	regions []int32
	horizon time.Duration
	logger  *slog.Logger
}

// NewBackfiller creates a Backfiller. horizon bounds how far back daily
// statistics are kept; days older than it are discarded rather than written
// and immediately cleaned up again.
func NewBackfiller(
	source HistorySource,
	prices domain.PriceStore,
	history domain.HistoryStore,
	regions []int32,
	horizon time.Duration,
	logger *slog.Logger,
) *Backfiller {
	return &Backfiller{
		source:  source,
		prices:  prices,
		history: history,
		regions: regions,
		horizon: horizon,
		logger:  logger.With(slog.String("component", "backfiller")),
	}
}

// Run backfills every configured region. One type failing fails the run, but
// points already appended stay appended.
func (b *Backfiller) Run(ctx context.Context) error {
	for _, regionID := range b.regions {
		if err := b.backfillRegion(ctx, regionID); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backfiller) backfillRegion(ctx context.Context, regionID int32) error {
	typeIDs, err := b.prices.ListTypeIDs(ctx, regionID)
	if err != nil {
		return fmt.Errorf("pipeline: list types for region %d: %w", regionID, err)
	}
	if len(typeIDs) == 0 {
		b.logger.Info("no aggregated types to backfill",
			slog.Int("region_id", int(regionID)),
		)
		return nil
	}

	earliest := time.Now().UTC().Add(-b.horizon)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(backfillParallelism)

	for _, typeID := range typeIDs {
		typeID := typeID
		g.Go(func() error {
			points, err := b.source.FetchTypeHistory(ctx, regionID, typeID)
			if err != nil {
				return err
			}

			kept := points[:0]
			for _, p := range points {
				if !p.RecordedAt.Before(earliest) {
					kept = append(kept, p)
				}
			}
			if len(kept) == 0 {
				return nil
			}

			if err := b.history.AppendBatch(ctx, kept); err != nil {
				return fmt.Errorf("pipeline: backfill region %d type %d: %w", regionID, typeID, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("pipeline: backfill region %d: %w", regionID, err)
	}

	b.logger.Info("region backfilled",
		slog.Int("region_id", int(regionID)),
		slog.Int("types", len(typeIDs)),
	)
	return nil
}
