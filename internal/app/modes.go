package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/avelhorn/hubtrader/internal/domain"
)

// RunMode is the long-running service: the scheduler drives region
// aggregation, command handling, and retention cleanup, while the sync loop
// mirrors character orders and runs profit matching on its own interval.
func (a *App) RunMode(ctx context.Context, deps *Dependencies) error {
	a.logger.Info("starting run mode")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Scheduler.Run(ctx)
	})

	if a.cfg.Sync.Enabled {
		g.Go(func() error {
			err := a.runSyncLoop(ctx, deps)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("sync loop: %w", err)
		})
	}

	return g.Wait()
}

// SweepMode aggregates every configured region once and exits.
func (a *App) SweepMode(ctx context.Context, deps *Dependencies) error {
	a.logger.Info("starting sweep mode")

	var failed int
	for _, regionID := range a.cfg.Scheduler.Regions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := deps.Fetcher.Fetch(ctx, regionID); err != nil {
			failed++
			a.logger.Error("region fetch failed",
				slog.Int("region_id", int(regionID)),
				slog.String("error", err.Error()),
			)
		}
	}

	if failed > 0 {
		return fmt.Errorf("app: sweep finished with %d of %d regions failed",
			failed, len(a.cfg.Scheduler.Regions))
	}
	return nil
}

// BackfillMode runs one history backfill pass and exits.
func (a *App) BackfillMode(ctx context.Context, deps *Dependencies) error {
	a.logger.Info("starting backfill mode")
	return deps.Backfiller.Run(ctx)
}

// runSyncLoop runs an order-sync sweep followed by a profit matching pass,
// immediately on start and then on every tick.
func (a *App) runSyncLoop(ctx context.Context, deps *Dependencies) error {
	a.syncOnce(ctx, deps)

	ticker := time.NewTicker(a.cfg.Sync.Interval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("sync loop stopped")
			return ctx.Err()
		case <-ticker.C:
			a.syncOnce(ctx, deps)
		}
	}
}

func (a *App) syncOnce(ctx context.Context, deps *Dependencies) {
	results, err := deps.OrderSyncer.Sweep(ctx)
	if err != nil {
		a.logger.Error("order sync sweep failed", slog.String("error", err.Error()))
		return
	}

	for _, r := range results {
		if r.Status != domain.SyncOK {
			continue
		}
		if _, err := deps.ProfitEngine.Run(ctx, r.CharacterID); err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				a.logger.Info("profit matching already running elsewhere",
					slog.Int64("character_id", r.CharacterID),
				)
				continue
			}
			if errors.Is(err, domain.ErrLedgerCorrupt) {
				deps.Notifier.NotifyLedgerCorrupt(ctx, r.CharacterID, err)
			}
			a.logger.Error("profit matching failed",
				slog.Int64("character_id", r.CharacterID),
				slog.String("error", err.Error()),
			)
		}
	}
}
