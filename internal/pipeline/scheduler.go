package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/avelhorn/hubtrader/internal/domain"
)

// FailureNotifier receives out-of-band alerts for failed region fetches. May
// be a no-op.
type FailureNotifier interface {
	NotifyFetchFailure(ctx context.Context, regionID int32, err error)
}

// Scheduler drives the aggregation pipeline: an interval sweep over all
// configured regions, a command-bus listener for manual triggers, and a daily
// retention cleanup. A single in-process slot guards sweeps and history
// backfills so at most one is in flight; triggers that arrive while the slot
// is taken are dropped, never queued. Cleanup runs outside the slot.
type Scheduler struct {
	fetcher  *RegionFetcher
	cleaner  *Cleaner
	backfill *Backfiller
	bus      domain.CommandBus
	notifier FailureNotifier

	regions         []int32
	fetchInterval   time.Duration
	cleanupInterval time.Duration
	channel         string

	sweeping atomic.Bool
	logger   *slog.Logger
}

// SchedulerConfig collects the Scheduler's tuning knobs.
type SchedulerConfig struct {
	Regions         []int32
	FetchInterval   time.Duration
	CleanupInterval time.Duration
	CommandChannel  string
}

// NewScheduler creates a Scheduler. notifier may be nil.
func NewScheduler(
	fetcher *RegionFetcher,
	cleaner *Cleaner,
	backfill *Backfiller,
	bus domain.CommandBus,
	notifier FailureNotifier,
	cfg SchedulerConfig,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		fetcher:         fetcher,
		cleaner:         cleaner,
		backfill:        backfill,
		bus:             bus,
		notifier:        notifier,
		regions:         cfg.Regions,
		fetchInterval:   cfg.FetchInterval,
		cleanupInterval: cfg.CleanupInterval,
		channel:         cfg.CommandChannel,
		logger:          logger.With(slog.String("component", "scheduler")),
	}
}

// Run starts the scheduler loops and blocks until ctx is cancelled or a loop
// fails fatally.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler starting",
		slog.Duration("fetch_interval", s.fetchInterval),
		slog.Duration("cleanup_interval", s.cleanupInterval),
		slog.Int("regions", len(s.regions)),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := s.runSweepLoop(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("sweep loop: %w", err)
	})

	g.Go(func() error {
		err := s.runCommandLoop(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("command loop: %w", err)
	})

	g.Go(func() error {
		err := s.runCleanupLoop(ctx)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("cleanup loop: %w", err)
	})

	err := g.Wait()
	if err != nil {
		s.logger.Error("scheduler stopped with error", slog.String("error", err.Error()))
		return err
	}

	s.logger.Info("scheduler stopped cleanly")
	return nil
}

// runSweepLoop sweeps all regions immediately on start and then on every
// tick.
func (s *Scheduler) runSweepLoop(ctx context.Context) error {
	s.trySweepAll(ctx)

	ticker := time.NewTicker(s.fetchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweep loop stopped")
			return ctx.Err()
		case <-ticker.C:
			s.trySweepAll(ctx)
		}
	}
}

// runCommandLoop consumes raw bus payloads and dispatches valid commands.
// Malformed or unknown payloads are logged and dropped.
func (s *Scheduler) runCommandLoop(ctx context.Context) error {
	payloads, err := s.bus.Subscribe(ctx, s.channel)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.channel, err)
	}
	s.logger.Info("listening for commands", slog.String("channel", s.channel))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("command loop stopped")
			return ctx.Err()
		case payload, ok := <-payloads:
			if !ok {
				return fmt.Errorf("channel %s: %w", s.channel, domain.ErrBusClosed)
			}
			cmd, err := domain.ParseCommand(payload)
			if err != nil {
				s.logger.Warn("ignoring bad command",
					slog.String("payload", string(payload)),
					slog.String("error", err.Error()),
				)
				continue
			}
			s.dispatch(ctx, cmd)
		}
	}
}

func (s *Scheduler) runCleanupLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("cleanup loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.cleaner.Run(ctx); err != nil {
				s.logger.Error("scheduled cleanup failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context, cmd domain.Command) {
	switch cmd.Kind {
	case domain.CmdFetchAll:
		s.trySweepAll(ctx)
	case domain.CmdFetchRegion:
		s.trySweepRegion(ctx, cmd.RegionID, cmd.Force)
	case domain.CmdBackfillHistory:
		release, ok := s.acquireSlot("backfill-history")
		if !ok {
			return
		}
		defer release()
		if err := s.backfill.Run(ctx); err != nil {
			s.logger.Error("history backfill failed", slog.String("error", err.Error()))
		}
	case domain.CmdCleanup:
		if err := s.cleaner.Run(ctx); err != nil {
			s.logger.Error("cleanup failed", slog.String("error", err.Error()))
		}
	}
}

// trySweepAll aggregates every configured region under the sweep slot. One
// region failing does not stop the others.
func (s *Scheduler) trySweepAll(ctx context.Context) {
	release, ok := s.acquireSlot("fetch-all")
	if !ok {
		return
	}
	defer release()

	for _, regionID := range s.regions {
		if ctx.Err() != nil {
			return
		}
		s.fetchRegion(ctx, regionID)
	}
}

// trySweepRegion aggregates one region under the sweep slot, skipping regions
// that are still fresh unless forced.
func (s *Scheduler) trySweepRegion(ctx context.Context, regionID int32, force bool) {
	if !force {
		fresh, err := s.fetcher.Fresh(ctx, regionID, s.fetchInterval)
		if err != nil {
			s.logger.Error("freshness check failed",
				slog.Int("region_id", int(regionID)),
				slog.String("error", err.Error()),
			)
			return
		}
		if fresh {
			s.logger.Info("region still fresh, skipping",
				slog.Int("region_id", int(regionID)),
			)
			return
		}
	}

	release, ok := s.acquireSlot("fetch-region")
	if !ok {
		return
	}
	defer release()

	s.fetchRegion(ctx, regionID)
}

func (s *Scheduler) fetchRegion(ctx context.Context, regionID int32) {
	if _, err := s.fetcher.Fetch(ctx, regionID); err != nil {
		s.logger.Error("region fetch failed",
			slog.Int("region_id", int(regionID)),
			slog.String("error", err.Error()),
		)
		if s.notifier != nil {
			s.notifier.NotifyFetchFailure(ctx, regionID, err)
		}
	}
}

// acquireSlot claims the single sweep slot. When the slot is already taken
// the trigger is dropped and logged, per the drop-not-queue contract.
func (s *Scheduler) acquireSlot(trigger string) (func(), bool) {
	if !s.sweeping.CompareAndSwap(false, true) {
		s.logger.Warn("sweep already running, dropping trigger",
			slog.String("trigger", trigger),
			slog.String("reason", domain.ErrSweepRunning.Error()),
		)
		return nil, false
	}
	return func() { s.sweeping.Store(false) }, true
}
