package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avelhorn/hubtrader/internal/domain"
)

// HistoryArchiver moves expiring history snapshots to cold storage before
// they are deleted. Archive returns the location written.
type HistoryArchiver interface {
	Archive(ctx context.Context, points []domain.PriceHistoryPoint, cutoff time.Time) (string, error)
}

// Cleaner enforces the retention policy: price-history snapshots older than
// the retention horizon are archived to cold storage and deleted, and
// terminal fetch jobs past the horizon are trimmed. Transactions and profit
// entries are never touched.
type Cleaner struct {
	history   domain.HistoryStore
	jobs      domain.FetchJobStore
	archiver  HistoryArchiver
	retention time.Duration
	logger    *slog.Logger
}

// NewCleaner creates a Cleaner. archiver may be nil, in which case expired
// snapshots are deleted without a cold copy.
func NewCleaner(
	history domain.HistoryStore,
	jobs domain.FetchJobStore,
	archiver HistoryArchiver,
	retention time.Duration,
	logger *slog.Logger,
) *Cleaner {
	return &Cleaner{
		history:   history,
		jobs:      jobs,
		archiver:  archiver,
		retention: retention,
		logger:    logger.With(slog.String("component", "cleaner")),
	}
}

// Run executes one cleanup pass. Archival failure aborts the pass before
// anything is deleted, so a row is only ever removed after its cold copy
// exists.
func (c *Cleaner) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-c.retention)
	c.logger.Info("starting cleanup", slog.Time("cutoff", cutoff))

	if c.archiver != nil {
		points, err := c.history.ListBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("pipeline: list expiring history: %w", err)
		}
		if len(points) > 0 {
			location, err := c.archiver.Archive(ctx, points, cutoff)
			if err != nil {
				return fmt.Errorf("pipeline: archive expiring history: %w", err)
			}
			c.logger.Info("archived expiring history",
				slog.Int("points", len(points)),
				slog.String("location", location),
			)
		}
	}

	deleted, err := c.history.DeleteBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pipeline: delete expired history: %w", err)
	}

	trimmed, err := c.jobs.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("pipeline: trim fetch jobs: %w", err)
	}

	c.logger.Info("cleanup complete",
		slog.Int64("history_deleted", deleted),
		slog.Int64("jobs_trimmed", trimmed),
	)
	return nil
}
