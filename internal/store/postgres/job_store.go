package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avelhorn/hubtrader/internal/domain"
)

// FetchJobStore implements domain.FetchJobStore using PostgreSQL. Status
// updates guard on the current status so a terminal job can never be
// reopened by a late writer.
type FetchJobStore struct {
	pool *pgxpool.Pool
}

// NewFetchJobStore creates a new FetchJobStore backed by the given pool.
func NewFetchJobStore(pool *pgxpool.Pool) *FetchJobStore {
	return &FetchJobStore{pool: pool}
}

const jobSelectCols = `id, region_id, status, items_count, error_message, started_at, completed_at`

func scanJob(row pgx.Row) (domain.FetchJob, error) {
	var (
		j      domain.FetchJob
		errMsg *string
	)
	if err := row.Scan(
		&j.ID, &j.RegionID, &j.Status, &j.ItemsCount,
		&errMsg, &j.StartedAt, &j.CompletedAt,
	); err != nil {
		return domain.FetchJob{}, err
	}
	if errMsg != nil {
		j.ErrorMessage = *errMsg
	}
	return j, nil
}

// Create inserts a new job row.
func (s *FetchJobStore) Create(ctx context.Context, job domain.FetchJob) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO fetch_jobs (id, region_id, status, items_count, started_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		job.ID, job.RegionID, job.Status, job.ItemsCount, job.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create fetch job %s: %w", job.ID, err)
	}
	return nil
}

// MarkRunning transitions a pending job to running.
func (s *FetchJobStore) MarkRunning(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE fetch_jobs SET status = $1 WHERE id = $2 AND status = $3`,
		domain.JobRunning, id, domain.JobPending,
	)
	if err != nil {
		return fmt.Errorf("postgres: mark fetch job %s running: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: mark fetch job %s running: %w", id, domain.ErrNotFound)
	}
	return nil
}

// MarkCompleted transitions a running job to its completed terminal state.
func (s *FetchJobStore) MarkCompleted(ctx context.Context, id string, itemsCount int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE fetch_jobs SET status = $1, items_count = $2, completed_at = NOW()
		 WHERE id = $3 AND status = $4`,
		domain.JobCompleted, itemsCount, id, domain.JobRunning,
	)
	if err != nil {
		return fmt.Errorf("postgres: mark fetch job %s completed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: mark fetch job %s completed: %w", id, domain.ErrNotFound)
	}
	return nil
}

// MarkFailed transitions a pending or running job to its failed terminal
// state, recording the captured error message.
func (s *FetchJobStore) MarkFailed(ctx context.Context, id string, errorMessage string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE fetch_jobs SET status = $1, error_message = $2, completed_at = NOW()
		 WHERE id = $3 AND status IN ($4, $5)`,
		domain.JobFailed, errorMessage, id, domain.JobPending, domain.JobRunning,
	)
	if err != nil {
		return fmt.Errorf("postgres: mark fetch job %s failed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: mark fetch job %s failed: %w", id, domain.ErrNotFound)
	}
	return nil
}

// LastCompleted returns the most recently completed job for a region, or
// domain.ErrNotFound when the region has never completed. The freshness
// check is built on this.
func (s *FetchJobStore) LastCompleted(ctx context.Context, regionID int32) (domain.FetchJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobSelectCols+` FROM fetch_jobs
		 WHERE region_id = $1 AND status = $2
		 ORDER BY completed_at DESC LIMIT 1`,
		regionID, domain.JobCompleted,
	)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.FetchJob{}, domain.ErrNotFound
		}
		return domain.FetchJob{}, fmt.Errorf("postgres: last completed job for region %d: %w", regionID, err)
	}
	return job, nil
}

// ListRecent returns the newest jobs across all regions.
func (s *FetchJobStore) ListRecent(ctx context.Context, limit int) ([]domain.FetchJob, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobSelectCols+` FROM fetch_jobs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent fetch jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.FetchJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan fetch job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// DeleteTerminalBefore purges completed and failed jobs whose run started
// before cutoff. In-flight jobs are never touched.
func (s *FetchJobStore) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM fetch_jobs WHERE started_at < $1 AND status IN ($2, $3)`,
		cutoff, domain.JobCompleted, domain.JobFailed,
	)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete fetch jobs before %v: %w", cutoff, err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.FetchJobStore = (*FetchJobStore)(nil)
