package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avelhorn/hubtrader/internal/domain"
)

// HistoryStore implements domain.HistoryStore using PostgreSQL.
type HistoryStore struct {
	pool *pgxpool.Pool
}

// NewHistoryStore creates a new HistoryStore backed by the given pool.
func NewHistoryStore(pool *pgxpool.Pool) *HistoryStore {
	return &HistoryStore{pool: pool}
}

const historySelectCols = `type_id, region_id, buy_price, sell_price, buy_volume, sell_volume, recorded_at`

func scanHistoryRows(rows pgx.Rows) ([]domain.PriceHistoryPoint, error) {
	var points []domain.PriceHistoryPoint
	for rows.Next() {
		var p domain.PriceHistoryPoint
		if err := rows.Scan(
			&p.TypeID, &p.RegionID, &p.BuyPrice, &p.SellPrice,
			&p.BuyVolume, &p.SellVolume, &p.RecordedAt,
		); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// AppendBatch inserts snapshot points using pgx Batch. Duplicate keys
// (type, region, recorded_at) are silently skipped so both the sweep and the
// backfiller can append without coordination.
func (s *HistoryStore) AppendBatch(ctx context.Context, points []domain.PriceHistoryPoint) error {
	if len(points) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO price_history (
			type_id, region_id, buy_price, sell_price,
			buy_volume, sell_volume, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (type_id, region_id, recorded_at) DO NOTHING`

	for _, p := range points {
		batch.Queue(query,
			p.TypeID, p.RegionID, p.BuyPrice, p.SellPrice,
			p.BuyVolume, p.SellVolume, p.RecordedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range points {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: append history batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListRange returns snapshots for one (type, region) within [since, until],
// oldest first.
func (s *HistoryStore) ListRange(ctx context.Context, typeID, regionID int32, since, until time.Time) ([]domain.PriceHistoryPoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+historySelectCols+` FROM price_history
		 WHERE type_id = $1 AND region_id = $2 AND recorded_at >= $3 AND recorded_at <= $4
		 ORDER BY recorded_at ASC`,
		typeID, regionID, since, until,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list history range (%d, %d): %w", typeID, regionID, err)
	}
	defer rows.Close()

	points, err := scanHistoryRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan history range (%d, %d): %w", typeID, regionID, err)
	}
	return points, nil
}

// ListBefore returns all snapshots recorded strictly before cutoff, oldest
// first, for archiving ahead of deletion.
func (s *HistoryStore) ListBefore(ctx context.Context, cutoff time.Time) ([]domain.PriceHistoryPoint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+historySelectCols+` FROM price_history WHERE recorded_at < $1 ORDER BY recorded_at ASC`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list history before %v: %w", cutoff, err)
	}
	defer rows.Close()
	return scanHistoryRows(rows)
}

// DeleteBefore removes snapshots recorded strictly before cutoff and returns
// the number deleted.
func (s *HistoryStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM price_history WHERE recorded_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete history before %v: %w", cutoff, err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.HistoryStore = (*HistoryStore)(nil)
