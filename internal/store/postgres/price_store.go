package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avelhorn/hubtrader/internal/domain"
)

// PriceStore implements domain.PriceStore using PostgreSQL.
type PriceStore struct {
	pool *pgxpool.Pool
}

// NewPriceStore creates a new PriceStore backed by the given connection pool.
func NewPriceStore(pool *pgxpool.Pool) *PriceStore {
	return &PriceStore{pool: pool}
}

const priceSelectCols = `type_id, region_id, buy_price, sell_price, buy_volume, sell_volume, updated_at`

func scanPriceRows(rows pgx.Rows) ([]domain.AggregatedPrice, error) {
	var prices []domain.AggregatedPrice
	for rows.Next() {
		var p domain.AggregatedPrice
		if err := rows.Scan(
			&p.TypeID, &p.RegionID, &p.BuyPrice, &p.SellPrice,
			&p.BuyVolume, &p.SellVolume, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

// UpsertBatch writes one aggregate row per (type, region) using pgx Batch.
// Existing rows are overwritten; the table holds only the latest sweep.
func (s *PriceStore) UpsertBatch(ctx context.Context, prices []domain.AggregatedPrice) error {
	if len(prices) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO aggregated_prices (
			type_id, region_id, buy_price, sell_price,
			buy_volume, sell_volume, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (type_id, region_id) DO UPDATE SET
			buy_price = EXCLUDED.buy_price,
			sell_price = EXCLUDED.sell_price,
			buy_volume = EXCLUDED.buy_volume,
			sell_volume = EXCLUDED.sell_volume,
			updated_at = EXCLUDED.updated_at`

	for _, p := range prices {
		batch.Queue(query,
			p.TypeID, p.RegionID, p.BuyPrice, p.SellPrice,
			p.BuyVolume, p.SellVolume, p.UpdatedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range prices {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert price batch item %d: %w", i, err)
		}
	}
	return nil
}

// Get returns the aggregate for one (type, region), or domain.ErrNotFound.
func (s *PriceStore) Get(ctx context.Context, typeID, regionID int32) (domain.AggregatedPrice, error) {
	var p domain.AggregatedPrice
	err := s.pool.QueryRow(ctx,
		`SELECT `+priceSelectCols+` FROM aggregated_prices WHERE type_id = $1 AND region_id = $2`,
		typeID, regionID,
	).Scan(&p.TypeID, &p.RegionID, &p.BuyPrice, &p.SellPrice, &p.BuyVolume, &p.SellVolume, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.AggregatedPrice{}, domain.ErrNotFound
		}
		return domain.AggregatedPrice{}, fmt.Errorf("postgres: get price (%d, %d): %w", typeID, regionID, err)
	}
	return p, nil
}

// ListByRegion returns all aggregates for a region ordered by type id.
func (s *PriceStore) ListByRegion(ctx context.Context, regionID int32) ([]domain.AggregatedPrice, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+priceSelectCols+` FROM aggregated_prices WHERE region_id = $1 ORDER BY type_id`,
		regionID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list prices for region %d: %w", regionID, err)
	}
	defer rows.Close()

	prices, err := scanPriceRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan prices for region %d: %w", regionID, err)
	}
	return prices, nil
}

// ListTypeIDs returns the distinct item types currently aggregated for a
// region. The history backfiller uses this as its tracked-type set.
func (s *PriceStore) ListTypeIDs(ctx context.Context, regionID int32) ([]int32, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT type_id FROM aggregated_prices WHERE region_id = $1 ORDER BY type_id`,
		regionID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list type ids for region %d: %w", regionID, err)
	}
	defer rows.Close()

	var ids []int32
	for rows.Next() {
		var id int32
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan type id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Compile-time interface check.
var _ domain.PriceStore = (*PriceStore)(nil)
