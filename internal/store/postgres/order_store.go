package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avelhorn/hubtrader/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates a new OrderStore backed by the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderSelectCols = `order_id, character_id, type_id, region_id, location_id,
	is_buy_order, price, volume_total, volume_remain, issued, state`

// UpsertBatch mirrors the latest upstream order set using pgx Batch. A
// previously expired order that reappears is reactivated.
func (s *OrderStore) UpsertBatch(ctx context.Context, orders []domain.CharacterOrder) error {
	if len(orders) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO character_orders (
			order_id, character_id, type_id, region_id, location_id,
			is_buy_order, price, volume_total, volume_remain, issued, state
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (order_id) DO UPDATE SET
			price = EXCLUDED.price,
			volume_remain = EXCLUDED.volume_remain,
			issued = EXCLUDED.issued,
			state = EXCLUDED.state`

	for _, o := range orders {
		batch.Queue(query,
			o.OrderID, o.CharacterID, o.TypeID, o.RegionID, o.LocationID,
			o.IsBuyOrder, o.Price, o.VolumeTotal, o.VolumeRemain, o.Issued, o.State,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range orders {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert order batch item %d: %w", i, err)
		}
	}
	return nil
}

// ExpireMissing soft-deletes a character's active orders that are absent
// from the latest sync. Rows are only ever marked expired, never removed.
func (s *OrderStore) ExpireMissing(ctx context.Context, characterID int64, liveOrderIDs []int64) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE character_orders SET state = $1
		 WHERE character_id = $2 AND state = $3 AND NOT (order_id = ANY($4))`,
		domain.OrderExpired, characterID, domain.OrderActive, liveOrderIDs,
	)
	if err != nil {
		return 0, fmt.Errorf("postgres: expire orders for character %d: %w", characterID, err)
	}
	return tag.RowsAffected(), nil
}

// ListActive returns a character's currently resting orders.
func (s *OrderStore) ListActive(ctx context.Context, characterID int64) ([]domain.CharacterOrder, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+orderSelectCols+` FROM character_orders
		 WHERE character_id = $1 AND state = $2 ORDER BY order_id`,
		characterID, domain.OrderActive,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active orders for character %d: %w", characterID, err)
	}
	defer rows.Close()

	var orders []domain.CharacterOrder
	for rows.Next() {
		var o domain.CharacterOrder
		if err := rows.Scan(
			&o.OrderID, &o.CharacterID, &o.TypeID, &o.RegionID, &o.LocationID,
			&o.IsBuyOrder, &o.Price, &o.VolumeTotal, &o.VolumeRemain, &o.Issued, &o.State,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// Compile-time interface check.
var _ domain.OrderStore = (*OrderStore)(nil)
