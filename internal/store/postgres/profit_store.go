package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avelhorn/hubtrader/internal/domain"
)

// ProfitStore implements domain.ProfitStore using PostgreSQL. The ledger is
// append-only: entries are inserted once and never updated or deleted, not
// even by retention cleanup.
type ProfitStore struct {
	pool *pgxpool.Pool
}

// NewProfitStore creates a new ProfitStore backed by the given pool.
func NewProfitStore(pool *pgxpool.Pool) *ProfitStore {
	return &ProfitStore{pool: pool}
}

// AppendBatch inserts matched entries using pgx Batch.
func (s *ProfitStore) AppendBatch(ctx context.Context, entries []domain.ProfitEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO profit_entries (
			character_id, type_id, buy_transaction_id, sell_transaction_id,
			quantity, buy_price, sell_price, taxes, profit, matched_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	for _, e := range entries {
		batch.Queue(query,
			e.CharacterID, e.TypeID, e.BuyTransactionID, e.SellTransactionID,
			e.Quantity, e.BuyPrice, e.SellPrice, e.Taxes, e.Profit, e.MatchedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range entries {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: append profit batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListByCharacter returns a character's full ledger ordered by match time
// then id, the order the matcher folds consumption from.
func (s *ProfitStore) ListByCharacter(ctx context.Context, characterID int64) ([]domain.ProfitEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, character_id, type_id, buy_transaction_id, sell_transaction_id,
		        quantity, buy_price, sell_price, taxes, profit, matched_at
		 FROM profit_entries
		 WHERE character_id = $1
		 ORDER BY matched_at ASC, id ASC`,
		characterID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list profit entries for character %d: %w", characterID, err)
	}
	defer rows.Close()

	var entries []domain.ProfitEntry
	for rows.Next() {
		var e domain.ProfitEntry
		if err := rows.Scan(
			&e.ID, &e.CharacterID, &e.TypeID, &e.BuyTransactionID, &e.SellTransactionID,
			&e.Quantity, &e.BuyPrice, &e.SellPrice, &e.Taxes, &e.Profit, &e.MatchedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan profit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Compile-time interface check.
var _ domain.ProfitStore = (*ProfitStore)(nil)
