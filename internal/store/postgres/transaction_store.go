package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/avelhorn/hubtrader/internal/domain"
)

// TransactionStore implements domain.TransactionStore using PostgreSQL. The
// transactions table is written by the external transaction sync; this
// backend treats it as an immutable, read-only log.
type TransactionStore struct {
	pool *pgxpool.Pool
}

// NewTransactionStore creates a new TransactionStore backed by the given pool.
func NewTransactionStore(pool *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// ListByCharacter returns a character's full transaction log ordered by
// (date, transaction_id) ascending, the order the FIFO matcher consumes.
func (s *TransactionStore) ListByCharacter(ctx context.Context, characterID int64) ([]domain.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT transaction_id, character_id, type_id, quantity, unit_price,
		        is_buy, station_id, date, journal_ref_id
		 FROM transactions
		 WHERE character_id = $1
		 ORDER BY date ASC, transaction_id ASC`,
		characterID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions for character %d: %w", characterID, err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(
			&t.TransactionID, &t.CharacterID, &t.TypeID, &t.Quantity, &t.UnitPrice,
			&t.IsBuy, &t.StationID, &t.Date, &t.JournalRefID,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

// Compile-time interface check.
var _ domain.TransactionStore = (*TransactionStore)(nil)
