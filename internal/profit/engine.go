package profit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avelhorn/hubtrader/internal/domain"
)

// lockTTL bounds how long a character's matching section may be held, so a
// crashed run cannot wedge the character forever.
const lockTTL = 2 * time.Minute

// Engine runs the FIFO matcher against the stores for one character at a
// time. Concurrent runs for the same character are serialized through the
// lock manager so two callers cannot both derive the same remaining-lot
// state and double-consume capacity; runs for different characters are
// independent.
type Engine struct {
	transactions domain.TransactionStore
	profits      domain.ProfitStore
	locks        domain.LockManager
	rates        Rates
	logger       *slog.Logger
}

// NewEngine creates an Engine with all required dependencies.
func NewEngine(
	transactions domain.TransactionStore,
	profits domain.ProfitStore,
	locks domain.LockManager,
	rates Rates,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		transactions: transactions,
		profits:      profits,
		locks:        locks,
		rates:        rates,
		logger:       logger.With(slog.String("component", "profit_engine")),
	}
}

func characterLockKey(characterID int64) string {
	return fmt.Sprintf("profit:%d", characterID)
}

// Run matches all unresolved sells for one character and appends the
// resulting ledger entries in a single batch. It returns the number of
// entries appended. Ledger corruption in one item type is logged and
// reported without blocking the character's other types.
func (e *Engine) Run(ctx context.Context, characterID int64) (int, error) {
	release, err := e.locks.Acquire(ctx, characterLockKey(characterID), lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return 0, fmt.Errorf("profit: character %d: %w", characterID, domain.ErrLockHeld)
		}
		return 0, fmt.Errorf("profit: acquire lock for character %d: %w", characterID, err)
	}
	defer release()

	txns, err := e.transactions.ListByCharacter(ctx, characterID)
	if err != nil {
		return 0, fmt.Errorf("profit: list transactions for character %d: %w", characterID, err)
	}
	existing, err := e.profits.ListByCharacter(ctx, characterID)
	if err != nil {
		return 0, fmt.Errorf("profit: list ledger for character %d: %w", characterID, err)
	}

	res := Match(txns, existing, e.rates, time.Now().UTC())

	for typeID, typeErr := range res.TypeErrors {
		e.logger.ErrorContext(ctx, "ledger inconsistency, type skipped",
			slog.Int64("character_id", characterID),
			slog.Int("type_id", int(typeID)),
			slog.String("error", typeErr.Error()),
		)
	}

	if len(res.Entries) > 0 {
		if err := e.profits.AppendBatch(ctx, res.Entries); err != nil {
			return 0, fmt.Errorf("profit: append %d entries for character %d: %w",
				len(res.Entries), characterID, err)
		}
	}

	e.logger.InfoContext(ctx, "matching pass complete",
		slog.Int64("character_id", characterID),
		slog.Int("entries", len(res.Entries)),
		slog.Int("corrupt_types", len(res.TypeErrors)),
	)

	if len(res.TypeErrors) > 0 {
		return len(res.Entries), fmt.Errorf("profit: character %d: %d type(s) skipped: %w",
			characterID, len(res.TypeErrors), domain.ErrLedgerCorrupt)
	}
	return len(res.Entries), nil
}
