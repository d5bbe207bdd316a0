// Package profit reconstructs realized trading profit by matching sell
// transactions to purchase lots first-in-first-out. The matcher is a pure
// function over the immutable transaction log and the existing ledger, so
// re-running it as new transactions arrive never duplicates entries and
// never consumes a lot's capacity twice.
package profit

import (
	"fmt"
	"sort"
	"time"

	"github.com/avelhorn/hubtrader/internal/domain"
)

// Rates holds the fee fractions applied to sale revenue.
type Rates struct {
	SalesTax  float64
	BrokerFee float64
}

// combined returns the total fee fraction taken off revenue.
func (r Rates) combined() float64 {
	return r.SalesTax + r.BrokerFee
}

// Result is the outcome of one matching pass for one character. Entries
// holds the new ledger rows to append. TypeErrors carries per-type ledger
// inconsistencies (ErrLedgerCorrupt); a corrupt type never blocks matching
// for the character's other types.
type Result struct {
	Entries    []domain.ProfitEntry
	TypeErrors map[int32]error
}

// lot is a buy transaction viewed as consumable cost-basis inventory.
type lot struct {
	transactionID int64
	unitPrice     float64
	remaining     int64
}

// Match computes the ledger entries implied by the character's transaction
// log given the entries already recorded. Lots and sells are processed
// oldest first, ties broken by transaction id, so the pairing is
// deterministic. A sell with any existing entry is treated as resolved: the
// engine fully consumes every sell it processes (overflow past the lot queue
// becomes a zero-cost-basis entry), so partial resolution cannot persist
// across runs.
func Match(txns []domain.Transaction, existing []domain.ProfitEntry, rates Rates, now time.Time) Result {
	matchedSells := make(map[int64]bool)
	consumed := make(map[int64]int64)
	for _, e := range existing {
		matchedSells[e.SellTransactionID] = true
		if e.BuyTransactionID != nil {
			consumed[*e.BuyTransactionID] += e.Quantity
		}
	}

	byType := make(map[int32][]domain.Transaction)
	for _, t := range txns {
		byType[t.TypeID] = append(byType[t.TypeID], t)
	}

	typeIDs := make([]int32, 0, len(byType))
	for id := range byType {
		typeIDs = append(typeIDs, id)
	}
	sort.Slice(typeIDs, func(i, j int) bool { return typeIDs[i] < typeIDs[j] })

	res := Result{TypeErrors: make(map[int32]error)}
	for _, typeID := range typeIDs {
		entries, err := matchType(byType[typeID], matchedSells, consumed, rates, now)
		if err != nil {
			res.TypeErrors[typeID] = err
			continue
		}
		res.Entries = append(res.Entries, entries...)
	}
	return res
}

// matchType runs the FIFO walk for one item type. The lot queue is derived
// by folding already-consumed quantities over the chronological buy list; a
// negative remainder means the ledger consumed more of a lot than was ever
// bought, which is reported as corruption rather than clamped.
func matchType(txns []domain.Transaction, matchedSells map[int64]bool, consumed map[int64]int64, rates Rates, now time.Time) ([]domain.ProfitEntry, error) {
	var buys, sells []domain.Transaction
	for _, t := range txns {
		if t.IsBuy {
			buys = append(buys, t)
		} else if !matchedSells[t.TransactionID] {
			sells = append(sells, t)
		}
	}
	if len(sells) == 0 {
		return nil, nil
	}

	sortChrono(buys)
	sortChrono(sells)

	queue := make([]lot, 0, len(buys))
	for _, b := range buys {
		remaining := b.Quantity - consumed[b.TransactionID]
		if remaining < 0 {
			return nil, fmt.Errorf("%w: buy %d over-consumed by %d units",
				domain.ErrLedgerCorrupt, b.TransactionID, -remaining)
		}
		if remaining > 0 {
			queue = append(queue, lot{
				transactionID: b.TransactionID,
				unitPrice:     b.UnitPrice,
				remaining:     remaining,
			})
		}
	}

	feeRate := rates.combined()
	var entries []domain.ProfitEntry

	for _, sell := range sells {
		left := sell.Quantity

		for left > 0 && len(queue) > 0 {
			l := &queue[0]
			qty := min(left, l.remaining)

			revenue := sell.UnitPrice * float64(qty)
			taxes := revenue * feeRate
			buyID := l.transactionID
			entries = append(entries, domain.ProfitEntry{
				CharacterID:       sell.CharacterID,
				TypeID:            sell.TypeID,
				BuyTransactionID:  &buyID,
				SellTransactionID: sell.TransactionID,
				Quantity:          qty,
				BuyPrice:          l.unitPrice,
				SellPrice:         sell.UnitPrice,
				Taxes:             taxes,
				Profit:            (sell.UnitPrice-l.unitPrice)*float64(qty) - taxes,
				MatchedAt:         now,
			})

			left -= qty
			l.remaining -= qty
			if l.remaining == 0 {
				queue = queue[1:]
			}
		}

		// Sold more than was ever bought: the surplus was acquired outside
		// the market, so its cost basis is zero.
		if left > 0 {
			revenue := sell.UnitPrice * float64(left)
			taxes := revenue * feeRate
			entries = append(entries, domain.ProfitEntry{
				CharacterID:       sell.CharacterID,
				TypeID:            sell.TypeID,
				SellTransactionID: sell.TransactionID,
				Quantity:          left,
				SellPrice:         sell.UnitPrice,
				Taxes:             taxes,
				Profit:            revenue - taxes,
				MatchedAt:         now,
			})
		}
	}

	return entries, nil
}

// sortChrono orders transactions oldest first, ties broken by id.
func sortChrono(txns []domain.Transaction) {
	sort.Slice(txns, func(i, j int) bool {
		if !txns[i].Date.Equal(txns[j].Date) {
			return txns[i].Date.Before(txns[j].Date)
		}
		return txns[i].TransactionID < txns[j].TransactionID
	})
}
