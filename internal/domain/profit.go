package domain

import "time"

// ProfitEntry is one matched (sell, buy-lot) pairing in the append-only
// profit ledger. A sell transaction may be split across several entries, one
// per lot it consumes; a buy lot may likewise back several entries.
//
// BuyTransactionID is nil when no purchase lot was available (goods acquired
// outside the market), in which case BuyPrice is zero and the full revenue
// minus taxes is profit.
//
// Invariant: the quantities of all entries referencing one sell transaction
// sum to exactly that transaction's quantity, no matter how often the engine
// has run.
type ProfitEntry struct {
	ID                int64
	CharacterID       int64
	TypeID            int32
	BuyTransactionID  *int64
	SellTransactionID int64
	Quantity          int64
	BuyPrice          float64
	SellPrice         float64
	Taxes             float64
	Profit            float64
	MatchedAt         time.Time
}
