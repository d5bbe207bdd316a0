package domain

import "time"

// Transaction is one immutable wallet transaction: the source of truth for
// FIFO profit matching. Rows are written once by the external transaction
// sync and are read-only to this backend.
type Transaction struct {
	TransactionID int64
	CharacterID   int64
	TypeID        int32
	Quantity      int64
	UnitPrice     float64
	IsBuy         bool
	StationID     int64
	Date          time.Time
	JournalRefID  int64
}
