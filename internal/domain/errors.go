package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrLockHeld      = errors.New("lock already held")
	ErrSweepRunning  = errors.New("aggregation sweep already running")
	ErrNoToken       = errors.New("no access token for character")
	ErrLedgerCorrupt = errors.New("profit ledger inconsistent")
	ErrRateLimited   = errors.New("rate limited")
	ErrBusClosed     = errors.New("command bus subscription closed")
	ErrContextDone   = errors.New("context cancelled")
)
