package ledger

import "errors"

// Sentinel kinds for ledger errors.
var (
	ErrLedgerUnavailable = errors.New("ledger unreachable")
	ErrGrantRejected     = errors.New("ledger rejected grant")
)
