// Package export defines the outbound ledger export port. The worker
// mirrors recorded transactions into an external ledger (a Google
// spreadsheet in production, an in-memory store in tests).
package export

import (
	"context"

	"finledger/internal/core"
)

// Entry is one row of the external ledger.
type Entry struct {
	Username    string
	Date        core.Date
	Type        core.TransactionType
	Category    string
	Description string
	Amount      core.Money
}

// LedgerWriter appends entries to the external ledger and returns an
// opaque row reference for the appended entry.
type LedgerWriter interface {
	AppendEntry(ctx context.Context, e Entry) (rowRef string, err error)
}
