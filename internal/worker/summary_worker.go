// Package worker maintains the monthly rollup table from transaction
// events and mirrors new transactions into the external ledger.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finledger/internal/amqp"
	"finledger/internal/core"
	"finledger/internal/export"
	"finledger/internal/storage"
)

type SummaryWorker struct {
	storage   *storage.SQLiteRepository
	ledger    export.LedgerWriter
	batchSize int
}

// NewSummaryWorker wires the worker. ledger may be nil, in which case
// ledger export is skipped and only rollups are maintained.
func NewSummaryWorker(storage *storage.SQLiteRepository, ledger export.LedgerWriter, batchSize int) *SummaryWorker {
	return &SummaryWorker{
		storage:   storage,
		ledger:    ledger,
		batchSize: batchSize,
	}
}

// HandleTransactionEvent rebuilds the rollup for the event's month and,
// for newly created transactions, appends a row to the external ledger.
// Rebuilds are idempotent, so a redelivered event is harmless.
func (w *SummaryWorker) HandleTransactionEvent(ctx context.Context, msg *amqp.TransactionEventMessage) error {
	slog.InfoContext(ctx, "Processing transaction event",
		"transaction_id", msg.TransactionID,
		"user_id", msg.UserID,
		"year", msg.Year,
		"month", msg.Month,
		"action", msg.Action)

	if _, err := w.storage.RebuildMonthlySummary(ctx, msg.UserID, msg.Year, msg.Month); err != nil {
		return fmt.Errorf("rebuild monthly summary: %w", err)
	}

	if msg.Action == amqp.ActionCreated && w.ledger != nil {
		if err := w.exportTransaction(ctx, msg.UserID, msg.TransactionID); err != nil {
			return fmt.Errorf("export transaction: %w", err)
		}
	}

	return nil
}

func (w *SummaryWorker) exportTransaction(ctx context.Context, userID, transactionID int64) error {
	t, err := w.storage.GetTransaction(ctx, userID, transactionID)
	if errors.Is(err, core.ErrNotFound) {
		// Deleted before the event was consumed; nothing left to mirror.
		slog.WarnContext(ctx, "Transaction gone before export, skipping",
			"transaction_id", transactionID,
			"user_id", userID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}

	category, err := w.storage.GetCategory(ctx, userID, t.CategoryID)
	if err != nil {
		return fmt.Errorf("get category: %w", err)
	}
	username, err := w.storage.FindUsernameByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("resolve username: %w", err)
	}

	ref, err := w.ledger.AppendEntry(ctx, export.Entry{
		Username:    username,
		Date:        t.Date,
		Type:        t.Type,
		Category:    category.Name,
		Description: t.Description,
		Amount:      t.Amount,
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Exported transaction to ledger",
		"transaction_id", transactionID,
		"user_id", userID,
		"row_ref", ref)
	return nil
}

// Reconcile rebuilds rollups whose source transactions changed after the
// stored rollup did. This is a backup for events lost on the wire.
func (w *SummaryWorker) Reconcile(ctx context.Context) error {
	return w.reconcile(ctx, w.batchSize)
}

// StartupCheck runs a larger reconcile pass once at worker startup to
// catch up after downtime.
func (w *SummaryWorker) StartupCheck(ctx context.Context) error {
	return w.reconcile(ctx, w.batchSize*5)
}

func (w *SummaryWorker) reconcile(ctx context.Context, limit int) error {
	stale, err := w.storage.ListStaleMonths(ctx, limit)
	if err != nil {
		return fmt.Errorf("list stale months: %w", err)
	}
	if len(stale) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Reconciling stale monthly summaries", "count", len(stale))

	var rebuilt, failed int
	for _, ref := range stale {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := w.storage.RebuildMonthlySummary(ctx, ref.UserID, ref.Year, ref.Month); err != nil {
			slog.ErrorContext(ctx, "Failed to rebuild monthly summary",
				"user_id", ref.UserID,
				"year", ref.Year,
				"month", ref.Month,
				"error", err)
			failed++
			continue
		}
		rebuilt++
	}

	slog.InfoContext(ctx, "Reconcile pass completed",
		"rebuilt", rebuilt,
		"failed", failed)
	return nil
}
