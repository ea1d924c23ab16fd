package worker

import (
	"context"
	"path/filepath"
	"testing"

	"finledger/internal/amqp"
	"finledger/internal/core"
	"finledger/internal/export/memory"
	"finledger/internal/storage"
)

func newTestWorker(t *testing.T) (*SummaryWorker, *storage.SQLiteRepository, *memory.Ledger) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	ledger := memory.New()
	return NewSummaryWorker(repo, ledger, 10), repo, ledger
}

func seedTransaction(t *testing.T, repo *storage.SQLiteRepository) (userID int64, tx *core.Transaction) {
	t.Helper()
	ctx := context.Background()
	u, err := repo.CreateUser(ctx, "alice", "hash")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	c, err := repo.CreateCategory(ctx, core.Category{Name: "Groceries", Type: core.Expense, UserID: u.ID})
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	tx, err = repo.CreateTransaction(ctx, u.ID, core.Transaction{
		Amount:      core.Money{Cents: 2550},
		Type:        core.Expense,
		Description: "weekly shop",
		Date:        core.NewDate(2026, 3, 14),
		CategoryID:  c.ID,
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	return u.ID, tx
}

func TestHandleTransactionEvent_RebuildsAndExports(t *testing.T) {
	w, repo, ledger := newTestWorker(t)
	ctx := context.Background()
	userID, tx := seedTransaction(t, repo)

	msg := amqp.NewTransactionEventMessage(tx.ID, userID, 2026, 3, amqp.ActionCreated)
	if err := w.HandleTransactionEvent(ctx, msg); err != nil {
		t.Fatalf("HandleTransactionEvent: %v", err)
	}

	summary, err := repo.GetMonthlySummary(ctx, userID, 2026, 3)
	if err != nil {
		t.Fatalf("GetMonthlySummary: %v", err)
	}
	if summary.Expenses.Cents != 2550 {
		t.Fatalf("expected 2550 expense cents, got %d", summary.Expenses.Cents)
	}

	entries := ledger.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Username != "alice" {
		t.Errorf("entry username = %q, want alice", e.Username)
	}
	if e.Category != "Groceries" {
		t.Errorf("entry category = %q, want Groceries", e.Category)
	}
	if e.Amount.Cents != 2550 {
		t.Errorf("entry amount = %d cents, want 2550", e.Amount.Cents)
	}
	if e.Date.String() != "2026-03-14" {
		t.Errorf("entry date = %q, want 2026-03-14", e.Date.String())
	}
}

func TestHandleTransactionEvent_UpdatedDoesNotExport(t *testing.T) {
	w, repo, ledger := newTestWorker(t)
	ctx := context.Background()
	userID, tx := seedTransaction(t, repo)

	msg := amqp.NewTransactionEventMessage(tx.ID, userID, 2026, 3, amqp.ActionUpdated)
	if err := w.HandleTransactionEvent(ctx, msg); err != nil {
		t.Fatalf("HandleTransactionEvent: %v", err)
	}
	if got := len(ledger.Entries()); got != 0 {
		t.Fatalf("expected no ledger entries for update event, got %d", got)
	}
}

func TestHandleTransactionEvent_MissingTransactionSkipsExport(t *testing.T) {
	w, repo, ledger := newTestWorker(t)
	ctx := context.Background()
	userID, tx := seedTransaction(t, repo)

	if err := repo.DeleteTransaction(ctx, userID, tx.ID); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}

	// Event for a transaction that was deleted before consumption.
	msg := amqp.NewTransactionEventMessage(tx.ID, userID, 2026, 3, amqp.ActionCreated)
	if err := w.HandleTransactionEvent(ctx, msg); err != nil {
		t.Fatalf("HandleTransactionEvent: %v", err)
	}
	if got := len(ledger.Entries()); got != 0 {
		t.Fatalf("expected no ledger entries, got %d", got)
	}

	summary, err := repo.GetMonthlySummary(ctx, userID, 2026, 3)
	if err != nil {
		t.Fatalf("GetMonthlySummary: %v", err)
	}
	if summary.Income.Cents != 0 || summary.Expenses.Cents != 0 {
		t.Fatalf("expected zero summary, got %+v", summary)
	}
}

func TestReconcile_RebuildsStaleMonths(t *testing.T) {
	w, repo, _ := newTestWorker(t)
	ctx := context.Background()
	userID, _ := seedTransaction(t, repo)

	// No rollup row exists yet, so the month is stale.
	if err := w.Reconcile(ctx); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}

	summary, err := repo.GetMonthlySummary(ctx, userID, 2026, 3)
	if err != nil {
		t.Fatalf("GetMonthlySummary: %v", err)
	}
	if summary.Expenses.Cents != 2550 {
		t.Fatalf("expected 2550 expense cents after reconcile, got %d", summary.Expenses.Cents)
	}

	// A second pass finds nothing left to do.
	stale, err := repo.ListStaleMonths(ctx, 10)
	if err != nil {
		t.Fatalf("ListStaleMonths: %v", err)
	}
	if len(stale) != 0 {
		t.Fatalf("expected no stale months after reconcile, got %v", stale)
	}
}

func TestStartupCheck_EmptyDatabase(t *testing.T) {
	w, _, _ := newTestWorker(t)
	if err := w.StartupCheck(context.Background()); err != nil {
		t.Fatalf("StartupCheck: %v", err)
	}
}
