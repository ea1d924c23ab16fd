package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"finledger/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func mustUser(t *testing.T, repo *SQLiteRepository, username string) *core.User {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), username, "hash-"+username)
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", username, err)
	}
	return u
}

func mustCategory(t *testing.T, repo *SQLiteRepository, userID int64, name string, typ core.TransactionType) *core.Category {
	t.Helper()
	c, err := repo.CreateCategory(context.Background(), core.Category{Name: name, Type: typ, UserID: userID})
	if err != nil {
		t.Fatalf("CreateCategory(%s): %v", name, err)
	}
	return c
}

func mustTransaction(t *testing.T, repo *SQLiteRepository, userID int64, tx core.Transaction) *core.Transaction {
	t.Helper()
	created, err := repo.CreateTransaction(context.Background(), userID, tx)
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	return created
}

func TestCreateUser(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u := mustUser(t, repo, "alice")
	if u.ID == 0 {
		t.Fatal("expected non-zero user id")
	}
	if len(u.Roles) != 1 || u.Roles[0] != core.RoleUser {
		t.Fatalf("expected default role, got %v", u.Roles)
	}

	if _, err := repo.CreateUser(ctx, "alice", "other-hash"); !errors.Is(err, core.ErrUsernameExists) {
		t.Fatalf("expected ErrUsernameExists, got %v", err)
	}

	found, err := repo.FindByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("FindByUsername: %v", err)
	}
	if found.ID != u.ID || found.PasswordHash != "hash-alice" {
		t.Fatalf("unexpected user: %+v", found)
	}
	if len(found.Roles) != 1 || found.Roles[0] != core.RoleUser {
		t.Fatalf("expected roles to load, got %v", found.Roles)
	}

	if _, err := repo.FindByUsername(ctx, "nobody"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCategoryOwnership(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	alice := mustUser(t, repo, "alice")
	bob := mustUser(t, repo, "bob")

	groceries := mustCategory(t, repo, alice.ID, "Groceries", core.Expense)

	// Bob cannot see, update or delete Alice's category.
	if _, err := repo.GetCategory(ctx, bob.ID, groceries.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign category, got %v", err)
	}
	if _, err := repo.UpdateCategory(ctx, core.Category{ID: groceries.ID, Name: "Hijacked", Type: core.Expense, UserID: bob.ID}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on foreign update, got %v", err)
	}
	if err := repo.DeleteCategory(ctx, bob.ID, groceries.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on foreign delete, got %v", err)
	}

	// Same name and type for another user is fine; for the same user it is not.
	mustCategory(t, repo, bob.ID, "Groceries", core.Expense)
	if _, err := repo.CreateCategory(ctx, core.Category{Name: "Groceries", Type: core.Expense, UserID: alice.ID}); !errors.Is(err, core.ErrCategoryExists) {
		t.Fatalf("expected ErrCategoryExists, got %v", err)
	}

	got, err := repo.ListCategories(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListCategories: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Groceries" {
		t.Fatalf("unexpected categories: %+v", got)
	}

	updated, err := repo.UpdateCategory(ctx, core.Category{ID: groceries.ID, Name: "Food", Type: core.Expense, UserID: alice.ID})
	if err != nil {
		t.Fatalf("UpdateCategory: %v", err)
	}
	if updated.Name != "Food" {
		t.Fatalf("unexpected name: %s", updated.Name)
	}

	if err := repo.DeleteCategory(ctx, alice.ID, groceries.ID); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	if _, err := repo.GetCategory(ctx, alice.ID, groceries.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected category gone, got %v", err)
	}
}

func TestTransactionOwnership(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	alice := mustUser(t, repo, "alice")
	bob := mustUser(t, repo, "bob")
	groceries := mustCategory(t, repo, alice.ID, "Groceries", core.Expense)
	bobCat := mustCategory(t, repo, bob.ID, "Rent", core.Expense)

	// Bob cannot record against Alice's category.
	_, err := repo.CreateTransaction(ctx, bob.ID, core.Transaction{
		Amount:      core.Money{Cents: 1000},
		Type:        core.Expense,
		Description: "sneaky",
		Date:        core.NewDate(2026, 3, 1),
		CategoryID:  groceries.ID,
	})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign category, got %v", err)
	}

	tx := mustTransaction(t, repo, alice.ID, core.Transaction{
		Amount:      core.Money{Cents: 2550},
		Type:        core.Expense,
		Description: "weekly shop",
		Date:        core.NewDate(2026, 3, 2),
		CategoryID:  groceries.ID,
	})

	// Bob cannot read, move, update or delete it.
	if _, err := repo.GetTransaction(ctx, bob.ID, tx.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on foreign get, got %v", err)
	}
	if err := repo.DeleteTransaction(ctx, bob.ID, tx.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on foreign delete, got %v", err)
	}

	// Alice cannot move her transaction onto Bob's category.
	moved := *tx
	moved.CategoryID = bobCat.ID
	if _, err := repo.UpdateTransaction(ctx, alice.ID, moved); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound moving to foreign category, got %v", err)
	}

	got, err := repo.GetTransaction(ctx, alice.ID, tx.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if got.Description != "weekly shop" || got.Amount.Cents != 2550 {
		t.Fatalf("unexpected transaction: %+v", got)
	}
	if got.Date.String() != "2026-03-02" {
		t.Fatalf("unexpected date: %s", got.Date)
	}

	updated := *tx
	updated.Description = "monthly shop"
	updated.Amount = core.Money{Cents: 9000}
	if _, err := repo.UpdateTransaction(ctx, alice.ID, updated); err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}

	list, err := repo.ListTransactions(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(list) != 1 || list[0].Description != "monthly shop" {
		t.Fatalf("unexpected list: %+v", list)
	}

	if err := repo.DeleteTransaction(ctx, alice.ID, tx.ID); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
}

func TestReportAggregates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	alice := mustUser(t, repo, "alice")
	salary := mustCategory(t, repo, alice.ID, "Salary", core.Income)
	groceries := mustCategory(t, repo, alice.ID, "Groceries", core.Expense)
	rent := mustCategory(t, repo, alice.ID, "Rent", core.Expense)

	mustTransaction(t, repo, alice.ID, core.Transaction{
		Amount: core.Money{Cents: 300000}, Type: core.Income,
		Description: "salary", Date: core.NewDate(2026, 3, 1), CategoryID: salary.ID,
	})
	mustTransaction(t, repo, alice.ID, core.Transaction{
		Amount: core.Money{Cents: 5000}, Type: core.Expense,
		Description: "shop", Date: core.NewDate(2026, 3, 10), CategoryID: groceries.ID,
	})
	mustTransaction(t, repo, alice.ID, core.Transaction{
		Amount: core.Money{Cents: 80000}, Type: core.Expense,
		Description: "march rent", Date: core.NewDate(2026, 3, 31), CategoryID: rent.ID,
	})
	// Outside the range.
	mustTransaction(t, repo, alice.ID, core.Transaction{
		Amount: core.Money{Cents: 7000}, Type: core.Expense,
		Description: "april shop", Date: core.NewDate(2026, 4, 1), CategoryID: groceries.ID,
	})

	from, to := core.NewDate(2026, 3, 1), core.NewDate(2026, 3, 31)

	income, expenses, err := repo.SumAmountsBetween(ctx, alice.ID, from, to)
	if err != nil {
		t.Fatalf("SumAmountsBetween: %v", err)
	}
	if income != 300000 || expenses != 85000 {
		t.Fatalf("got income=%d expenses=%d", income, expenses)
	}

	byCat, err := repo.ExpenseTotalsByCategory(ctx, alice.ID, from, to)
	if err != nil {
		t.Fatalf("ExpenseTotalsByCategory: %v", err)
	}
	if len(byCat) != 2 {
		t.Fatalf("expected 2 categories, got %+v", byCat)
	}
	if byCat[0].Name != "Rent" || byCat[0].Amount.Cents != 80000 {
		t.Fatalf("expected Rent first, got %+v", byCat[0])
	}
	if byCat[1].Name != "Groceries" || byCat[1].Amount.Cents != 5000 {
		t.Fatalf("unexpected second entry: %+v", byCat[1])
	}

	inRange, err := repo.ListTransactionsBetween(ctx, alice.ID, from, to)
	if err != nil {
		t.Fatalf("ListTransactionsBetween: %v", err)
	}
	if len(inRange) != 3 {
		t.Fatalf("expected 3 transactions in range, got %d", len(inRange))
	}
}

func TestMonthlySummary(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	alice := mustUser(t, repo, "alice")
	salary := mustCategory(t, repo, alice.ID, "Salary", core.Income)
	groceries := mustCategory(t, repo, alice.ID, "Groceries", core.Expense)

	// Empty month reads as a zero summary.
	empty, err := repo.GetMonthlySummary(ctx, alice.ID, 2026, 2)
	if err != nil {
		t.Fatalf("GetMonthlySummary: %v", err)
	}
	if empty.Income.Cents != 0 || empty.Expenses.Cents != 0 {
		t.Fatalf("expected zero summary, got %+v", empty)
	}

	mustTransaction(t, repo, alice.ID, core.Transaction{
		Amount: core.Money{Cents: 200000}, Type: core.Income,
		Description: "salary", Date: core.NewDate(2026, 3, 1), CategoryID: salary.ID,
	})
	mustTransaction(t, repo, alice.ID, core.Transaction{
		Amount: core.Money{Cents: 12500}, Type: core.Expense,
		Description: "shop", Date: core.NewDate(2026, 3, 15), CategoryID: groceries.ID,
	})

	built, err := repo.RebuildMonthlySummary(ctx, alice.ID, 2026, 3)
	if err != nil {
		t.Fatalf("RebuildMonthlySummary: %v", err)
	}
	if built.Income.Cents != 200000 || built.Expenses.Cents != 12500 {
		t.Fatalf("unexpected rollup: %+v", built)
	}

	// Rebuild after another transaction upserts rather than duplicating.
	mustTransaction(t, repo, alice.ID, core.Transaction{
		Amount: core.Money{Cents: 500}, Type: core.Expense,
		Description: "coffee", Date: core.NewDate(2026, 3, 20), CategoryID: groceries.ID,
	})
	if _, err := repo.RebuildMonthlySummary(ctx, alice.ID, 2026, 3); err != nil {
		t.Fatalf("RebuildMonthlySummary again: %v", err)
	}

	stored, err := repo.GetMonthlySummary(ctx, alice.ID, 2026, 3)
	if err != nil {
		t.Fatalf("GetMonthlySummary: %v", err)
	}
	if stored.Expenses.Cents != 13000 {
		t.Fatalf("expected 13000 expense cents, got %d", stored.Expenses.Cents)
	}
	if stored.Balance().Cents != 187000 {
		t.Fatalf("unexpected balance: %d", stored.Balance().Cents)
	}
}
