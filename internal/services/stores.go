// Package services orchestrates domain operations across storage, the token
// codec and AMQP. Every category, transaction and report operation resolves
// the caller from the request context first and passes the owner's id into a
// single owner-filtered query, so a row that is not the caller's looks
// exactly like a row that does not exist.
package services

import (
	"context"
	"fmt"

	"finledger/internal/amqp"
	"finledger/internal/auth"
	"finledger/internal/core"
)

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (*core.User, error)
	FindByUsername(ctx context.Context, username string) (*core.User, error)
}

// CategoryStore persists categories, always filtered by owner.
type CategoryStore interface {
	CreateCategory(ctx context.Context, c core.Category) (*core.Category, error)
	GetCategory(ctx context.Context, userID, id int64) (*core.Category, error)
	ListCategories(ctx context.Context, userID int64) ([]core.Category, error)
	UpdateCategory(ctx context.Context, c core.Category) (*core.Category, error)
	DeleteCategory(ctx context.Context, userID, id int64) error
}

// TransactionStore persists transactions; ownership runs through the
// referenced category.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, userID int64, t core.Transaction) (*core.Transaction, error)
	GetTransaction(ctx context.Context, userID, id int64) (*core.Transaction, error)
	ListTransactions(ctx context.Context, userID int64) ([]core.Transaction, error)
	UpdateTransaction(ctx context.Context, userID int64, t core.Transaction) (*core.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, id int64) error
}

// ReportStore reads the aggregates reports are built from.
type ReportStore interface {
	SumAmountsBetween(ctx context.Context, userID int64, from, to core.Date) (income, expenses int64, err error)
	ExpenseTotalsByCategory(ctx context.Context, userID int64, from, to core.Date) ([]core.CategoryAmount, error)
	GetMonthlySummary(ctx context.Context, userID int64, year, month int) (*core.MonthlySummary, error)
}

// EventPublisher emits transaction change events for the worker.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, msg *amqp.TransactionEventMessage) error
}

// resolveOwner maps the authenticated username in ctx to its account row.
// No identity in the context means the caller is not allowed anything.
func resolveOwner(ctx context.Context, users UserStore) (*core.User, error) {
	username, err := auth.CurrentUsername(ctx)
	if err != nil {
		return nil, err
	}
	user, err := users.FindByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("resolve owner %q: %w", username, err)
	}
	return user, nil
}
