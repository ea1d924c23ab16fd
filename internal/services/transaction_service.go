package services

import (
	"context"
	"log/slog"

	"finledger/internal/amqp"
	"finledger/internal/core"
)

// ReportInvalidator drops cached reports for a user after a mutation.
type ReportInvalidator interface {
	InvalidateUser(userID int64)
}

// TransactionService exposes transaction CRUD scoped to the caller. Every
// mutation publishes a change event for the worker and invalidates the
// caller's cached reports.
type TransactionService struct {
	users     UserStore
	store     TransactionStore
	publisher EventPublisher
	reports   ReportInvalidator
}

func NewTransactionService(users UserStore, store TransactionStore, publisher EventPublisher, reports ReportInvalidator) *TransactionService {
	return &TransactionService{
		users:     users,
		store:     store,
		publisher: publisher,
		reports:   reports,
	}
}

func (s *TransactionService) Create(ctx context.Context, t core.Transaction) (*core.Transaction, error) {
	owner, err := resolveOwner(ctx, s.users)
	if err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	created, err := s.store.CreateTransaction(ctx, owner.ID, t)
	if err != nil {
		return nil, err
	}

	s.afterMutation(ctx, owner.ID, created, amqp.ActionCreated)
	return created, nil
}

func (s *TransactionService) Get(ctx context.Context, id int64) (*core.Transaction, error) {
	owner, err := resolveOwner(ctx, s.users)
	if err != nil {
		return nil, err
	}
	return s.store.GetTransaction(ctx, owner.ID, id)
}

func (s *TransactionService) List(ctx context.Context) ([]core.Transaction, error) {
	owner, err := resolveOwner(ctx, s.users)
	if err != nil {
		return nil, err
	}
	return s.store.ListTransactions(ctx, owner.ID)
}

func (s *TransactionService) Update(ctx context.Context, t core.Transaction) (*core.Transaction, error) {
	owner, err := resolveOwner(ctx, s.users)
	if err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	// Fetch first so the event can cover the month the row is moving out of.
	previous, err := s.store.GetTransaction(ctx, owner.ID, t.ID)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateTransaction(ctx, owner.ID, t)
	if err != nil {
		return nil, err
	}

	if previous.Date.Year() != updated.Date.Year() || previous.Date.Month() != updated.Date.Month() {
		s.afterMutation(ctx, owner.ID, previous, amqp.ActionUpdated)
	}
	s.afterMutation(ctx, owner.ID, updated, amqp.ActionUpdated)
	return updated, nil
}

func (s *TransactionService) Delete(ctx context.Context, id int64) error {
	owner, err := resolveOwner(ctx, s.users)
	if err != nil {
		return err
	}

	// Fetch first; the row is gone by the time the event is built.
	t, err := s.store.GetTransaction(ctx, owner.ID, id)
	if err != nil {
		return err
	}

	if err := s.store.DeleteTransaction(ctx, owner.ID, id); err != nil {
		return err
	}

	s.afterMutation(ctx, owner.ID, t, amqp.ActionDeleted)
	return nil
}

// afterMutation publishes the change event and drops cached reports. Event
// delivery is best effort: the local write already succeeded and the worker
// reconcile pass catches missed rollups.
func (s *TransactionService) afterMutation(ctx context.Context, userID int64, t *core.Transaction, action string) {
	if s.reports != nil {
		s.reports.InvalidateUser(userID)
	}
	if s.publisher == nil {
		slog.WarnContext(ctx, "Event publisher not available, skipping transaction event")
		return
	}

	msg := amqp.NewTransactionEventMessage(t.ID, userID, t.Date.Year(), int(t.Date.Month()), action)
	if err := s.publisher.PublishTransactionEvent(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"transaction_id", t.ID,
			"user_id", userID,
			"action", action,
			"error", err)
	}
}
