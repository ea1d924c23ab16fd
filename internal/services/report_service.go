package services

import (
	"context"
	"fmt"

	"finledger/internal/cache"
	"finledger/internal/core"
)

// ReportService builds financial reports over a date range and serves the
// monthly rollups maintained by the worker. Reports are cached per
// (user, from, to); mutations invalidate all of a user's entries.
type ReportService struct {
	users UserStore
	store ReportStore
	cache *cache.LRUCache[*core.FinancialReport]
}

func NewReportService(users UserStore, store ReportStore, reportCache *cache.LRUCache[*core.FinancialReport]) *ReportService {
	return &ReportService{users: users, store: store, cache: reportCache}
}

func reportKeyPrefix(userID int64) string {
	return fmt.Sprintf("report:%d:", userID)
}

func reportKey(userID int64, from, to core.Date) string {
	return fmt.Sprintf("%s%s:%s", reportKeyPrefix(userID), from, to)
}

// Financial aggregates the caller's transactions over [from, to].
func (s *ReportService) Financial(ctx context.Context, from, to core.Date) (*core.FinancialReport, error) {
	owner, err := resolveOwner(ctx, s.users)
	if err != nil {
		return nil, err
	}
	if from.IsZero() || to.IsZero() || from.After(to.Time) {
		return nil, core.ErrInvalidDate
	}

	key := reportKey(owner.ID, from, to)
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			return cached, nil
		}
	}

	income, expenses, err := s.store.SumAmountsBetween(ctx, owner.ID, from, to)
	if err != nil {
		return nil, err
	}
	byCategory, err := s.store.ExpenseTotalsByCategory(ctx, owner.ID, from, to)
	if err != nil {
		return nil, err
	}

	report := &core.FinancialReport{
		From:               from,
		To:                 to,
		TotalIncome:        core.Money{Cents: income},
		TotalExpenses:      core.Money{Cents: expenses},
		NetBalance:         core.Money{Cents: income - expenses},
		ExpensesByCategory: byCategory,
	}

	if s.cache != nil {
		s.cache.Set(key, report)
	}
	return report, nil
}

// Monthly returns the stored rollup for the caller's (year, month).
func (s *ReportService) Monthly(ctx context.Context, year, month int) (*core.MonthlySummary, error) {
	owner, err := resolveOwner(ctx, s.users)
	if err != nil {
		return nil, err
	}
	if month < 1 || month > 12 || year < 1 {
		return nil, core.ErrInvalidDate
	}
	return s.store.GetMonthlySummary(ctx, owner.ID, year, month)
}

// InvalidateUser drops every cached report belonging to userID.
func (s *ReportService) InvalidateUser(userID int64) {
	if s.cache != nil {
		s.cache.DeleteByPrefix(reportKeyPrefix(userID))
	}
}
