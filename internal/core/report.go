package core

// CategoryAmount is an amount aggregated by category name.
type CategoryAmount struct {
	Name   string
	Amount Money
}

// FinancialReport summarizes a user's transactions over a date range.
// Expenses are broken down by category name.
type FinancialReport struct {
	From               Date
	To                 Date
	TotalIncome        Money
	TotalExpenses      Money
	NetBalance         Money
	ExpensesByCategory []CategoryAmount
}

// MonthlySummary is the per-month rollup maintained by the worker.
type MonthlySummary struct {
	Year     int
	Month    int // 1-12
	Income   Money
	Expenses Money
}

// Balance returns income minus expenses for the month.
func (s MonthlySummary) Balance() Money {
	return Money{Cents: s.Income.Cents - s.Expenses.Cents}
}
