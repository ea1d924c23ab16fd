package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"finledger/internal/core"
)

type categoryAmountResponse struct {
	Name   string      `json:"name"`
	Amount json.Number `json:"amount"`
}

type financialReportResponse struct {
	From               core.Date                `json:"from"`
	To                 core.Date                `json:"to"`
	TotalIncome        json.Number              `json:"total_income"`
	TotalExpenses      json.Number              `json:"total_expenses"`
	NetBalance         json.Number              `json:"net_balance"`
	ExpensesByCategory []categoryAmountResponse `json:"expenses_by_category"`
}

type monthlySummaryResponse struct {
	Year     int         `json:"year"`
	Month    int         `json:"month"`
	Income   json.Number `json:"income"`
	Expenses json.Number `json:"expenses"`
	Balance  json.Number `json:"balance"`
}

func (s *Server) handleFinancialReport(w http.ResponseWriter, r *http.Request) {
	from, err := core.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid or missing from date, expected YYYY-MM-DD")
		return
	}
	to, err := core.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid or missing to date, expected YYYY-MM-DD")
		return
	}

	report, err := s.reports.Financial(r.Context(), from, to)
	if err != nil {
		respondError(w, r, err)
		return
	}

	byCategory := make([]categoryAmountResponse, 0, len(report.ExpensesByCategory))
	for _, ca := range report.ExpensesByCategory {
		byCategory = append(byCategory, categoryAmountResponse{
			Name:   ca.Name,
			Amount: json.Number(ca.Amount.Decimal()),
		})
	}

	writeJSON(w, http.StatusOK, financialReportResponse{
		From:               report.From,
		To:                 report.To,
		TotalIncome:        json.Number(report.TotalIncome.Decimal()),
		TotalExpenses:      json.Number(report.TotalExpenses.Decimal()),
		NetBalance:         json.Number(report.NetBalance.Decimal()),
		ExpensesByCategory: byCategory,
	})
}

// parseYearMonth reads year and month query parameters, defaulting to the
// current period when absent.
func parseYearMonth(r *http.Request) (year, month int) {
	now := time.Now()
	year = now.Year()
	month = int(now.Month())

	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			year = y
		}
	}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil {
			month = m
		}
	}

	return year, month
}

func (s *Server) handleMonthlySummary(w http.ResponseWriter, r *http.Request) {
	year, month := parseYearMonth(r)

	summary, err := s.reports.Monthly(r.Context(), year, month)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, monthlySummaryResponse{
		Year:     summary.Year,
		Month:    summary.Month,
		Income:   json.Number(summary.Income.Decimal()),
		Expenses: json.Number(summary.Expenses.Decimal()),
		Balance:  json.Number(summary.Balance().Decimal()),
	})
}
