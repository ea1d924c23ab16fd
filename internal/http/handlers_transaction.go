package http

import (
	"encoding/json"
	"net/http"

	"finledger/internal/core"
)

type transactionRequest struct {
	Amount      json.Number `json:"amount"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Date        string      `json:"date"`
	CategoryID  int64       `json:"category_id"`
}

type transactionResponse struct {
	ID          int64       `json:"id"`
	Amount      json.Number `json:"amount"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Date        core.Date   `json:"date"`
	CategoryID  int64       `json:"category_id"`
}

func toTransactionResponse(t *core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		Amount:      json.Number(t.Amount.Decimal()),
		Type:        string(t.Type),
		Description: t.Description,
		Date:        t.Date,
		CategoryID:  t.CategoryID,
	}
}

// toTransaction converts the wire shape into the domain type. Amounts come
// in as decimal values and are stored as cents.
func (req transactionRequest) toTransaction(id int64) (core.Transaction, error) {
	cents, err := core.ParseDecimalToCents(req.Amount.String())
	if err != nil {
		return core.Transaction{}, core.ErrInvalidAmount
	}

	typ, err := core.ParseTransactionType(req.Type)
	if err != nil {
		return core.Transaction{}, err
	}

	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.Transaction{}, err
	}

	return core.Transaction{
		ID:          id,
		Amount:      core.Money{Cents: cents},
		Type:        typ,
		Description: req.Description,
		Date:        date,
		CategoryID:  req.CategoryID,
	}, nil
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := req.toTransaction(0)
	if err != nil {
		respondError(w, r, err)
		return
	}

	created, err := s.transactions.Create(r.Context(), t)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionResponse(created))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	list, err := s.transactions.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]transactionResponse, 0, len(list))
	for i := range list {
		out = append(out, toTransactionResponse(&list[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid transaction id")
		return
	}

	t, err := s.transactions.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(t))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid transaction id")
		return
	}

	var req transactionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := req.toTransaction(id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	updated, err := s.transactions.Update(r.Context(), t)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(updated))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "invalid transaction id")
		return
	}

	if err := s.transactions.Delete(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
