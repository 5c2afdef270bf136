package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"bynlora/internal/core"
	applog "bynlora/internal/log"
	"bynlora/internal/recurring"
	"bynlora/internal/storage"
)

type expenseRequest struct {
	Title         string `json:"title"`
	Amount        string `json:"amount"`
	Category      string `json:"category"`
	Date          string `json:"date"` // YYYY-MM-DD
	PaymentMethod string `json:"payment_method,omitempty"`
	Notes         string `json:"notes,omitempty"`
	IsRecurring   bool   `json:"is_recurring"`
	Frequency     string `json:"frequency,omitempty"`
}

type expenseResponse struct {
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	Amount         string `json:"amount"`
	Category       string `json:"category"`
	Date           string `json:"date"`
	PaymentMethod  string `json:"payment_method,omitempty"`
	Notes          string `json:"notes,omitempty"`
	IsRecurring    bool   `json:"is_recurring"`
	Frequency      string `json:"frequency,omitempty"`
	NextOccurrence string `json:"next_occurrence,omitempty"`
}

func toExpenseResponse(e core.Expense) expenseResponse {
	resp := expenseResponse{
		ID:            e.ID,
		Title:         e.Title,
		Amount:        e.Amount.String(),
		Category:      e.Category,
		Date:          e.Date.Format("2006-01-02"),
		PaymentMethod: string(e.PaymentMethod),
		Notes:         e.Notes,
		IsRecurring:   e.IsRecurring,
		Frequency:     string(e.Frequency),
	}
	if !e.NextOccurrence.IsZero() {
		resp.NextOccurrence = e.NextOccurrence.Format("2006-01-02")
	}
	return resp
}

// applyExpenseRequest maps the request onto an expense record. Returned
// errors are safe to show to the client.
func applyExpenseRequest(e *core.Expense, req expenseRequest) error {
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		return errors.New("invalid amount")
	}
	date, err := time.Parse("2006-01-02", strings.TrimSpace(req.Date))
	if err != nil {
		return errors.New("invalid date, expected YYYY-MM-DD")
	}
	if req.IsRecurring && !core.Frequency(req.Frequency).Valid() {
		return errors.New("invalid frequency, expected weekly, monthly or yearly")
	}

	e.Title = strings.TrimSpace(req.Title)
	e.Amount = core.Money{Cents: cents}
	e.Category = strings.TrimSpace(req.Category)
	e.Date = date
	e.PaymentMethod = core.PaymentMethod(req.PaymentMethod)
	e.Notes = req.Notes
	e.IsRecurring = req.IsRecurring
	e.Frequency = core.Frequency(req.Frequency)
	return nil
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())

	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	expense := core.Expense{UserID: userID}
	if err := applyExpenseRequest(&expense, req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	recurring.Reschedule(&expense, time.Now())
	if err := expense.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := s.store.CreateExpense(r.Context(), expense)
	if err != nil {
		applog.FromContext(r.Context()).Error("Failed to create expense", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not create expense")
		return
	}
	expense.ID = id

	s.dispatchBudgetCheck(r.Context(), userID)
	writeJSON(w, http.StatusCreated, toExpenseResponse(expense))
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())

	now := time.Now()
	year, month := now.Year(), int(now.Month())
	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			year = y
		}
	}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil && m >= 1 && m <= 12 {
			month = m
		}
	}

	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)

	expenses, err := s.store.ListExpensesByDateRange(r.Context(), userID, start, end)
	if err != nil {
		applog.FromContext(r.Context()).Error("Failed to list expenses", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not list expenses")
		return
	}

	resp := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		resp = append(resp, toExpenseResponse(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid expense id")
		return
	}

	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	expense, err := s.store.GetExpense(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "expense not found")
			return
		}
		applog.FromContext(r.Context()).Error("Failed to load expense", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load expense")
		return
	}
	if expense.UserID != userID {
		// Not revealing whether the row exists.
		writeError(w, http.StatusNotFound, "expense not found")
		return
	}

	if err := applyExpenseRequest(expense, req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	recurring.Reschedule(expense, time.Now())
	if err := expense.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.UpdateExpense(r.Context(), *expense); err != nil {
		applog.FromContext(r.Context()).Error("Failed to update expense", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "could not update expense")
		return
	}

	s.dispatchBudgetCheck(r.Context(), userID)
	writeJSON(w, http.StatusOK, toExpenseResponse(*expense))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid expense id")
		return
	}

	if err := s.store.DeleteExpense(r.Context(), id, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "expense not found")
			return
		}
		applog.FromContext(r.Context()).Error("Failed to delete expense", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "could not delete expense")
		return
	}

	// Spending went down; alert levels stay latched but a re-check keeps
	// the persisted percentage-dependent state fresh for callers.
	s.dispatchBudgetCheck(r.Context(), userID)
	w.WriteHeader(http.StatusNoContent)
}
