// Package http exposes the JSON API: user registration, budget
// configuration and expense CRUD. Every expense mutation dispatches a
// budget check so threshold alerts fire without blocking the response.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bynlora/internal/core"
	applog "bynlora/internal/log"
)

// Store is the persistence surface the API needs.
type Store interface {
	CreateUser(ctx context.Context, u *core.User) error
	GetUser(ctx context.Context, id int64) (*core.User, error)
	SaveUser(ctx context.Context, u *core.User) error
	CreateExpense(ctx context.Context, e core.Expense) (int64, error)
	GetExpense(ctx context.Context, id int64) (*core.Expense, error)
	UpdateExpense(ctx context.Context, e core.Expense) error
	DeleteExpense(ctx context.Context, id, userID int64) error
	ListExpensesByDateRange(ctx context.Context, userID int64, start, end time.Time) ([]core.Expense, error)
}

// BudgetDispatcher requests an asynchronous budget re-check for a user.
// Implementations publish to the broker or run an in-process check.
type BudgetDispatcher interface {
	DispatchBudgetCheck(ctx context.Context, userID int64) error
}

type Server struct {
	store      Store
	dispatcher BudgetDispatcher
	jwtSecret  []byte
	logger     *applog.Logger
	mux        *chi.Mux
}

func NewServer(store Store, dispatcher BudgetDispatcher, jwtSecret string, logger *applog.Logger) *Server {
	s := &Server{
		store:      store,
		dispatcher: dispatcher,
		jwtSecret:  []byte(jwtSecret),
		logger:     logger,
	}
	s.mux = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(applog.Middleware(s.logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", s.handleRegister)

		// Protected routes
		r.With(jwtAuth(s.jwtSecret)).Group(func(r chi.Router) {
			r.Get("/user", s.handleGetUser)
			r.Put("/user/budget", s.handleSetBudget)

			r.Post("/expenses", s.handleCreateExpense)
			r.Get("/expenses", s.handleListExpenses)
			r.Put("/expenses/{id}", s.handleUpdateExpense)
			r.Delete("/expenses/{id}", s.handleDeleteExpense)
		})
	})

	return r
}

// dispatchBudgetCheck fires the async re-check after an expense
// mutation. Failures are logged, never surfaced to the client; the
// mutation itself already committed.
func (s *Server) dispatchBudgetCheck(ctx context.Context, userID int64) {
	if err := s.dispatcher.DispatchBudgetCheck(ctx, userID); err != nil {
		slog.ErrorContext(ctx, "Failed to dispatch budget check",
			"user_id", userID,
			"error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
