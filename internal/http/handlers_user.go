package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"bynlora/internal/core"
	applog "bynlora/internal/log"
	"bynlora/internal/storage"
)

type registerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type userResponse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Budget     string `json:"budget,omitempty"`
	BudgetRule bool   `json:"budget_rule"`
}

func toUserResponse(u *core.User) userResponse {
	resp := userResponse{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		BudgetRule: u.BudgetRule,
	}
	if u.HasBudget() {
		resp.Budget = u.Budget.String()
	}
	return resp
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	user := &core.User{Name: req.Name, Email: req.Email}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		applog.FromContext(r.Context()).Error("Failed to create user", "error", err)
		writeError(w, http.StatusInternalServerError, "could not create user")
		return
	}

	token, err := issueToken(s.jwtSecret, user.ID)
	if err != nil {
		applog.FromContext(r.Context()).Error("Failed to sign token", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"user":  toUserResponse(user),
		"token": token,
	})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())
	user, err := s.store.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		applog.FromContext(r.Context()).Error("Failed to load user", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load user")
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

type setBudgetRequest struct {
	Budget     string `json:"budget"`
	BudgetRule *bool  `json:"budget_rule,omitempty"`
}

// handleSetBudget updates the user's monthly limit. An empty budget
// clears the limit and the alert state with it.
func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())

	var req setBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.store.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		applog.FromContext(r.Context()).Error("Failed to load user", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load user")
		return
	}

	if strings.TrimSpace(req.Budget) == "" {
		user.Budget = core.Money{}
		user.Alerts = core.AlertState{}
	} else {
		cents, err := core.ParseDecimalToCents(req.Budget)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid budget amount")
			return
		}
		user.Budget = core.Money{Cents: cents}
	}
	if req.BudgetRule != nil {
		user.BudgetRule = *req.BudgetRule
	}

	if err := s.store.SaveUser(r.Context(), user); err != nil {
		applog.FromContext(r.Context()).Error("Failed to save user", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not save user")
		return
	}

	// A changed limit can move the user across a threshold.
	if user.HasBudget() {
		s.dispatchBudgetCheck(r.Context(), userID)
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}
