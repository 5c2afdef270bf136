package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bynlora/internal/core"
	applog "bynlora/internal/log"
	"bynlora/internal/storage"
)

const testSecret = "test-secret"

type fakeStore struct {
	users    map[int64]*core.User
	expenses map[int64]*core.Expense
	nextID   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[int64]*core.User),
		expenses: make(map[int64]*core.Expense),
	}
}

func (s *fakeStore) CreateUser(_ context.Context, u *core.User) error {
	s.nextID++
	u.ID = s.nextID
	clone := *u
	s.users[u.ID] = &clone
	return nil
}

func (s *fakeStore) GetUser(_ context.Context, id int64) (*core.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (s *fakeStore) SaveUser(_ context.Context, u *core.User) error {
	if _, ok := s.users[u.ID]; !ok {
		return storage.ErrNotFound
	}
	clone := *u
	s.users[u.ID] = &clone
	return nil
}

func (s *fakeStore) CreateExpense(_ context.Context, e core.Expense) (int64, error) {
	s.nextID++
	e.ID = s.nextID
	s.expenses[e.ID] = &e
	return e.ID, nil
}

func (s *fakeStore) GetExpense(_ context.Context, id int64) (*core.Expense, error) {
	e, ok := s.expenses[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	clone := *e
	return &clone, nil
}

func (s *fakeStore) UpdateExpense(_ context.Context, e core.Expense) error {
	if _, ok := s.expenses[e.ID]; !ok {
		return storage.ErrNotFound
	}
	s.expenses[e.ID] = &e
	return nil
}

func (s *fakeStore) DeleteExpense(_ context.Context, id, userID int64) error {
	e, ok := s.expenses[id]
	if !ok || e.UserID != userID {
		return storage.ErrNotFound
	}
	delete(s.expenses, id)
	return nil
}

func (s *fakeStore) ListExpensesByDateRange(_ context.Context, userID int64, start, end time.Time) ([]core.Expense, error) {
	var out []core.Expense
	for _, e := range s.expenses {
		if e.UserID == userID && !e.Date.Before(start) && !e.Date.After(end) {
			out = append(out, *e)
		}
	}
	return out, nil
}

type fakeDispatcher struct {
	checks []int64
}

func (d *fakeDispatcher) DispatchBudgetCheck(_ context.Context, userID int64) error {
	d.checks = append(d.checks, userID)
	return nil
}

func newTestServer() (*Server, *fakeStore, *fakeDispatcher) {
	store := newFakeStore()
	dispatcher := &fakeDispatcher{}
	logger := applog.New(applog.DefaultConfig())
	return NewServer(store, dispatcher, testSecret, logger), store, dispatcher
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func register(t *testing.T, srv *Server) (int64, string) {
	t.Helper()
	rec := doJSON(t, srv, http.MethodPost, "/api/register", "", map[string]string{
		"name":  "Ada",
		"email": "ada@example.com",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body)
	}
	var resp struct {
		User  userResponse `json:"user"`
		Token string       `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("register returned empty token")
	}
	return resp.User.ID, resp.Token
}

func TestRegisterAndAuthenticate(t *testing.T) {
	srv, _, _ := newTestServer()
	_, token := register(t, srv)

	rec := doJSON(t, srv, http.MethodGet, "/api/user", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/user = %d, body %s", rec.Code, rec.Body)
	}
	var user userResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if user.Name != "Ada" || user.Email != "ada@example.com" {
		t.Errorf("user = %+v, want Ada/ada@example.com", user)
	}
}

func TestProtectedRoutesRejectMissingToken(t *testing.T) {
	srv, _, _ := newTestServer()
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/user"},
		{http.MethodPut, "/api/user/budget"},
		{http.MethodPost, "/api/expenses"},
		{http.MethodGet, "/api/expenses"},
	} {
		rec := doJSON(t, srv, tc.method, tc.path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s = %d, want 401", tc.method, tc.path, rec.Code)
		}
	}
}

func TestCreateExpenseDispatchesBudgetCheck(t *testing.T) {
	srv, store, dispatcher := newTestServer()
	userID, token := register(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/expenses", token, expenseRequest{
		Title:    "Groceries",
		Amount:   "42.50",
		Category: "Food",
		Date:     "2024-03-10",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d, body %s", rec.Code, rec.Body)
	}

	var resp expenseResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode expense: %v", err)
	}
	if resp.Amount != "42.50" || resp.Date != "2024-03-10" {
		t.Errorf("response = %+v", resp)
	}

	stored := store.expenses[resp.ID]
	if stored == nil || stored.UserID != userID {
		t.Fatalf("expense not stored for user %d", userID)
	}
	if len(dispatcher.checks) != 1 || dispatcher.checks[0] != userID {
		t.Errorf("dispatched checks = %v, want [%d]", dispatcher.checks, userID)
	}
}

func TestCreateRecurringExpenseSchedulesNextOccurrence(t *testing.T) {
	srv, store, _ := newTestServer()
	_, token := register(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/expenses", token, expenseRequest{
		Title:       "Rent",
		Amount:      "800.00",
		Category:    "Housing",
		Date:        "2024-01-01",
		IsRecurring: true,
		Frequency:   "monthly",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d, body %s", rec.Code, rec.Body)
	}

	var resp expenseResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode expense: %v", err)
	}
	if resp.NextOccurrence == "" {
		t.Fatal("recurring expense has no next occurrence")
	}
	next := store.expenses[resp.ID].NextOccurrence
	if !next.After(time.Now()) {
		t.Errorf("next occurrence %v is not in the future", next)
	}
}

func TestCreateExpenseValidation(t *testing.T) {
	srv, _, dispatcher := newTestServer()
	_, token := register(t, srv)

	tests := []struct {
		name string
		req  expenseRequest
	}{
		{"bad amount", expenseRequest{Title: "x", Amount: "abc", Category: "c", Date: "2024-03-10"}},
		{"bad date", expenseRequest{Title: "x", Amount: "1.00", Category: "c", Date: "10/03/2024"}},
		{"missing title", expenseRequest{Title: " ", Amount: "1.00", Category: "c", Date: "2024-03-10"}},
		{"recurring without frequency", expenseRequest{Title: "x", Amount: "1.00", Category: "c", Date: "2024-03-10", IsRecurring: true}},
		{"bad frequency", expenseRequest{Title: "x", Amount: "1.00", Category: "c", Date: "2024-03-10", IsRecurring: true, Frequency: "daily"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, srv, http.MethodPost, "/api/expenses", token, tt.req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400, body %s", rec.Code, rec.Body)
			}
		})
	}
	if len(dispatcher.checks) != 0 {
		t.Errorf("rejected requests must not dispatch checks, got %v", dispatcher.checks)
	}
}

func TestUpdateExpenseEnforcesOwnership(t *testing.T) {
	srv, store, _ := newTestServer()
	_, token := register(t, srv)

	// Expense owned by someone else.
	store.nextID++
	other := &core.Expense{
		ID:       store.nextID,
		UserID:   999,
		Title:    "Theirs",
		Amount:   core.Money{Cents: 100},
		Category: "Misc",
		Date:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	store.expenses[other.ID] = other

	rec := doJSON(t, srv, http.MethodPut, fmt.Sprintf("/api/expenses/%d", other.ID), token, expenseRequest{
		Title: "Mine now", Amount: "1.00", Category: "Misc", Date: "2024-03-01",
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("cross-user update = %d, want 404", rec.Code)
	}
	if store.expenses[other.ID].Title != "Theirs" {
		t.Error("cross-user update must not modify the row")
	}
}

func TestDeleteExpense(t *testing.T) {
	srv, store, dispatcher := newTestServer()
	userID, token := register(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/expenses", token, expenseRequest{
		Title: "Coffee", Amount: "3.00", Category: "Food", Date: "2024-03-10",
	})
	var created expenseResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	dispatcher.checks = nil

	rec = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/expenses/%d", created.ID), token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d, body %s", rec.Code, rec.Body)
	}
	if _, ok := store.expenses[created.ID]; ok {
		t.Error("expense still present after delete")
	}
	if len(dispatcher.checks) != 1 || dispatcher.checks[0] != userID {
		t.Errorf("dispatched checks = %v, want [%d]", dispatcher.checks, userID)
	}

	rec = doJSON(t, srv, http.MethodDelete, fmt.Sprintf("/api/expenses/%d", created.ID), token, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("double delete = %d, want 404", rec.Code)
	}
}

func TestSetBudget(t *testing.T) {
	srv, store, dispatcher := newTestServer()
	userID, token := register(t, srv)

	rec := doJSON(t, srv, http.MethodPut, "/api/user/budget", token, setBudgetRequest{Budget: "1000.00"})
	if rec.Code != http.StatusOK {
		t.Fatalf("set budget = %d, body %s", rec.Code, rec.Body)
	}
	if got := store.users[userID].Budget.Cents; got != 100000 {
		t.Errorf("stored budget = %d cents, want 100000", got)
	}
	if len(dispatcher.checks) != 1 {
		t.Errorf("setting a budget should dispatch a check, got %v", dispatcher.checks)
	}

	rec = doJSON(t, srv, http.MethodPut, "/api/user/budget", token, setBudgetRequest{Budget: "nope"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid budget = %d, want 400", rec.Code)
	}

	// Clearing the limit also clears the alert state.
	store.users[userID].Alerts = core.AlertState{Month: time.March, Year: 2024, Levels: []int{30, 50}}
	rec = doJSON(t, srv, http.MethodPut, "/api/user/budget", token, setBudgetRequest{Budget: ""})
	if rec.Code != http.StatusOK {
		t.Fatalf("clear budget = %d, body %s", rec.Code, rec.Body)
	}
	u := store.users[userID]
	if u.HasBudget() || len(u.Alerts.Levels) != 0 {
		t.Errorf("cleared budget left state %+v", u)
	}
}

func TestListExpensesFiltersByMonth(t *testing.T) {
	srv, _, _ := newTestServer()
	_, token := register(t, srv)

	for _, date := range []string{"2024-03-05", "2024-03-20", "2024-04-01"} {
		rec := doJSON(t, srv, http.MethodPost, "/api/expenses", token, expenseRequest{
			Title: "e", Amount: "1.00", Category: "c", Date: date,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("create = %d", rec.Code)
		}
	}

	rec := doJSON(t, srv, http.MethodGet, "/api/expenses?year=2024&month=3", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list = %d, body %s", rec.Code, rec.Body)
	}
	var list []expenseResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("March list has %d entries, want 2", len(list))
	}
}

func TestTokenForOtherSecretRejected(t *testing.T) {
	srv, _, _ := newTestServer()
	forged, err := issueToken([]byte("other-secret"), 1)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	rec := doJSON(t, srv, http.MethodGet, "/api/user", forged, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("forged token = %d, want 401", rec.Code)
	}
}
