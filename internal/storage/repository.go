// Package storage persists users and expenses in SQLite and implements
// the store interfaces consumed by the budget, recurring and reminder
// packages.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bynlora/internal/core"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339

// ErrNotFound is returned when a user or expense does not exist.
var ErrNotFound = errors.New("not found")

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// CreateUser inserts a user and fills in the generated ID.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u *core.User) error {
	levels, err := marshalLevels(u.Alerts.Levels)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO users (name, email, budget_cents, budget_rule, alert_month, alert_year, alert_levels)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.Name, u.Email, u.Budget.Cents, boolToInt(u.BudgetRule),
		int(u.Alerts.Month), u.Alerts.Year, levels)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("user insert id: %w", err)
	}
	u.ID = id
	return nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (*core.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, budget_cents, budget_rule, alert_month, alert_year, alert_levels
		FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// SaveUser writes back the mutable user fields: budget, budget rule and
// alert state. There is no optimistic lock on the row; concurrent
// threshold checks for one user can interleave (documented tradeoff).
func (r *SQLiteRepository) SaveUser(ctx context.Context, u *core.User) error {
	levels, err := marshalLevels(u.Alerts.Levels)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET name = ?, email = ?, budget_cents = ?, budget_rule = ?,
		    alert_month = ?, alert_year = ?, alert_levels = ?,
		    updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ?`,
		u.Name, u.Email, u.Budget.Cents, boolToInt(u.BudgetRule),
		int(u.Alerts.Month), u.Alerts.Year, levels, u.ID)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update user %d: %w", u.ID, ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, email, budget_cents, budget_rule, alert_month, alert_year, alert_levels
		FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// CreateExpense inserts an expense (occurrence or template) and returns
// the generated ID.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (user_id, title, amount_cents, category, date,
		                      payment_method, notes, is_recurring, frequency, next_occurrence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, e.Title, e.Amount.Cents, e.Category, e.Date.UTC().Format(timeLayout),
		string(e.PaymentMethod), e.Notes, boolToInt(e.IsRecurring),
		nullString(string(e.Frequency)), nullTime(e.NextOccurrence))
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("expense insert id: %w", err)
	}
	return id, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (*core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, amount_cents, category, date,
		       payment_method, notes, is_recurring, frequency, next_occurrence
		FROM expenses WHERE id = ?`, id)
	return scanExpense(row)
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses
		SET title = ?, amount_cents = ?, category = ?, date = ?,
		    payment_method = ?, notes = ?, is_recurring = ?, frequency = ?, next_occurrence = ?,
		    updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ? AND user_id = ?`,
		e.Title, e.Amount.Cents, e.Category, e.Date.UTC().Format(timeLayout),
		string(e.PaymentMethod), e.Notes, boolToInt(e.IsRecurring),
		nullString(string(e.Frequency)), nullTime(e.NextOccurrence),
		e.ID, e.UserID)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update expense %d: %w", e.ID, ErrNotFound)
	}
	return nil
}

// DeleteExpense removes one expense owned by the given user. Deleting a
// template never touches occurrences it already generated.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id, userID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete expense %d: %w", id, ErrNotFound)
	}
	return nil
}

// ListExpensesByDateRange returns a user's expenses dated within
// [start, end] inclusive.
func (r *SQLiteRepository) ListExpensesByDateRange(ctx context.Context, userID int64, start, end time.Time) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, title, amount_cents, category, date,
		       payment_method, notes, is_recurring, frequency, next_occurrence
		FROM expenses
		WHERE user_id = ? AND date >= ? AND date <= ?
		ORDER BY date DESC`,
		userID, start.UTC().Format(timeLayout), end.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("list expenses by range: %w", err)
	}
	defer rows.Close()
	return collectExpenses(rows)
}

// FindDueTemplates returns every recurring template whose next occurrence
// is at or before asOf.
func (r *SQLiteRepository) FindDueTemplates(ctx context.Context, asOf time.Time) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, title, amount_cents, category, date,
		       payment_method, notes, is_recurring, frequency, next_occurrence
		FROM expenses
		WHERE is_recurring = 1 AND next_occurrence IS NOT NULL AND next_occurrence <= ?
		ORDER BY id`,
		asOf.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("find due templates: %w", err)
	}
	defer rows.Close()
	return collectExpenses(rows)
}

// SetNextOccurrence advances a template's schedule.
func (r *SQLiteRepository) SetNextOccurrence(ctx context.Context, id int64, next time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses
		SET next_occurrence = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ? AND is_recurring = 1`,
		nullTime(next), id)
	if err != nil {
		return fmt.Errorf("set next occurrence: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set next occurrence for %d: %w", id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*core.User, error) {
	var (
		u          core.User
		budgetRule int64
		month      int64
		levelsJSON string
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Budget.Cents, &budgetRule,
		&month, &u.Alerts.Year, &levelsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.BudgetRule = budgetRule != 0
	u.Alerts.Month = time.Month(month)
	if err := json.Unmarshal([]byte(levelsJSON), &u.Alerts.Levels); err != nil {
		return nil, fmt.Errorf("decode alert levels: %w", err)
	}
	return &u, nil
}

func scanExpense(row rowScanner) (*core.Expense, error) {
	var (
		e           core.Expense
		dateStr     string
		method      string
		isRecurring int64
		frequency   sql.NullString
		next        sql.NullString
	)
	err := row.Scan(&e.ID, &e.UserID, &e.Title, &e.Amount.Cents, &e.Category,
		&dateStr, &method, &e.Notes, &isRecurring, &frequency, &next)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan expense: %w", err)
	}
	e.Date, err = time.Parse(timeLayout, dateStr)
	if err != nil {
		return nil, fmt.Errorf("parse expense date: %w", err)
	}
	e.PaymentMethod = core.PaymentMethod(method)
	e.IsRecurring = isRecurring != 0
	if frequency.Valid {
		e.Frequency = core.Frequency(frequency.String)
	}
	if next.Valid {
		e.NextOccurrence, err = time.Parse(timeLayout, next.String)
		if err != nil {
			return nil, fmt.Errorf("parse next occurrence: %w", err)
		}
	}
	return &e, nil
}

func collectExpenses(rows *sql.Rows) ([]core.Expense, error) {
	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func marshalLevels(levels []int) (string, error) {
	if levels == nil {
		levels = []int{}
	}
	b, err := json.Marshal(levels)
	if err != nil {
		return "", fmt.Errorf("encode alert levels: %w", err)
	}
	return string(b), nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}
