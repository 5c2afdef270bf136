// Package budget implements the threshold tracker that watches a user's
// monthly spend against their budget and sends at most one alert per
// threshold per calendar month.
package budget

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bynlora/internal/core"
)

// Store is the persistence surface the tracker needs.
type Store interface {
	GetUser(ctx context.Context, id int64) (*core.User, error)
	SaveUser(ctx context.Context, u *core.User) error
	ListExpensesByDateRange(ctx context.Context, userID int64, start, end time.Time) ([]core.Expense, error)
}

// Notifier delivers one alert email. Failures are logged by the tracker,
// never propagated to the expense request path.
type Notifier interface {
	SendBudgetAlert(ctx context.Context, user core.User, threshold, percentage int, spent, remaining core.Money) error
}

// Tracker runs the threshold check for one user at a time.
type Tracker struct {
	store      Store
	notifier   Notifier
	thresholds []int

	// checkTimeout bounds a detached check so a stuck store or gateway
	// cannot pile up goroutines.
	checkTimeout time.Duration
}

func NewTracker(store Store, notifier Notifier, thresholds []int) *Tracker {
	if len(thresholds) == 0 {
		thresholds = core.DefaultThresholds
	}
	return &Tracker{
		store:        store,
		notifier:     notifier,
		thresholds:   thresholds,
		checkTimeout: 30 * time.Second,
	}
}

// CheckDetached runs Check in a fresh goroutine with a bounded timeout.
// This is the fire-and-forget path invoked after expense mutations: the
// caller's response never waits on it and never observes its errors.
func (t *Tracker) CheckDetached(userID int64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.checkTimeout)
		defer cancel()
		if err := t.Check(ctx, userID, time.Now()); err != nil {
			slog.Error("Budget check failed", "user_id", userID, "error", err)
		}
	}()
}

// Check recomputes the user's current-month spend and sends the single
// highest newly-crossed threshold alert, if any.
//
// All thresholds at or below the current percentage are marked as sent,
// so a jump from 20% to 95% produces one alert (for 90) and a later small
// expense cannot re-trigger 30 or 50. The user row is persisted before
// the notification goes out: a failed send costs one alert rather than
// risking a duplicate.
func (t *Tracker) Check(ctx context.Context, userID int64, now time.Time) error {
	user, err := t.store.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user %d: %w", userID, err)
	}
	if !user.HasBudget() {
		return nil
	}

	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	expenses, err := t.store.ListExpensesByDateRange(ctx, userID, start, end)
	if err != nil {
		return fmt.Errorf("list month expenses for user %d: %w", userID, err)
	}

	var spent core.Money
	for _, e := range expenses {
		spent.Cents += e.Amount.Cents
	}
	percentage := spent.PercentOf(user.Budget)
	remaining := user.Budget.Sub(spent)

	// One reset per month regardless of how many expenses trigger the
	// check: the stored (month, year) pair is the guard.
	if !user.Alerts.Matches(now) {
		user.Alerts.ResetFor(now)
	}

	alertToSend := 0
	for _, threshold := range t.thresholds {
		if percentage >= threshold && !user.Alerts.Has(threshold) {
			alertToSend = threshold
		}
	}
	if alertToSend == 0 {
		return nil
	}

	for _, threshold := range t.thresholds {
		if percentage >= threshold {
			user.Alerts.Add(threshold)
		}
	}

	if err := t.store.SaveUser(ctx, user); err != nil {
		return fmt.Errorf("save alert state for user %d: %w", userID, err)
	}

	if err := t.notifier.SendBudgetAlert(ctx, *user, alertToSend, percentage, spent, remaining); err != nil {
		// The state is already persisted; the alert for this threshold
		// is spent either way.
		slog.WarnContext(ctx, "Budget alert notification failed",
			"user_id", userID,
			"threshold", alertToSend,
			"error", err)
		return nil
	}

	slog.InfoContext(ctx, "Budget alert sent",
		"user_id", userID,
		"threshold", alertToSend,
		"percentage", percentage,
		"spent", spent.String(),
		"remaining", remaining.String())

	return nil
}
