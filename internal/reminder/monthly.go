// Package reminder sends the start-of-month budget reminder and resets
// each user's alert cycle for the new month.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bynlora/internal/core"
)

// Store is the persistence surface the job needs.
type Store interface {
	ListUsers(ctx context.Context) ([]core.User, error)
	SaveUser(ctx context.Context, u *core.User) error
}

// Notifier delivers the monthly reminder email.
type Notifier interface {
	SendMonthlyReminder(ctx context.Context, user core.User, month time.Month) error
}

// Job notifies every user to set a fresh budget and re-anchors their
// alert state to the new month.
type Job struct {
	store    Store
	notifier Notifier
}

func NewJob(store Store, notifier Notifier) *Job {
	return &Job{store: store, notifier: notifier}
}

// Run processes all users. Failures are isolated per user: a dead email
// gateway for one recipient never blocks the rest of the batch. Returns
// the number of users reminded.
func (j *Job) Run(ctx context.Context, now time.Time) (int, error) {
	if j.store == nil || j.notifier == nil {
		return 0, fmt.Errorf("reminder job not properly initialized")
	}

	users, err := j.store.ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	slog.InfoContext(ctx, "Running monthly budget reminders",
		"users", len(users),
		"month", now.Month().String())

	reminded := 0
	for i := range users {
		user := users[i]
		if user.Email == "" {
			continue
		}

		if err := j.notifier.SendMonthlyReminder(ctx, user, now.Month()); err != nil {
			slog.ErrorContext(ctx, "Failed to send monthly reminder",
				"user_id", user.ID,
				"error", err)
			continue
		}

		user.Alerts.ResetFor(now)
		if err := j.store.SaveUser(ctx, &user); err != nil {
			slog.ErrorContext(ctx, "Failed to reset alert state",
				"user_id", user.ID,
				"error", err)
			continue
		}

		reminded++
	}

	slog.InfoContext(ctx, "Monthly reminders complete",
		"reminded", reminded,
		"users", len(users))

	return reminded, nil
}
