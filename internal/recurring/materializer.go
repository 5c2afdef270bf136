// Package recurring materializes concrete expenses from recurring
// templates once their next occurrence falls due.
package recurring

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bynlora/internal/core"
)

// Store is the persistence surface the materializer needs.
type Store interface {
	FindDueTemplates(ctx context.Context, asOf time.Time) ([]core.Expense, error)
	CreateExpense(ctx context.Context, e core.Expense) (int64, error)
	SetNextOccurrence(ctx context.Context, id int64, next time.Time) error
}

// Materializer turns due templates into one-off expense rows.
type Materializer struct {
	store Store
}

func NewMaterializer(store Store) *Materializer {
	return &Materializer{store: store}
}

// ProcessDue creates one occurrence for every template due at or before
// now (midnight-normalized) and advances each template's schedule.
//
// The advance is computed from the template's previous next-occurrence
// date, not from today, so missed runs stay deterministic instead of
// drifting. Because the advance moves the date past today, a second run
// on the same day finds nothing due.
//
// Templates are processed independently: one failure is logged and the
// batch continues.
func (m *Materializer) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	if m.store == nil {
		return 0, fmt.Errorf("materializer not properly initialized")
	}

	// Occurrence dates and next_occurrence values are stored in UTC, so
	// the cutoff must be UTC midnight regardless of the host's zone.
	today := core.Midnight(now.UTC())

	templates, err := m.store.FindDueTemplates(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("find due templates: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring templates",
		"due", len(templates),
		"processing_date", today.Format("2006-01-02"))

	processed := 0
	for _, tpl := range templates {
		if !tpl.Frequency.Valid() {
			// Corrupt historical row; skip rather than abort the batch.
			slog.WarnContext(ctx, "Skipping template with invalid frequency",
				"template_id", tpl.ID,
				"frequency", string(tpl.Frequency))
			continue
		}

		occurrence := core.Expense{
			UserID:        tpl.UserID,
			Title:         tpl.Title,
			Amount:        tpl.Amount,
			Category:      tpl.Category,
			Date:          today,
			PaymentMethod: tpl.PaymentMethod,
			Notes: fmt.Sprintf("Auto-generated recurring payment (from %s)",
				tpl.Date.Format("2006-01-02")),
		}

		occurrenceID, err := m.store.CreateExpense(ctx, occurrence)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to create occurrence from template",
				"template_id", tpl.ID,
				"title", tpl.Title,
				"error", err)
			continue
		}

		next := core.NextOccurrence(tpl.Frequency, tpl.NextOccurrence)
		if err := m.store.SetNextOccurrence(ctx, tpl.ID, next); err != nil {
			// The occurrence exists but the template was not advanced;
			// the next run would duplicate it. Surface loudly.
			slog.ErrorContext(ctx, "Failed to advance template after creating occurrence",
				"template_id", tpl.ID,
				"occurrence_id", occurrenceID,
				"error", err)
			continue
		}

		processed++
		slog.InfoContext(ctx, "Created expense from recurring template",
			"template_id", tpl.ID,
			"occurrence_id", occurrenceID,
			"title", tpl.Title,
			"amount_cents", tpl.Amount.Cents,
			"next_occurrence", next.Format("2006-01-02"))
	}

	slog.InfoContext(ctx, "Recurring template processing complete",
		"processed", processed,
		"due", len(templates))

	return processed, nil
}

// Reschedule re-derives a template's schedule after a user edit. The
// anchor is the expense's own date: the next due date is the first
// period boundary strictly after now, so editing an old template never
// floods the next run with immediate occurrences. Turning recurrence off
// clears the schedule.
func Reschedule(e *core.Expense, now time.Time) {
	if !e.IsRecurring || !e.Frequency.Valid() {
		e.IsRecurring = false
		e.Frequency = ""
		e.NextOccurrence = time.Time{}
		return
	}
	e.NextOccurrence = core.NextOccurrenceAfter(e.Frequency, e.Date, now)
}
