// Package scheduler runs the daily and monthly background jobs on a
// single ticker loop. Jobs and cadences are injected by the process
// root; there is no package-level registration.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"bynlora/internal/core"
)

// Job is one unit of scheduled work. Errors are logged by the scheduler;
// jobs are expected to be idempotent so a crashed run can simply fire
// again on the next due period.
type Job func(ctx context.Context, now time.Time) error

type entry struct {
	name string
	// day is 0 for daily entries, otherwise the day of month.
	day     int
	hour    int
	fn      Job
	lastRun time.Time
}

// Scheduler fires daily entries once per calendar day and monthly
// entries once per calendar month, each at-or-after their configured
// hour.
type Scheduler struct {
	clock    func() time.Time
	interval time.Duration
	entries  []*entry
	notifyCh chan struct{}
}

func New(interval time.Duration) *Scheduler {
	return &Scheduler{
		clock:    time.Now,
		interval: interval,
		notifyCh: make(chan struct{}, 1),
	}
}

// AddDaily registers a job that fires once per day at-or-after hour.
func (s *Scheduler) AddDaily(name string, hour int, fn Job) {
	s.entries = append(s.entries, &entry{name: name, hour: hour, fn: fn})
}

// AddMonthly registers a job that fires once per month on the given day
// at-or-after hour.
func (s *Scheduler) AddMonthly(name string, day, hour int, fn Job) {
	s.entries = append(s.entries, &entry{name: name, day: day, hour: hour, fn: fn})
}

// Notify nudges an immediate check. Non-blocking if one is already
// pending.
func (s *Scheduler) Notify() {
	select {
	case s.notifyCh <- struct{}{}:
	default:
	}
}

// Start blocks until ctx is cancelled, checking for due entries on every
// tick. The first check runs immediately, so a process restarted after a
// missed fire window catches up without waiting for the next tick.
func (s *Scheduler) Start(ctx context.Context) {
	slog.Info("Scheduler started",
		"interval", s.interval,
		"entries", len(s.entries))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runDue(ctx, s.clock())

	for {
		select {
		case <-ctx.Done():
			slog.Info("Scheduler stopped")
			return
		case <-ticker.C:
			s.runDue(ctx, s.clock())
		case <-s.notifyCh:
			s.runDue(ctx, s.clock())
		}
	}
}

// runDue executes every entry that is due at now. A job error does not
// consume the period: lastRun is only advanced on success, so the next
// tick retries.
func (s *Scheduler) runDue(ctx context.Context, now time.Time) {
	for _, e := range s.entries {
		if !e.due(now) {
			continue
		}
		start := time.Now()
		if err := e.fn(ctx, now); err != nil {
			slog.Error("Scheduled job failed",
				"job", e.name,
				"error", err)
			continue
		}
		e.lastRun = now
		slog.Info("Scheduled job completed",
			"job", e.name,
			"duration_ms", time.Since(start).Milliseconds())
	}
}

func (e *entry) due(now time.Time) bool {
	if e.day > 0 && now.Day() != e.day {
		return false
	}
	if now.Hour() < e.hour {
		return false
	}
	if e.lastRun.IsZero() {
		return true
	}
	if e.day > 0 {
		// Monthly: at most once per (month, year).
		return e.lastRun.Month() != now.Month() || e.lastRun.Year() != now.Year()
	}
	// Daily: at most once per calendar day.
	return core.Midnight(e.lastRun).Before(core.Midnight(now))
}
