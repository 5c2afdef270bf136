package core

import (
	"errors"
	"slices"
	"strings"
	"time"
)

const (
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
)

const (
	Cash PaymentMethod = "cash"
	UPI  PaymentMethod = "upi"
	Card PaymentMethod = "card"
	Bank PaymentMethod = "bank"
)

// DefaultThresholds is the budget-percentage ladder that triggers at most
// one alert each per user per calendar month.
var DefaultThresholds = []int{30, 50, 90, 100}

type (
	Frequency     string
	PaymentMethod string

	Money struct {
		Cents int64
	}

	// AlertState tracks which budget thresholds have already been
	// notified for a given calendar month. Levels only ever grow within
	// one (Month, Year) pair.
	AlertState struct {
		Month  time.Month
		Year   int
		Levels []int
	}

	User struct {
		ID         int64
		Name       string
		Email      string
		Budget     Money // monthly limit, <= 0 means unset
		BudgetRule bool  // 50/30/20 split enabled
		Alerts     AlertState
	}

	// Expense is a single spending record. When IsRecurring is set the
	// row acts as a template: the materializer periodically spawns
	// non-recurring copies and advances NextOccurrence.
	Expense struct {
		ID             int64
		UserID         int64
		Title          string
		Amount         Money
		Category       string
		Date           time.Time
		PaymentMethod  PaymentMethod
		Notes          string
		IsRecurring    bool
		Frequency      Frequency // set iff IsRecurring
		NextOccurrence time.Time // zero iff not recurring
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyTitle       = errors.New("empty title")
	ErrEmptyCategory    = errors.New("empty category")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrInvalidDate      = errors.New("invalid date")
)

func (f Frequency) Valid() bool {
	switch f {
	case Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func (p PaymentMethod) Valid() bool {
	switch p {
	case Cash, UPI, Card, Bank:
		return true
	}
	return false
}

// HasBudget reports whether a monthly limit is configured.
func (u User) HasBudget() bool {
	return u.Budget.Cents > 0
}

// Matches reports whether the alert state belongs to the calendar month of t.
func (a AlertState) Matches(t time.Time) bool {
	return a.Month == t.Month() && a.Year == t.Year()
}

// Has reports whether the given threshold was already notified this cycle.
func (a AlertState) Has(level int) bool {
	return slices.Contains(a.Levels, level)
}

// Add marks a threshold as notified. Duplicates are ignored.
func (a *AlertState) Add(level int) {
	if !a.Has(level) {
		a.Levels = append(a.Levels, level)
	}
}

// ResetFor clears the notified levels and re-anchors the state to the
// calendar month of t.
func (a *AlertState) ResetFor(t time.Time) {
	a.Month = t.Month()
	a.Year = t.Year()
	a.Levels = nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e Expense) Validate() error {
	if len(strings.TrimSpace(e.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(e.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if e.Date.IsZero() {
		return ErrInvalidDate
	}
	if e.PaymentMethod != "" && !e.PaymentMethod.Valid() {
		return errors.New("invalid payment method")
	}
	if e.IsRecurring {
		if !e.Frequency.Valid() {
			return ErrInvalidFrequency
		}
	} else {
		// A non-recurring expense carries no schedule.
		if e.Frequency != "" || !e.NextOccurrence.IsZero() {
			return errors.New("non-recurring expense cannot carry a schedule")
		}
	}
	return nil
}
