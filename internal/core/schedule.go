package core

import "time"

// Midnight normalizes t to 00:00:00 in its own location.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// daysIn returns the number of days in the given month.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// NextOccurrence advances a schedule date by one period of the given
// frequency. Month and year steps clamp the day to the last day of the
// target month, so a monthly schedule anchored on Jan 31 lands on Feb 29
// in a leap year and a yearly schedule anchored on Feb 29 lands on
// Feb 28 the following year.
func NextOccurrence(freq Frequency, from time.Time) time.Time {
	switch freq {
	case Weekly:
		return from.AddDate(0, 0, 7)
	case Monthly:
		return addClamped(from, 0, 1)
	case Yearly:
		return addClamped(from, 1, 0)
	}
	return time.Time{}
}

// NextOccurrenceAfter steps from anchor one period at a time until the
// result is strictly after now. This is the anchor rule applied when a
// user edit re-derives a template's next due date: the schedule stays
// aligned with the expense's own date but never falls due immediately
// for periods already in the past.
func NextOccurrenceAfter(freq Frequency, anchor, now time.Time) time.Time {
	if !freq.Valid() || anchor.IsZero() {
		return time.Time{}
	}
	next := NextOccurrence(freq, anchor)
	for !next.After(now) {
		next = NextOccurrence(freq, next)
	}
	return next
}

func addClamped(t time.Time, years, months int) time.Time {
	year := t.Year() + years
	month := t.Month() + time.Month(months)
	// time.Month arithmetic past December is normalized by time.Date,
	// but the day must be clamped before construction to avoid rollover.
	norm := time.Date(year, month, 1, 0, 0, 0, 0, t.Location())
	day := t.Day()
	if max := daysIn(norm.Year(), norm.Month()); day > max {
		day = max
	}
	return time.Date(norm.Year(), norm.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
