package generic

import (
	"fmt"
	"slices"
	"time"
)

// =============================================================================
// CADENCE - How often a budget's usage resets
// =============================================================================

// Cadence defines the renewal period of a budget.
//
// Two budgets with the same cadence are in the same period when their
// instants share a period identity:
//   - Daily:   (year, month, day)
//   - Weekly:  (ISO year, ISO week)
//   - Monthly: (year, month)
//   - Yearly:  (year)
type Cadence string

const (
	CadenceNone    Cadence = "none"
	CadenceDaily   Cadence = "daily"
	CadenceWeekly  Cadence = "weekly"
	CadenceMonthly Cadence = "monthly"
	CadenceYearly  Cadence = "yearly"
)

// Cadences lists every known cadence in display order.
func Cadences() []Cadence {
	return []Cadence{CadenceNone, CadenceDaily, CadenceWeekly, CadenceMonthly, CadenceYearly}
}

// ParseCadence maps a technical name to a Cadence. Empty means none.
func ParseCadence(s string) (Cadence, error) {
	c := Cadence(s)
	switch {
	case c == "":
		return CadenceNone, nil
	case slices.Contains(Cadences(), c):
		return c, nil
	default:
		return "", fmt.Errorf("%w: %q (want one of %v)", ErrUnknownCadence, s, Cadences())
	}
}

// Renews returns false for CadenceNone.
func (c Cadence) Renews() bool {
	switch c {
	case CadenceDaily, CadenceWeekly, CadenceMonthly, CadenceYearly:
		return true
	default:
		return false
	}
}

// SamePeriod reports whether a and b fall in the same renewal period.
// For a non-renewing cadence every instant is in the same period.
func (c Cadence) SamePeriod(a, b time.Time) bool {
	switch c {
	case CadenceDaily:
		return SameDay(a, b)
	case CadenceWeekly:
		return SameISOWeek(a, b)
	case CadenceMonthly:
		return SameMonth(a, b)
	case CadenceYearly:
		return SameYear(a, b)
	default:
		return true
	}
}

// Advance moves t forward by one cadence unit. Month and year steps clamp
// to the last day of the target month: Jan 31 advances to Feb 29 (or 28),
// never into March.
func (c Cadence) Advance(t time.Time) (time.Time, bool) {
	return c.AdvanceN(t, 1)
}

// AdvanceN moves t forward by n cadence units counted from the same anchor.
// A clamp is not carried forward the way n calls to Advance would carry it:
// Jan 31 advanced 2 months is Mar 31.
func (c Cadence) AdvanceN(t time.Time, n int) (time.Time, bool) {
	switch c {
	case CadenceDaily:
		return t.AddDate(0, 0, n), true
	case CadenceWeekly:
		return t.AddDate(0, 0, 7*n), true
	case CadenceMonthly:
		return addMonths(t, n), true
	case CadenceYearly:
		return addMonths(t, 12*n), true
	default:
		return time.Time{}, false
	}
}

// addMonths keeps t's day of month and clock, clamping the day to the
// length of the target month.
func addMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	month, _ := CadenceMonthly.PeriodFor(first)
	if last := month.End.AddDate(0, 0, -1).Day(); d > last {
		d = last
	}
	fy, fm, _ := first.Date()
	return time.Date(fy, fm, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// =============================================================================
// PERIOD - The window an instant falls into for a cadence
// =============================================================================

// Period is a half-open window [Start, End).
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// PeriodFor returns the calendar period containing t. The second result is
// false for a non-renewing cadence, which has no bounded period.
func (c Cadence) PeriodFor(t time.Time) (Period, bool) {
	y, m, d := t.Date()
	loc := t.Location()
	switch c {
	case CadenceDaily:
		start := time.Date(y, m, d, 0, 0, 0, 0, loc)
		return Period{Start: start, End: start.AddDate(0, 0, 1)}, true
	case CadenceWeekly:
		// ISO weeks start on Monday.
		offset := (int(t.Weekday()) + 6) % 7
		start := time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
		return Period{Start: start, End: start.AddDate(0, 0, 7)}, true
	case CadenceMonthly:
		start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return Period{Start: start, End: start.AddDate(0, 1, 0)}, true
	case CadenceYearly:
		start := time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		return Period{Start: start, End: start.AddDate(1, 0, 0)}, true
	default:
		return Period{}, false
	}
}
