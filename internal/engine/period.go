// Package engine turns a FinanceState snapshot into derived figures:
// prorated recurring amounts, period totals, category breakdowns, savings
// goal projections, monthly snapshots and insights.
//
// Every function here is pure. Callers pass the reference date explicitly;
// nothing in this package reads the clock or holds state between calls.
package engine

import (
	"fmt"
	"time"

	"budget/internal/core"
)

// Range is an inclusive span of calendar days.
type Range struct {
	Start core.Date
	End   core.Date
}

// NewRange builds a range from two dates.
func NewRange(start, end core.Date) Range {
	return Range{Start: start, End: end}
}

// Days returns the number of calendar days in the range, counting both ends.
// An inverted range has zero days.
func (r Range) Days() int {
	if r.End.Before(r.Start) {
		return 0
	}
	return daysBetween(r.Start, r.End) + 1
}

// Valid reports whether the range is non-empty.
func (r Range) Valid() bool {
	return !r.Start.IsZero() && !r.End.IsZero() && !r.End.Before(r.Start)
}

// Contains reports whether d falls on a day within the range.
func (r Range) Contains(d core.Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

func (r Range) String() string {
	return r.Start.String() + ".." + r.End.String()
}

// PeriodKind selects the granularity of dashboard navigation.
type PeriodKind string

const (
	PeriodWeekly  PeriodKind = "weekly"
	PeriodMonthly PeriodKind = "monthly"
)

// ParsePeriodKind maps user input onto a PeriodKind, defaulting to monthly.
func ParsePeriodKind(s string) (PeriodKind, error) {
	switch PeriodKind(s) {
	case "", PeriodMonthly:
		return PeriodMonthly, nil
	case PeriodWeekly:
		return PeriodWeekly, nil
	default:
		return "", fmt.Errorf("unknown period %q: must be weekly or monthly", s)
	}
}

// Period is a week or a calendar month.
type Period struct {
	Kind PeriodKind
	Range
}

// WeekOf returns the Sunday-to-Saturday week containing d.
func WeekOf(d core.Date) Period {
	start := d.AddDays(-int(d.Weekday()))
	return Period{Kind: PeriodWeekly, Range: Range{Start: start, End: start.AddDays(6)}}
}

// MonthOf returns the calendar month containing d.
func MonthOf(d core.Date) Period {
	start := core.NewDate(d.Year(), int(d.Month()), 1)
	end := core.Date{Time: start.AddDate(0, 1, -1)}
	return Period{Kind: PeriodMonthly, Range: Range{Start: start, End: end}}
}

// PeriodOf returns the period of the given kind that contains d.
func PeriodOf(kind PeriodKind, d core.Date) Period {
	if kind == PeriodWeekly {
		return WeekOf(d)
	}
	return MonthOf(d)
}

// Next returns the following period of the same kind.
func (p Period) Next() Period {
	if p.Kind == PeriodWeekly {
		return WeekOf(p.Start.AddDays(7))
	}
	return MonthOf(core.Date{Time: p.Start.AddDate(0, 1, 0)})
}

// Prev returns the preceding period of the same kind.
func (p Period) Prev() Period {
	if p.Kind == PeriodWeekly {
		return WeekOf(p.Start.AddDays(-7))
	}
	return MonthOf(core.Date{Time: p.Start.AddDate(0, -1, 0)})
}

// Label renders "Jan 2 - Jan 8, 2006" for weeks and "January 2006" for months.
func (p Period) Label() string {
	if p.Kind == PeriodWeekly {
		return p.Start.Format("Jan 2") + " - " + p.End.Format("Jan 2, 2006")
	}
	return p.Start.Format("January 2006")
}

// daysBetween counts whole days from a to b; negative when b precedes a.
func daysBetween(a, b core.Date) int {
	return int(b.Sub(a.Time) / (24 * time.Hour))
}

// monthsBetween counts whole months from a to b, truncated toward zero.
// A month is complete once the later date's day-of-month reaches the
// earlier one's, or the later date is the last day of its month.
func monthsBetween(a, b core.Date) int {
	months := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	switch {
	case months > 0 && b.Day() < a.Day() && !isLastDayOfMonth(b):
		months--
	case months < 0 && a.Day() < b.Day() && !isLastDayOfMonth(a):
		months++
	}
	return months
}

func isLastDayOfMonth(d core.Date) bool {
	return d.AddDays(1).Day() == 1
}
