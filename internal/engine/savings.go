package engine

import "budget/internal/core"

// GoalStatus classifies saved progress against the linear expected curve.
type GoalStatus string

const (
	StatusOnTrack GoalStatus = "on-track"
	StatusClose   GoalStatus = "close"
	StatusBehind  GoalStatus = "behind"
)

// closeThreshold is the share of expected progress still considered close.
const closeThreshold = 0.8

// GoalMetrics are the derived figures for a savings goal on a given day.
type GoalMetrics struct {
	Saved              float64    `json:"saved"`
	Target             float64    `json:"target"`
	Remaining          float64    `json:"remaining"`
	Percentage         float64    `json:"percentage"`
	MonthsRemaining    int        `json:"monthsRemaining"`
	DaysRemaining      int        `json:"daysRemaining"`
	RecommendedMonthly float64    `json:"recommendedMonthlySavings"`
	ExpectedSaved      float64    `json:"expectedSaved"`
	TrackingStart      core.Date  `json:"trackingStart"`
	Status             GoalStatus `json:"status"`
}

// Projector computes GoalMetrics. TrackingStart is the default start of the
// tracking window for goals that do not carry their own.
type Projector struct {
	TrackingStart core.Date
}

// NewProjector returns a projector with the given default tracking start.
// The zero date defers to the first day of each goal's deadline year.
func NewProjector(trackingStart core.Date) Projector {
	return Projector{TrackingStart: trackingStart}
}

// trackingStartFor picks the goal's own start, then the projector default,
// then January 1st of the deadline year.
func (p Projector) trackingStartFor(g core.SavingsGoal) core.Date {
	switch {
	case !g.TrackingStart.IsZero():
		return g.TrackingStart
	case !p.TrackingStart.IsZero():
		return p.TrackingStart
	default:
		return core.NewDate(g.Deadline.Year(), 1, 1)
	}
}

// Project evaluates g as of today. It never returns non-finite values: a
// zero target yields zero percentage and zero expected progress.
func (p Projector) Project(g core.SavingsGoal, today core.Date) GoalMetrics {
	m := GoalMetrics{
		Saved:     g.Saved,
		Target:    g.Target,
		Remaining: g.Target - g.Saved,
	}

	if g.Target > 0 {
		m.Percentage = g.Saved / g.Target * 100
	}

	m.MonthsRemaining = max(0, monthsBetween(today, g.Deadline))
	m.DaysRemaining = max(0, daysBetween(today, g.Deadline))

	if m.MonthsRemaining > 0 {
		m.RecommendedMonthly = m.Remaining / float64(m.MonthsRemaining)
	} else {
		m.RecommendedMonthly = m.Remaining
	}

	m.TrackingStart = p.trackingStartFor(g)
	m.ExpectedSaved = expectedSaved(g, m.TrackingStart, today)
	m.Status = classify(g.Saved, m.ExpectedSaved)
	return m
}

// expectedSaved is the straight-line progress from start to the deadline,
// measured in whole months and clamped to [0, target].
func expectedSaved(g core.SavingsGoal, start, today core.Date) float64 {
	if g.Target <= 0 {
		return 0
	}
	total := monthsBetween(start, g.Deadline)
	if total <= 0 {
		if today.Before(g.Deadline) {
			return 0
		}
		return g.Target
	}
	elapsed := min(max(0, monthsBetween(start, today)), total)
	return g.Target / float64(total) * float64(elapsed)
}

func classify(saved, expected float64) GoalStatus {
	switch {
	case saved >= expected:
		return StatusOnTrack
	case saved >= expected*closeThreshold:
		return StatusClose
	default:
		return StatusBehind
	}
}
