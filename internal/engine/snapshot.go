package engine

import (
	"slices"

	"budget/internal/core"
)

// SnapshotPoint is one month of the income/expense trend.
type SnapshotPoint struct {
	Month string `json:"month"`
	core.MonthlySnapshot
}

// ComputeMonthlySnapshot returns the snapshot key and figures for the month
// containing today: the current salary as income, every active rule at its
// monthly equivalent plus the one-time expenses dated in that month.
func ComputeMonthlySnapshot(s core.FinanceState, today core.Date) (string, core.MonthlySnapshot) {
	month := MonthOf(today)
	expenses := TotalRecurringMonthly(s.RecurringRules) + TotalOneTime(s.Expenses, &month.Range)
	return today.YearMonth(), core.MonthlySnapshot{
		Income:   s.Salary,
		Expenses: expenses,
		Balance:  s.Salary - expenses,
	}
}

// RecordSnapshot writes the current month's snapshot into s, overwriting a
// previous value for the same month. Other months are left untouched.
func RecordSnapshot(s *core.FinanceState, today core.Date) core.MonthlySnapshot {
	key, snap := ComputeMonthlySnapshot(*s, today)
	if s.MonthlySnapshots == nil {
		s.MonthlySnapshots = map[string]core.MonthlySnapshot{}
	}
	s.MonthlySnapshots[key] = snap
	return snap
}

// SnapshotTrend returns the recorded snapshots in chronological order.
func SnapshotTrend(snapshots map[string]core.MonthlySnapshot) []SnapshotPoint {
	out := make([]SnapshotPoint, 0, len(snapshots))
	for month, snap := range snapshots {
		out = append(out, SnapshotPoint{Month: month, MonthlySnapshot: snap})
	}
	slices.SortFunc(out, func(a, b SnapshotPoint) int {
		switch {
		case a.Month < b.Month:
			return -1
		case a.Month > b.Month:
			return 1
		}
		return 0
	})
	return out
}
