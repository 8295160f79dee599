package engine

import (
	"testing"

	"budget/internal/core"
)

func snapshotState() core.FinanceState {
	return core.FinanceState{
		Salary: 5000,
		Expenses: []core.Expense{
			expense("Food & Groceries", 200, core.NewDate(2024, 5, 3)),
			expense("Food & Groceries", 50, core.NewDate(2024, 4, 28)),
		},
		RecurringRules: []core.RecurringRule{
			rule("Housing", 1000, core.Monthly, true),
			rule("Pets", 100, core.Weekly, false),
		},
		MonthlySnapshots: map[string]core.MonthlySnapshot{
			"2024-04": {Income: 4000, Expenses: 900, Balance: 3100},
		},
	}
}

func TestRecordSnapshot(t *testing.T) {
	s := snapshotState()
	today := core.NewDate(2024, 5, 20)

	got := RecordSnapshot(&s, today)
	want := core.MonthlySnapshot{Income: 5000, Expenses: 1200, Balance: 3800}
	if !approxEqual(got.Income, want.Income) || !approxEqual(got.Expenses, want.Expenses) || !approxEqual(got.Balance, want.Balance) {
		t.Errorf("RecordSnapshot() = %+v, want %+v", got, want)
	}
	if stored := s.MonthlySnapshots["2024-05"]; stored != got {
		t.Errorf("stored snapshot = %+v, want %+v", stored, got)
	}
	if prev := s.MonthlySnapshots["2024-04"]; prev.Expenses != 900 || prev.Income != 4000 {
		t.Errorf("previous month was modified: %+v", prev)
	}
}

func TestRecordSnapshot_OverwritesCurrentMonth(t *testing.T) {
	s := snapshotState()
	today := core.NewDate(2024, 5, 20)

	RecordSnapshot(&s, today)
	s.Salary = 6000
	s.Expenses = append(s.Expenses, expense("Travel & Tourism", 300, core.NewDate(2024, 5, 21)))
	got := RecordSnapshot(&s, today)

	if !approxEqual(got.Expenses, 1500) || !approxEqual(got.Balance, 4500) {
		t.Errorf("RecordSnapshot() = %+v, want expenses 1500 balance 4500", got)
	}
	if len(s.MonthlySnapshots) != 2 {
		t.Errorf("snapshot count = %d, want 2", len(s.MonthlySnapshots))
	}
}

func TestRecordSnapshot_NilMap(t *testing.T) {
	s := core.FinanceState{Salary: 100}
	RecordSnapshot(&s, core.NewDate(2024, 1, 1))
	if _, ok := s.MonthlySnapshots["2024-01"]; !ok {
		t.Error("snapshot not recorded into nil map")
	}
}

func TestSnapshotTrend_Sorted(t *testing.T) {
	snapshots := map[string]core.MonthlySnapshot{
		"2024-03": {Income: 3},
		"2023-12": {Income: 1},
		"2024-01": {Income: 2},
	}
	got := SnapshotTrend(snapshots)
	want := []string{"2023-12", "2024-01", "2024-03"}
	if len(got) != len(want) {
		t.Fatalf("SnapshotTrend() returned %d points, want %d", len(got), len(want))
	}
	for i, month := range want {
		if got[i].Month != month {
			t.Errorf("point %d = %s, want %s", i, got[i].Month, month)
		}
	}
	if len(SnapshotTrend(nil)) != 0 {
		t.Error("SnapshotTrend(nil) should be empty")
	}
}
