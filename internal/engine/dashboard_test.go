package engine

import (
	"testing"

	"budget/internal/category"
	"budget/internal/core"
)

func dashboardState() core.FinanceState {
	return core.FinanceState{
		Salary: 10000,
		Expenses: []core.Expense{
			expense("Food & Groceries", 300, core.NewDate(2026, 3, 2)),
			expense("Mystery", 20, core.NewDate(2026, 3, 9)),
			expense("Food & Groceries", 999, core.NewDate(2026, 2, 27)),
		},
		RecurringRules: []core.RecurringRule{
			rule("Housing", 3000, core.Monthly, true),
			rule("Pets", 50, core.Weekly, false),
		},
		SavingsGoal: core.SavingsGoal{Target: 20000, Deadline: core.NewDate(2026, 7, 1)},
		MonthlySnapshots: map[string]core.MonthlySnapshot{
			"2026-02": {Income: 10000, Expenses: 3999, Balance: 6001},
			"2026-03": {Income: 10000, Expenses: 3320, Balance: 6680},
		},
	}
}

func TestBuildDashboard_Monthly(t *testing.T) {
	today := core.NewDate(2026, 3, 15)
	d := BuildDashboard(dashboardState(), MonthOf(today), today, DashboardOptions{
		Projector: NewProjector(core.NewDate(2026, 1, 1)),
	})

	if d.Period.Label != "March 2026" {
		t.Errorf("Label = %q", d.Period.Label)
	}
	if !d.Period.Prev.Equal(core.NewDate(2026, 2, 1)) || !d.Period.Next.Equal(core.NewDate(2026, 4, 1)) {
		t.Errorf("navigation = %s / %s", d.Period.Prev, d.Period.Next)
	}
	if !approxEqual(d.OneTimeTotal, 320) {
		t.Errorf("OneTimeTotal = %v, want 320", d.OneTimeTotal)
	}
	if !approxEqual(d.RecurringPeriod, 3100) {
		t.Errorf("RecurringPeriod = %v, want 3100", d.RecurringPeriod)
	}
	if !approxEqual(d.RecurringMonthly, 3000) {
		t.Errorf("RecurringMonthly = %v, want 3000", d.RecurringMonthly)
	}
	if !approxEqual(d.Expenses, 3420) || !approxEqual(d.Balance, 6580) {
		t.Errorf("Expenses/Balance = %v/%v, want 3420/6580", d.Expenses, d.Balance)
	}

	var sum float64
	for _, v := range d.CategoryTotals {
		sum += v
	}
	if !approxEqual(sum, d.Expenses) {
		t.Errorf("category totals sum to %v, want %v", sum, d.Expenses)
	}

	if len(d.TopCategories) != 3 {
		t.Fatalf("TopCategories has %d rows, want 3", len(d.TopCategories))
	}
	top := d.TopCategories[0]
	if top.Category != "Housing" || top.Color != category.ColorOf("Housing") {
		t.Errorf("top row = %+v", top)
	}
	if !approxEqual(top.Share, 3100/3420.0*100) {
		t.Errorf("top share = %v", top.Share)
	}
	if last := d.TopCategories[2]; last.Category != "Mystery" || last.Color != category.Fallback.Color {
		t.Errorf("unknown category row = %+v, want fallback color", last)
	}

	if d.Goal.Status != StatusBehind {
		t.Errorf("Goal.Status = %s, want behind", d.Goal.Status)
	}
	if len(d.Trend) != 2 || d.Trend[0].Month != "2026-02" {
		t.Errorf("Trend = %+v", d.Trend)
	}
	if d.Entries != 4 {
		t.Errorf("Entries = %d, want 4", d.Entries)
	}
}

func TestBuildDashboard_WeeklyTopN(t *testing.T) {
	today := core.NewDate(2026, 3, 4)
	d := BuildDashboard(dashboardState(), WeekOf(today), today, DashboardOptions{TopN: 1})

	if d.Period.Kind != PeriodWeekly {
		t.Errorf("Kind = %s", d.Period.Kind)
	}
	if len(d.TopCategories) != 1 {
		t.Errorf("TopCategories has %d rows, want 1", len(d.TopCategories))
	}
	if !approxEqual(d.RecurringPeriod, 3000*7/30.0) {
		t.Errorf("RecurringPeriod = %v", d.RecurringPeriod)
	}
}

func TestBuildDashboard_Empty(t *testing.T) {
	today := core.NewDate(2026, 3, 4)
	s := core.DefaultState(core.DefaultDefaults(), today)
	d := BuildDashboard(s, MonthOf(today), today, DashboardOptions{})

	if d.Expenses != 0 || d.Balance != 0 {
		t.Errorf("Expenses/Balance = %v/%v, want 0/0", d.Expenses, d.Balance)
	}
	if d.TopCategories == nil || len(d.TopCategories) != 0 {
		t.Errorf("TopCategories = %v, want empty", d.TopCategories)
	}
}
