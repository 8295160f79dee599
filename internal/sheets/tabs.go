package sheets

import (
	"budget/internal/core"
	"budget/internal/engine"
)

// Tab is one worksheet: a title and its rows, header first.
type Tab struct {
	Name string
	Rows [][]any
}

// Render lays s out as the four mirror tabs. Amounts are rounded to cents;
// dates are ISO strings so spreadsheets sort them correctly.
func Render(s core.FinanceState) []Tab {
	return []Tab{
		expensesTab(s.Expenses),
		recurringTab(s.RecurringRules),
		savingsTab(s.SavingsGoal),
		snapshotsTab(s.MonthlySnapshots),
	}
}

func expensesTab(expenses []core.Expense) Tab {
	rows := [][]any{{"ID", "Date", "Category", "Description", "Amount"}}
	for _, e := range expenses {
		rows = append(rows, []any{e.ID, e.Date.String(), e.Category, e.Description, core.RoundAmount(e.Amount)})
	}
	return Tab{Name: TabExpenses, Rows: rows}
}

func recurringTab(rules []core.RecurringRule) Tab {
	rows := [][]any{{"ID", "Start Date", "Category", "Description", "Frequency", "Amount", "Active", "Monthly Equivalent"}}
	for _, r := range rules {
		rows = append(rows, []any{
			r.ID,
			r.StartDate.String(),
			r.Category,
			r.Description,
			string(r.Frequency),
			core.RoundAmount(r.Amount),
			r.Active,
			core.RoundAmount(engine.MonthlyEquivalent(r)),
		})
	}
	return Tab{Name: TabRecurring, Rows: rows}
}

func savingsTab(g core.SavingsGoal) Tab {
	rows := [][]any{
		{"Target", core.RoundAmount(g.Target), "Deadline", g.Deadline.String()},
		{"Date", "Amount", "Adjustment", "Running Total"},
	}
	var running float64
	for _, e := range g.Entries {
		running += e.Amount
		rows = append(rows, []any{e.Date.String(), core.RoundAmount(e.Amount), e.Adjustment, core.RoundAmount(running)})
	}
	return Tab{Name: TabSavings, Rows: rows}
}

func snapshotsTab(snapshots map[string]core.MonthlySnapshot) Tab {
	rows := [][]any{{"Month", "Income", "Expenses", "Balance"}}
	for _, p := range engine.SnapshotTrend(snapshots) {
		rows = append(rows, []any{p.Month, core.RoundAmount(p.Income), core.RoundAmount(p.Expenses), core.RoundAmount(p.Balance)})
	}
	return Tab{Name: TabSnapshots, Rows: rows}
}
