package engine

import (
	"budget/internal/category"
	"budget/internal/core"
)

// DefaultTopN is the number of categories ranked on the dashboard.
const DefaultTopN = 5

type DashboardOptions struct {
	TopN      int
	Projector Projector
}

// RankedCategory is a top-N row decorated with registry metadata.
type RankedCategory struct {
	CategoryAmount
	Icon  string  `json:"icon"`
	Color string  `json:"color"`
	Share float64 `json:"share"` // percent of the period total
}

type PeriodView struct {
	Kind  PeriodKind `json:"kind"`
	Start core.Date  `json:"start"`
	End   core.Date  `json:"end"`
	Label string     `json:"label"`
	Prev  core.Date  `json:"prev"`
	Next  core.Date  `json:"next"`
}

// Dashboard is everything the overview screen renders for one period.
type Dashboard struct {
	Period           PeriodView         `json:"period"`
	Income           float64            `json:"income"`
	Expenses         float64            `json:"expenses"`
	Balance          float64            `json:"balance"`
	OneTimeTotal     float64            `json:"oneTimeTotal"`
	RecurringMonthly float64            `json:"recurringMonthly"`
	RecurringPeriod  float64            `json:"recurringPeriod"`
	CategoryTotals   map[string]float64 `json:"categoryTotals"`
	TopCategories    []RankedCategory   `json:"topCategories"`
	Goal             GoalMetrics        `json:"goal"`
	Trend            []SnapshotPoint    `json:"trend"`
	Entries          int                `json:"entries"`
}

// BuildDashboard derives the dashboard for p. Period figures use the
// prorated totals so that category rows add up to Expenses.
func BuildDashboard(s core.FinanceState, p Period, today core.Date, opts DashboardOptions) Dashboard {
	topN := opts.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}

	oneTime := TotalOneTime(s.Expenses, &p.Range)
	recurring := TotalRecurringForRange(s.RecurringRules, p.Range)
	total := oneTime + recurring
	totals := ProratedCategoryTotals(s.Expenses, s.RecurringRules, p.Range)

	d := Dashboard{
		Period: PeriodView{
			Kind:  p.Kind,
			Start: p.Start,
			End:   p.End,
			Label: p.Label(),
			Prev:  p.Prev().Start,
			Next:  p.Next().Start,
		},
		Income:           s.Salary,
		Expenses:         total,
		Balance:          s.Salary - total,
		OneTimeTotal:     oneTime,
		RecurringMonthly: TotalRecurringMonthly(s.RecurringRules),
		RecurringPeriod:  recurring,
		CategoryTotals:   totals,
		Goal:             opts.Projector.Project(s.SavingsGoal, today),
		Trend:            SnapshotTrend(s.MonthlySnapshots),
		Entries:          len(ExpensesInRange(s.Expenses, &p.Range)) + len(s.RecurringRules),
	}

	top := TopCategories(totals, topN)
	d.TopCategories = make([]RankedCategory, 0, len(top))
	for _, c := range top {
		meta := category.Resolve(c.Category)
		row := RankedCategory{CategoryAmount: c, Icon: meta.Icon, Color: meta.Color}
		if total > 0 {
			row.Share = c.Amount / total * 100
		}
		d.TopCategories = append(d.TopCategories, row)
	}
	return d
}
