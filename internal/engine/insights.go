package engine

import (
	"budget/internal/core"
)

type InsightKind string

const (
	InsightTopCategory        InsightKind = "top-category"
	InsightMonthlyComparison  InsightKind = "monthly-comparison"
	InsightDailyAverage       InsightKind = "daily-average"
	InsightGoalRecommendation InsightKind = "goal-recommendation"
	InsightBudgetAlert        InsightKind = "budget-alert"
	InsightHealthyBalance     InsightKind = "healthy-balance"
	InsightSavingsOpportunity InsightKind = "savings-opportunity"
)

const (
	// healthyBalanceShare is the share of income left over, in percent, above
	// which the month is reported as healthy.
	healthyBalanceShare = 30.0
	// reductionShare is the cut suggested on the top category.
	reductionShare = 0.2
)

// Insight is one unformatted observation about the current month. Amount is
// the headline figure; Percent and Category are set where relevant.
type Insight struct {
	Kind     InsightKind `json:"kind"`
	Category string      `json:"category,omitempty"`
	Amount   float64     `json:"amount"`
	Percent  float64     `json:"percent,omitempty"`
}

// Insights evaluates the month containing today. Category rankings use the
// full monthly equivalent of recurring rules, as CategoryTotals does.
//
// The top-category ranking is scoped to this month rather than all time:
// one-time expenses dated in earlier months are ignored, so a large past
// purchase never outranks what is being spent now.
func Insights(s core.FinanceState, today core.Date, projector Projector) []Insight {
	month := MonthOf(today)
	totals := CategoryTotals(s.Expenses, s.RecurringRules, &month.Range)
	top := TopCategories(totals, 1)
	expenses := TotalRecurringMonthly(s.RecurringRules) + TotalOneTime(s.Expenses, &month.Range)

	var out []Insight

	if len(top) > 0 {
		in := Insight{Kind: InsightTopCategory, Category: top[0].Category, Amount: top[0].Amount}
		if expenses > 0 {
			in.Percent = top[0].Amount / expenses * 100
		}
		out = append(out, in)
	}

	current, okCur := s.MonthlySnapshots[today.YearMonth()]
	prevMonth := month.Prev()
	previous, okPrev := s.MonthlySnapshots[prevMonth.Start.YearMonth()]
	if okCur && okPrev {
		if diff := current.Expenses - previous.Expenses; diff != 0 {
			out = append(out, Insight{Kind: InsightMonthlyComparison, Amount: diff})
		}
	}

	if days := month.Days(); days > 0 {
		if avg := expenses / float64(days); avg > 0 {
			out = append(out, Insight{Kind: InsightDailyAverage, Amount: avg})
		}
	}

	if m := projector.Project(s.SavingsGoal, today); m.Remaining > 0 {
		out = append(out, Insight{Kind: InsightGoalRecommendation, Amount: m.RecommendedMonthly})
	}

	balance := s.Salary - expenses
	var balanceShare float64
	if s.Salary > 0 {
		balanceShare = balance / s.Salary * 100
	}
	switch {
	case balance < 0:
		out = append(out, Insight{Kind: InsightBudgetAlert, Amount: -balance})
	case balanceShare > healthyBalanceShare:
		out = append(out, Insight{Kind: InsightHealthyBalance, Amount: balance, Percent: balanceShare})
	}

	if len(top) > 0 && expenses > 0 {
		out = append(out, Insight{
			Kind:     InsightSavingsOpportunity,
			Category: top[0].Category,
			Amount:   top[0].Amount * reductionShare,
			Percent:  reductionShare * 100,
		})
	}

	return out
}
