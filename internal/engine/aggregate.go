package engine

import (
	"cmp"
	"slices"

	"budget/internal/core"
)

// CategoryAmount is one row of a ranked category list.
type CategoryAmount struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// ExpensesInRange returns the one-time expenses dated within r. A nil range
// selects everything.
func ExpensesInRange(expenses []core.Expense, r *Range) []core.Expense {
	if r == nil {
		return slices.Clone(expenses)
	}
	out := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		if r.Contains(e.Date) {
			out = append(out, e)
		}
	}
	return out
}

// TotalOneTime sums one-time expenses dated within r, or all of them when r
// is nil.
func TotalOneTime(expenses []core.Expense, r *Range) float64 {
	var total float64
	for _, e := range expenses {
		if r == nil || r.Contains(e.Date) {
			total += e.Amount
		}
	}
	return total
}

// TotalRecurringMonthly sums the monthly equivalent of every rule.
func TotalRecurringMonthly(rules []core.RecurringRule) float64 {
	var total float64
	for _, rule := range rules {
		total += MonthlyEquivalent(rule)
	}
	return total
}

// TotalRecurringForRange sums every rule prorated to r.
func TotalRecurringForRange(rules []core.RecurringRule, r Range) float64 {
	var total float64
	for _, rule := range rules {
		total += ProratedForRange(rule, r)
	}
	return total
}

// TotalForRange is the period total: one-time expenses within r plus every
// active rule prorated to r.
func TotalForRange(expenses []core.Expense, rules []core.RecurringRule, r Range) float64 {
	return TotalOneTime(expenses, &r) + TotalRecurringForRange(rules, r)
}

// Balance is income minus the period total for r.
func Balance(income float64, expenses []core.Expense, rules []core.RecurringRule, r Range) float64 {
	return income - TotalForRange(expenses, rules, r)
}

// CategoryTotals maps category name to amount. One-time expenses are
// filtered to r when it is non-nil; active rules always contribute their
// full monthly equivalent, whatever r is. Categories without any
// contribution are absent.
func CategoryTotals(expenses []core.Expense, rules []core.RecurringRule, r *Range) map[string]float64 {
	totals := make(map[string]float64)
	for _, e := range expenses {
		if r == nil || r.Contains(e.Date) {
			totals[e.Category] += e.Amount
		}
	}
	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		totals[rule.Category] += MonthlyEquivalent(rule)
	}
	return totals
}

// ProratedCategoryTotals is CategoryTotals with rules prorated to r, so that
// the values add up to TotalForRange.
func ProratedCategoryTotals(expenses []core.Expense, rules []core.RecurringRule, r Range) map[string]float64 {
	totals := make(map[string]float64)
	for _, e := range expenses {
		if r.Contains(e.Date) {
			totals[e.Category] += e.Amount
		}
	}
	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		totals[rule.Category] += ProratedForRange(rule, r)
	}
	return totals
}

// TopCategories returns up to limit categories by descending amount. Equal
// amounts are ordered by name.
func TopCategories(totals map[string]float64, limit int) []CategoryAmount {
	if limit <= 0 {
		return []CategoryAmount{}
	}
	ranked := make([]CategoryAmount, 0, len(totals))
	for name, amount := range totals {
		ranked = append(ranked, CategoryAmount{Category: name, Amount: amount})
	}
	slices.SortFunc(ranked, func(a, b CategoryAmount) int {
		if c := cmp.Compare(b.Amount, a.Amount); c != 0 {
			return c
		}
		return cmp.Compare(a.Category, b.Category)
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
