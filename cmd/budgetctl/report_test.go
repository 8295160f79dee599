package main

import (
	"testing"

	"budget/internal/engine"
)

func TestDescribeInsight(t *testing.T) {
	tests := []struct {
		in   engine.Insight
		want string
	}{
		{
			engine.Insight{Kind: engine.InsightTopCategory, Category: "Housing", Amount: 1200, Percent: 60},
			"Most spent on Housing: 1,200.00 (60.0% of the month).",
		},
		{
			engine.Insight{Kind: engine.InsightMonthlyComparison, Amount: -45.5},
			"Spending is down 45.50 on last month.",
		},
		{
			engine.Insight{Kind: engine.InsightBudgetAlert, Amount: 300},
			"Over budget: expenses exceed income by 300.00.",
		},
		{
			engine.Insight{Kind: engine.InsightSavingsOpportunity, Category: "Pets", Amount: 20, Percent: 20},
			"Cutting Pets by 20.0% would free 20.00 a month.",
		},
		{
			engine.Insight{Kind: "mystery", Amount: 1},
			"mystery: 1.00",
		},
	}
	for _, tt := range tests {
		t.Run(string(tt.in.Kind), func(t *testing.T) {
			if got := describeInsight(tt.in); got != tt.want {
				t.Errorf("describeInsight() = %q, want %q", got, tt.want)
			}
		})
	}
}
