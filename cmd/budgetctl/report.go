package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"budget/internal/cli"
	"budget/internal/engine"
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Monthly income and expense trend",
	RunE:  runSnapshots,
}

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Observations about the current month",
	RunE:  runInsights,
}

func init() {
	rootCmd.AddCommand(snapshotsCmd, insightsCmd)
}

func runSnapshots(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	points := s.svc.Snapshots()
	if len(points) == 0 {
		fmt.Println("  No snapshots recorded yet.")
		return nil
	}

	balances := make([]float64, len(points))
	rows := make([][]string, 0, len(points))
	for i, p := range points {
		balances[i] = p.Balance
		change := ""
		if i > 0 {
			change = cli.FormatDelta(p.Expenses, points[i-1].Expenses)
		}
		rows = append(rows, []string{
			p.Month,
			cli.FormatMoney(p.Income),
			cli.FormatMoney(p.Expenses),
			cli.FormatMoney(p.Balance),
			change,
		})
	}

	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title:   "Monthly Trend",
		Headers: []string{"Month", "Income", "Expenses", "Balance", "Spend vs prev"},
		Rows:    rows,
	}))
	fmt.Printf("  Balance  %s\n\n", cli.RenderSparkline(balances))
	return nil
}

func runInsights(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	insights := s.svc.Insights()
	if len(insights) == 0 {
		fmt.Println("  Nothing to report for this month.")
		return nil
	}

	fmt.Println()
	for _, in := range insights {
		fmt.Printf("  %s\n", describeInsight(in))
	}
	fmt.Println()
	return nil
}

// describeInsight renders one insight as an English sentence.
func describeInsight(in engine.Insight) string {
	switch in.Kind {
	case engine.InsightTopCategory:
		return fmt.Sprintf("Most spent on %s: %s (%s of the month).", in.Category, cli.FormatMoney(in.Amount), cli.FormatPercent(in.Percent))
	case engine.InsightMonthlyComparison:
		if in.Amount > 0 {
			return fmt.Sprintf("Spending is up %s on last month.", cli.FormatMoney(in.Amount))
		}
		return fmt.Sprintf("Spending is down %s on last month.", cli.FormatMoney(-in.Amount))
	case engine.InsightDailyAverage:
		return fmt.Sprintf("This month costs %s a day on average.", cli.FormatMoney(in.Amount))
	case engine.InsightGoalRecommendation:
		return fmt.Sprintf("Save %s a month to reach the goal on time.", cli.FormatMoney(in.Amount))
	case engine.InsightBudgetAlert:
		return fmt.Sprintf("Over budget: expenses exceed income by %s.", cli.FormatMoney(in.Amount))
	case engine.InsightHealthyBalance:
		return fmt.Sprintf("Healthy month: %s left over (%s of income).", cli.FormatMoney(in.Amount), cli.FormatPercent(in.Percent))
	case engine.InsightSavingsOpportunity:
		return fmt.Sprintf("Cutting %s by %s would free %s a month.", in.Category, cli.FormatPercent(in.Percent), cli.FormatMoney(in.Amount))
	default:
		return fmt.Sprintf("%s: %s", in.Kind, cli.FormatMoney(in.Amount))
	}
}
