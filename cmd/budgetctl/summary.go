package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"budget/internal/cli"
	"budget/internal/core"
	"budget/internal/engine"
)

var (
	flagPeriod string
	flagDate   string
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Income, expenses and balance for a period",
	RunE:  runSummary,
}

func init() {
	summaryCmd.Flags().StringVar(&flagPeriod, "period", string(engine.PeriodMonthly), "Period kind (weekly, monthly)")
	summaryCmd.Flags().StringVar(&flagDate, "date", "", "Any day inside the period (YYYY-MM-DD, default today)")
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, _ []string) error {
	period := flagPeriod
	if period == "" {
		period = string(engine.PeriodMonthly)
	}
	kind, err := engine.ParsePeriodKind(period)
	if err != nil {
		return err
	}
	var date core.Date
	if flagDate != "" {
		if date, err = core.ParseDate(flagDate); err != nil {
			return fmt.Errorf("--date: %w", err)
		}
	}

	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	d, err := s.svc.Dashboard(kind, date)
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(cli.RenderTitle(fmt.Sprintf("BUDGET  %s  (%s to %s)", d.Period.Label, d.Period.Start, d.Period.End)))
	fmt.Println()

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"", "Amount"},
		Rows: [][]string{
			{"Income", cli.FormatMoney(d.Income)},
			{"One-time expenses", cli.FormatMoney(d.OneTimeTotal)},
			{"Recurring (this period)", cli.FormatMoney(d.RecurringPeriod)},
			{"Recurring (per month)", cli.FormatMoney(d.RecurringMonthly)},
			{"---"},
			{"Expenses", cli.FormatMoney(d.Expenses)},
			{"Balance", cli.FormatMoney(d.Balance)},
		},
	}))

	if len(d.TopCategories) > 0 {
		rows := make([][]string, 0, len(d.TopCategories))
		for _, c := range d.TopCategories {
			rows = append(rows, []string{
				c.Icon + " " + c.Category,
				cli.FormatMoney(c.Amount),
				cli.FormatPercent(c.Share),
			})
		}
		fmt.Println()
		fmt.Print(cli.RenderTable(cli.Table{
			Title:   "Top Categories",
			Headers: []string{"Category", "Amount", "Share"},
			Rows:    rows,
		}))
	}

	fmt.Println()
	fmt.Printf("  Goal  %s  %s\n", cli.RenderProgressBar(d.Goal.Percentage, 30), cli.StatusColor(string(d.Goal.Status)))
	fmt.Println(cli.Muted(fmt.Sprintf("  %d entries  |  previous %s  |  next %s", d.Entries, d.Period.Prev, d.Period.Next)))
	fmt.Println()
	return nil
}
