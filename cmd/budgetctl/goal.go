package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"budget/internal/cli"
	"budget/internal/core"
)

var flagEntryDate string

var goalCmd = &cobra.Command{
	Use:   "goal",
	Short: "Savings goal progress and projection",
	RunE:  runGoal,
}

var depositCmd = &cobra.Command{
	Use:   "deposit <amount>",
	Short: "Record a savings deposit",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeposit,
}

var salaryCmd = &cobra.Command{
	Use:   "salary <amount>",
	Short: "Set the monthly income",
	Args:  cobra.ExactArgs(1),
	RunE:  runSalary,
}

func init() {
	depositCmd.Flags().StringVar(&flagEntryDate, "date", "", "Deposit date (YYYY-MM-DD, default today)")
	salaryCmd.Flags().StringVar(&flagEntryDate, "date", "", "Effective date (YYYY-MM-DD, default today)")
	goalCmd.AddCommand(depositCmd)
	rootCmd.AddCommand(goalCmd, salaryCmd)
}

func runGoal(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	g := s.svc.Goal()

	fmt.Println()
	fmt.Println(cli.RenderTitle("SAVINGS GOAL"))
	fmt.Println()
	fmt.Printf("  %s  %s\n\n", cli.RenderProgressBar(g.Percentage, 40), cli.StatusColor(string(g.Status)))

	fmt.Print(cli.RenderTable(cli.Table{
		Headers: []string{"", "Value"},
		Rows: [][]string{
			{"Saved", cli.FormatMoney(g.Saved)},
			{"Target", cli.FormatMoney(g.Target)},
			{"Remaining", cli.FormatMoney(g.Remaining)},
			{"---"},
			{"Expected by today", cli.FormatMoney(g.ExpectedSaved)},
			{"Recommended monthly", cli.FormatMoney(g.RecommendedMonthly)},
			{"Months remaining", fmt.Sprintf("%d", g.MonthsRemaining)},
			{"Days remaining", fmt.Sprintf("%d", g.DaysRemaining)},
		},
	}))
	fmt.Println(cli.Muted(fmt.Sprintf("  Tracking since %s", g.TrackingStart)))
	fmt.Println()
	return nil
}

func runDeposit(cmd *cobra.Command, args []string) error {
	amount, err := core.ParseAmount(args[0])
	if err != nil {
		return err
	}
	date, err := entryDate()
	if err != nil {
		return err
	}

	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	g, err := s.svc.AddSavingsDeposit(cmd.Context(), amount, date)
	if err != nil {
		return err
	}
	fmt.Printf("  Saved %s of %s\n", cli.FormatMoney(g.Saved), cli.FormatMoney(g.Target))
	return nil
}

func runSalary(cmd *cobra.Command, args []string) error {
	amount, err := core.ParseIncome(args[0])
	if err != nil {
		return err
	}
	date, err := entryDate()
	if err != nil {
		return err
	}

	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := s.svc.UpdateSalary(cmd.Context(), amount, date)
	if err != nil {
		return err
	}
	fmt.Printf("  Income set to %s from %s (version %d)\n", cli.FormatMoney(st.Salary), st.SalaryDate, st.Version)
	return nil
}

// entryDate parses --date; the zero Date lets the service use today.
func entryDate() (core.Date, error) {
	if flagEntryDate == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(flagEntryDate)
	if err != nil {
		return core.Date{}, fmt.Errorf("--date: %w", err)
	}
	return d, nil
}
