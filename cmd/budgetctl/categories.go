package main

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"budget/internal/category"
	"budget/internal/cli"
	"budget/internal/core"
	"budget/internal/engine"
)

var (
	flagFrom    string
	flagTo      string
	flagAll     bool
	flagProrate bool
)

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Spending per category",
	Long:  "Sum spending per category over a date range (default: the current month). Recurring rules count their full monthly amount unless --prorate is set.",
	RunE:  runCategories,
}

func init() {
	categoriesCmd.Flags().StringVar(&flagFrom, "from", "", "Range start (YYYY-MM-DD)")
	categoriesCmd.Flags().StringVar(&flagTo, "to", "", "Range end, inclusive (YYYY-MM-DD)")
	categoriesCmd.Flags().BoolVar(&flagAll, "all", false, "Ignore dates and sum every expense")
	categoriesCmd.Flags().BoolVar(&flagProrate, "prorate", false, "Count recurring rules for the days in range only")
	rootCmd.AddCommand(categoriesCmd)
}

func runCategories(cmd *cobra.Command, _ []string) error {
	if flagAll && flagProrate {
		return fmt.Errorf("--prorate needs a date range")
	}
	if (flagFrom == "") != (flagTo == "") {
		return fmt.Errorf("--from and --to must be given together")
	}

	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	var r *engine.Range
	switch {
	case flagAll:
	case flagFrom != "":
		from, err := core.ParseDate(flagFrom)
		if err != nil {
			return fmt.Errorf("--from: %w", err)
		}
		to, err := core.ParseDate(flagTo)
		if err != nil {
			return fmt.Errorf("--to: %w", err)
		}
		rng := engine.NewRange(from, to)
		r = &rng
	default:
		month := engine.MonthOf(s.svc.Today())
		r = &month.Range
	}

	totals := s.svc.CategoryTotals(r, flagProrate)
	names := slices.SortedFunc(maps.Keys(totals), func(a, b string) int {
		return cmp.Or(cmp.Compare(totals[b], totals[a]), cmp.Compare(a, b))
	})

	title := "All time"
	if r != nil {
		title = r.String()
	}
	var sum float64
	rows := make([][]string, 0, len(names)+2)
	for _, name := range names {
		c := category.Resolve(name)
		rows = append(rows, []string{c.Icon + " " + name, cli.FormatMoney(totals[name])})
		sum += totals[name]
	}
	rows = append(rows, []string{"---"}, []string{"Total", cli.FormatMoney(sum)})

	fmt.Println()
	fmt.Print(cli.RenderTable(cli.Table{
		Title:   title,
		Headers: []string{"Category", "Amount"},
		Rows:    rows,
	}))
	fmt.Println()
	return nil
}
