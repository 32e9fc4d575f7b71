package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"backtestEngine/internal/domain"
)

func newRunsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect stored backtest runs",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List the most recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(opts)
			if err != nil {
				return err
			}
			defer env.close()

			runs, err := env.service.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tCREATED\tSTRATEGY\tSYMBOLS\tPERIOD\tRETURN%\tSHARPE\tMAXDD%")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s..%s\t%.2f\t%.3f\t%.2f\n",
					r.RunID, r.CreatedAt.Format("2006-01-02 15:04"), r.Strategy, strings.Join(r.Symbols, ","),
					r.Start.Format(domain.DateLayout), r.End.Format(domain.DateLayout),
					r.Metrics.TotalReturnPct, r.Metrics.SharpeRatio, r.Metrics.MaxDrawdownPct)
			}
			return tw.Flush()
		},
	}
	list.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to list (0 for all)")

	var asJSON bool
	show := &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show a stored run with its trade log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(opts)
			if err != nil {
				return err
			}
			defer env.close()

			details, err := env.service.ShowRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), details)
			}
			out := cmd.OutOrStdout()
			s := details.Summary
			fmt.Fprintf(out, "%s  %s  %s  %s..%s\n", s.RunID, s.Strategy, strings.Join(s.Symbols, ","),
				s.Start.Format(domain.DateLayout), s.End.Format(domain.DateLayout))
			fmt.Fprintf(out, "return %.2f%%  sharpe %.3f  max drawdown %.2f%%  final %.2f\n\n",
				s.Metrics.TotalReturnPct, s.Metrics.SharpeRatio, s.Metrics.MaxDrawdownPct, s.Metrics.FinalValue)

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tSYMBOL\tACTION\tQTY\tPRICE\tCOMMISSION\tRATIONALE")
			for _, t := range details.Trades {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n", t.Date.Format(domain.DateLayout), t.Symbol, t.Action,
					t.Quantity, t.Price.StringFixed(4), t.Commission.StringFixed(4), t.Rationale)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			printCurveStats(out, details.EquityCurve)
			return nil
		},
	}
	show.Flags().BoolVar(&asJSON, "json", false, "print run, trades and equity curve as JSON")

	cmd.AddCommand(list, show)
	return cmd
}
