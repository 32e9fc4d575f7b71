package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"backtestEngine/config"
	"backtestEngine/internal/app"
	"backtestEngine/internal/domain"
	"backtestEngine/internal/strategy/analytics"
)

// requestFlags are shared by run and sweep.
type requestFlags struct {
	file      string
	strategy  string
	symbols   []string
	start     string
	end       string
	timeframe string
	params    []string
	exportDir string
}

func (f *requestFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "run file (YAML or JSON); flags override its fields")
	cmd.Flags().StringVarP(&f.strategy, "strategy", "s", "", "strategy name")
	cmd.Flags().StringSliceVar(&f.symbols, "symbols", nil, "comma separated symbols")
	cmd.Flags().StringVar(&f.start, "start", "", "first day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end", "", "last day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.timeframe, "timeframe", "", "bar timeframe (1d or 1h)")
	cmd.Flags().StringArrayVarP(&f.params, "param", "p", nil, "strategy parameter key=value (repeatable)")
	cmd.Flags().StringVar(&f.exportDir, "export", "", "directory for trade and equity CSV files")
}

// runFile merges the run file (if any) with the flags and validates the result.
func (f *requestFlags) runFile() (*config.RunFile, error) {
	rf := &config.RunFile{}
	if f.file != "" {
		loaded, err := config.LoadRunFile(f.file)
		if err != nil {
			return nil, err
		}
		rf = loaded
	}
	if f.strategy != "" {
		rf.Strategy = f.strategy
	}
	if len(f.symbols) > 0 {
		rf.Symbols = f.symbols
	}
	if f.start != "" {
		rf.Start = f.start
	}
	if f.end != "" {
		rf.End = f.end
	}
	if f.timeframe != "" {
		rf.Timeframe = f.timeframe
	}
	if f.exportDir != "" {
		rf.Export.Dir = f.exportDir
	}
	overrides, err := parseParams(f.params)
	if err != nil {
		return nil, err
	}
	if len(overrides) > 0 && rf.Params == nil {
		rf.Params = make(map[string]float64, len(overrides))
	}
	for k, v := range overrides {
		rf.Params[k] = v
	}
	if err := rf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	return rf, nil
}

func toRunRequest(rf *config.RunFile) (app.RunRequest, error) {
	start, end, err := rf.Dates()
	if err != nil {
		return app.RunRequest{}, err
	}
	return app.RunRequest{
		Strategy:  rf.Strategy,
		Params:    rf.Params,
		Symbols:   rf.Symbols,
		Start:     start,
		End:       end,
		Timeframe: rf.TimeframeOrDefault(),
		ExportDir: rf.Export.Dir,
	}, nil
}

// parseParams parses key=value pairs into strategy parameters.
func parseParams(pairs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("parameter %q must be key=value", pair)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", key, err)
		}
		out[key] = v
	}
	return out, nil
}

func newRunCmd(opts *globalOptions) *cobra.Command {
	flags := &requestFlags{}
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one backtest",
		Long: `Run simulates one strategy over the requested symbols and date range.

Example:
  backtest run --strategy dip_buy --symbols AAPL,MSFT --start 2023-01-03 --end 2023-12-29 -p dip=0.04`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rf, err := flags.runFile()
			if err != nil {
				return err
			}
			req, err := toRunRequest(rf)
			if err != nil {
				return err
			}
			env, err := setup(opts)
			if err != nil {
				return err
			}
			defer env.close()

			result, runErr := env.service.Run(cmd.Context(), req)
			if result == nil {
				return runErr
			}
			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
					return err
				}
			} else {
				printResult(cmd.OutOrStdout(), result)
			}
			return runErr
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult(w io.Writer, r *domain.BacktestResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	m := r.Metrics
	fmt.Fprintf(tw, "Run\t%s\n", r.RunID)
	fmt.Fprintf(tw, "Strategy\t%s\n", r.Strategy)
	fmt.Fprintf(tw, "Symbols\t%s\n", strings.Join(r.Symbols, ","))
	if len(r.ExcludedSymbols) > 0 {
		fmt.Fprintf(tw, "Excluded\t%s\n", strings.Join(r.ExcludedSymbols, ","))
	}
	fmt.Fprintf(tw, "Period\t%s .. %s (%d days)\n", r.Start.Format(domain.DateLayout), r.End.Format(domain.DateLayout), m.TradingDays)
	fmt.Fprintf(tw, "Starting capital\t%.2f\n", m.StartingCapital)
	fmt.Fprintf(tw, "Final value\t%.2f\n", m.FinalValue)
	fmt.Fprintf(tw, "Total return\t%.2f%%\n", m.TotalReturnPct)
	fmt.Fprintf(tw, "Sharpe ratio\t%.3f\n", m.SharpeRatio)
	fmt.Fprintf(tw, "Max drawdown\t%.2f%%\n", m.MaxDrawdownPct)
	fmt.Fprintf(tw, "Trades\t%d (%d buy / %d sell)\n", m.TotalTrades, m.BuyTrades, m.SellTrades)
	fmt.Fprintf(tw, "Commission\t%.2f\n", m.TotalCommission)
	if r.DroppedSignals > 0 || r.RejectedOrders > 0 || len(r.SkippedDays) > 0 {
		fmt.Fprintf(tw, "Dropped / rejected / skipped\t%d / %d / %d\n", r.DroppedSignals, r.RejectedOrders, len(r.SkippedDays))
	}
	if len(r.FinalPortfolio.Positions) > 0 {
		syms := make([]string, 0, len(r.FinalPortfolio.Positions))
		for s := range r.FinalPortfolio.Positions {
			syms = append(syms, s)
		}
		sort.Strings(syms)
		parts := make([]string, 0, len(syms))
		for _, s := range syms {
			parts = append(parts, fmt.Sprintf("%s:%d", s, r.FinalPortfolio.Positions[s]))
		}
		fmt.Fprintf(tw, "Open positions\t%s\n", strings.Join(parts, " "))
	}
	tw.Flush()
	printCurveStats(w, r.EquityCurve)
}

// printCurveStats lists the drawdown periods and monthly returns of curve.
func printCurveStats(w io.Writer, curve []domain.EquitySnapshot) {
	if len(curve) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	if drawdowns := analytics.Drawdowns(curve); len(drawdowns) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "DRAWDOWN FROM\tTO\tDEPTH%\tTROUGH")
		for _, dd := range drawdowns {
			to := "open"
			if dd.Recovered {
				to = dd.EndTime.Format(domain.DateLayout)
			}
			fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.2f\n", dd.StartTime.Format(domain.DateLayout), to, dd.Depth*100, dd.Trough)
		}
	}

	monthly := analytics.MonthlyReturns(curve)
	months := make([]string, 0, len(monthly))
	for m := range monthly {
		months = append(months, m)
	}
	sort.Strings(months)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "MONTH\tRETURN%")
	for _, m := range months {
		fmt.Fprintf(tw, "%s\t%.2f\n", m, monthly[m]*100)
	}
	tw.Flush()
}
