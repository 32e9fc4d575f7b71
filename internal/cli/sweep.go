package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"backtestEngine/internal/app"
	"backtestEngine/internal/strategy/optimization"
)

func newSweepCmd(opts *globalOptions) *cobra.Command {
	flags := &requestFlags{}
	var (
		grid    []string
		workers int
		persist bool
		top     int
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a parameter grid and rank the combinations",
		Long: `Sweep runs one backtest per combination of the grid given in the run
file's sweep section or with --grid, in parallel, and ranks them by score.

Example:
  backtest sweep -f run.yaml --grid dip=0.02,0.03,0.05 --grid take_profit=0.04,0.08`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rf, err := flags.runFile()
			if err != nil {
				return err
			}
			extra, err := parseGrid(grid)
			if err != nil {
				return err
			}
			if rf.Sweep == nil {
				rf.Sweep = make(map[string][]float64, len(extra))
			}
			for k, v := range extra {
				rf.Sweep[k] = v
			}
			if len(rf.Sweep) == 0 {
				return fmt.Errorf("sweep needs a grid: add a sweep section to the run file or pass --grid")
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

			results, sweepErr := env.service.Sweep(cmd.Context(), app.SweepRequest{
				RunRequest: req,
				Grid:       rf.Sweep,
				Workers:    workers,
				Persist:    persist,
			})
			if len(results) == 0 {
				return sweepErr
			}
			printSweep(cmd.OutOrStdout(), results, top)
			return sweepErr
		},
	}
	flags.register(cmd)
	cmd.Flags().StringArrayVar(&grid, "grid", nil, "grid values key=v1,v2,... (repeatable)")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel runs (default SWEEP_WORKERS)")
	cmd.Flags().BoolVar(&persist, "persist", false, "store every combination, not just the best")
	cmd.Flags().IntVar(&top, "top", 10, "rows to print")
	return cmd
}

// parseGrid parses key=v1,v2 entries.
func parseGrid(entries []string) (map[string][]float64, error) {
	out := make(map[string][]float64, len(entries))
	for _, entry := range entries {
		key, raw, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("grid entry %q must be key=v1,v2", entry)
		}
		key = strings.TrimSpace(key)
		for _, v := range strings.Split(raw, ",") {
			parsed, err := parseParams([]string{key + "=" + v})
			if err != nil {
				return nil, fmt.Errorf("grid %s: %w", key, err)
			}
			out[key] = append(out[key], parsed[key])
		}
	}
	return out, nil
}

func printSweep(w io.Writer, results []optimization.OptimizationResult, top int) {
	if top <= 0 || top > len(results) {
		top = len(results)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSCORE\tRETURN%\tSHARPE\tMAXDD%\tTRADES\tPARAMS\tRUN")
	for i, r := range results[:top] {
		fmt.Fprintf(tw, "%d\t%.3f\t%.2f\t%.3f\t%.2f\t%d\t%s\t%s\n",
			i+1, r.Score, r.Metrics.TotalReturnPct, r.Metrics.SharpeRatio, r.Metrics.MaxDrawdownPct,
			r.Metrics.TotalTrades, formatParams(r.Parameters), r.RunID)
	}
	tw.Flush()
}

func formatParams(params map[string]float64) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%g", k, params[k]))
	}
	return strings.Join(parts, " ")
}
