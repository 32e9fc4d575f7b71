package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"backtestEngine/config"
	"backtestEngine/internal/adapters/csvstore"
	"backtestEngine/internal/adapters/logger"
	"backtestEngine/internal/adapters/parquetstore"
	"backtestEngine/internal/app"
	"backtestEngine/internal/domain"
	"backtestEngine/internal/ports"
)

// FetchOptions selects what to download and where to write it.
type FetchOptions struct {
	Source    string
	Symbols   []string
	Start     string
	End       string
	Timeframe string
	Formats   []string // parquet, csv
	OutDir    string   // default DATA_DIR
}

func newFetchCmd(opts *globalOptions) *cobra.Command {
	fo := &FetchOptions{}
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download bars from Binance or Alpaca into the local stores",
		Long: `Fetch downloads bars and writes them as Parquet and CSV files under
DATA_DIR, so later runs can use DATA_SOURCE=parquet or csv offline.

Example:
  backtest fetch --source alpaca --symbols AAPL,MSFT --start 2023-01-01 --end 2023-12-31`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fo.Source == "" {
				fo.Source = opts.source
			}
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			report, err := RunFetch(cmd.Context(), cfg, *fo)
			if report != nil {
				for _, symbol := range fo.Symbols {
					if ferr, failed := report.Failed[symbol]; failed {
						fmt.Fprintf(cmd.OutOrStdout(), "%s\tFAILED\t%v\n", symbol, ferr)
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d bars\n", symbol, report.Bars[symbol])
				}
			}
			return err
		},
	}
	cmd.Flags().StringSliceVar(&fo.Symbols, "symbols", nil, "comma separated symbols (required)")
	cmd.Flags().StringVar(&fo.Start, "start", "", "first day (YYYY-MM-DD, required)")
	cmd.Flags().StringVar(&fo.End, "end", time.Now().UTC().Format(domain.DateLayout), "last day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&fo.Timeframe, "timeframe", string(domain.TimeframeDaily), "bar timeframe (1d or 1h)")
	cmd.Flags().StringSliceVar(&fo.Formats, "format", []string{"parquet", "csv"}, "output formats")
	cmd.Flags().StringVar(&fo.OutDir, "out", "", "output directory (default DATA_DIR)")
	cmd.MarkFlagRequired("symbols")
	cmd.MarkFlagRequired("start")
	return cmd
}

// RunFetch downloads bars per fo using credentials from cfg.
func RunFetch(ctx context.Context, cfg *config.Config, fo FetchOptions) (*app.FetchReport, error) {
	source := fo.Source
	if source == "" {
		source = config.SourceBinance
	}
	if source != config.SourceBinance && source != config.SourceAlpaca {
		return nil, fmt.Errorf("fetch source must be binance or alpaca, got %q", source)
	}
	start, err := domain.ParseDate(fo.Start)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	end, err := domain.ParseDate(fo.End)
	if err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("end %s is before start %s", fo.End, fo.Start)
	}
	outDir := fo.OutDir
	if outDir == "" {
		outDir = cfg.DataDir
	}

	var writers []ports.BarWriter
	for _, format := range fo.Formats {
		switch format {
		case "parquet":
			writers = append(writers, parquetstore.New(outDir))
		case "csv":
			writers = append(writers, csvstore.New(outDir))
		default:
			return nil, fmt.Errorf("unknown output format %q (parquet or csv)", format)
		}
	}

	appLogger := logger.New(cfg.LogLevel, cfg.LogFormat)
	provider, err := app.NewProviderFor(source, cfg, appLogger)
	if err != nil {
		return nil, err
	}
	timeframe := domain.Timeframe(fo.Timeframe)
	if timeframe == "" {
		timeframe = domain.TimeframeDaily
	}
	return app.FetchBars(ctx, provider, writers, fo.Symbols, start, end, timeframe, appLogger)
}
