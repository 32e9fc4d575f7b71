// Package cli wires configuration, adapters and the backtest service into a
// cobra command tree.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"backtestEngine/config"
	"backtestEngine/internal/adapters/logger"
	"backtestEngine/internal/adapters/sqlite"
	"backtestEngine/internal/app"
	"backtestEngine/internal/ports"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	envFile string
	source  string // overrides DATA_SOURCE
	dbPath  string // overrides DB_PATH
	noStore bool
}

// environment holds what a command needs once configuration is loaded.
type environment struct {
	cfg     *config.Config
	logger  ports.Logger
	service *app.BacktestService
	close   func()
}

// NewRootCmd builds the command tree writing to out.
func NewRootCmd(out io.Writer) *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "backtest",
		Short: "Daily portfolio backtesting engine",
		Long: `Backtest replays daily bars for a set of symbols through a trading
strategy and reports the equity curve, trade log and performance metrics.

Market data comes from local CSV or Parquet files, Binance futures klines
or Alpaca US equity bars. Runs are stored in SQLite for later review.

Examples:
  backtest config init -o run.yaml
  backtest run -f run.yaml
  backtest sweep -f run.yaml --workers 8
  backtest fetch --source binance --symbols BTCUSDT --start 2024-01-01 --end 2024-06-30
  backtest runs list`,
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.SetErr(out)

	root.PersistentFlags().StringVar(&opts.envFile, "env", "", "env file to load (default .env when present)")
	root.PersistentFlags().StringVar(&opts.source, "source", "", "market data source: csv, parquet, binance or alpaca (overrides DATA_SOURCE)")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite result store path (overrides DB_PATH)")
	root.PersistentFlags().BoolVar(&opts.noStore, "no-store", false, "do not persist results")

	root.AddCommand(
		newRunCmd(opts),
		newSweepCmd(opts),
		newFetchCmd(opts),
		newRunsCmd(opts),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command tree with a context canceled on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd(os.Stdout).ExecuteContext(ctx)
}

func loadConfig(opts *globalOptions) (*config.Config, error) {
	var files []string
	if opts.envFile != "" {
		files = append(files, opts.envFile)
	}
	cfg, err := config.LoadConfig(files...)
	if err != nil {
		return nil, err
	}
	if opts.source != "" {
		cfg.DataSource = opts.source
	}
	if opts.dbPath != "" {
		cfg.DBPath = opts.dbPath
	}
	return cfg, nil
}

// setup loads configuration and builds the logger, provider, repository and service.
func setup(opts *globalOptions) (*environment, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	appLogger := logger.New(cfg.LogLevel, cfg.LogFormat)
	appLogger.Debug(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String(), "format": cfg.LogFormat})

	provider, err := app.NewProvider(cfg, appLogger)
	if err != nil {
		return nil, err
	}

	env := &environment{cfg: cfg, logger: appLogger, close: func() {}}
	var repo ports.ResultRepository
	if !opts.noStore {
		sqliteRepo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
		if err != nil {
			return nil, fmt.Errorf("open result store: %w", err)
		}
		repo = sqliteRepo
		env.close = func() {
			if err := sqliteRepo.Close(); err != nil {
				appLogger.Error(context.Background(), err, "Error closing result store")
			}
		}
	}

	svc, err := app.NewBacktestService(cfg.EngineConfig(), provider, repo, appLogger, cfg.SweepWorkers)
	if err != nil {
		env.close()
		return nil, err
	}
	env.service = svc
	return env, nil
}
