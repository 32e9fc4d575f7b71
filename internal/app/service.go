package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"backtestEngine/internal/domain"
	"backtestEngine/internal/ports"
	"backtestEngine/internal/strategy/backtesting"
	"backtestEngine/internal/strategy/optimization"
	"backtestEngine/internal/strategy/strategies"
	"backtestEngine/internal/utils"
)

// RunRequest describes one backtest.
type RunRequest struct {
	Strategy  string
	Params    map[string]float64
	Symbols   []string
	Start     time.Time
	End       time.Time
	Timeframe domain.Timeframe
	ExportDir string // CSV tables are written here when set
}

// SweepRequest runs Strategy once per combination of Grid.
type SweepRequest struct {
	RunRequest
	Grid    map[string][]float64
	Workers int
	Persist bool // save every combination's run
}

// RunDetails is a stored run with its trade log and equity curve.
type RunDetails struct {
	Summary     domain.RunSummary       `json:"summary"`
	Trades      []domain.Trade          `json:"trades"`
	EquityCurve []domain.EquitySnapshot `json:"equityCurve"`
}

// BacktestService orchestrates simulation runs, persistence and export.
type BacktestService struct {
	engineCfg backtesting.Config
	provider  ports.MarketDataProvider
	repo      ports.ResultRepository // optional
	logger    ports.Logger
	workers   int
}

// NewBacktestService creates a new application service instance. repo may be
// nil, in which case results are not persisted and run queries fail.
func NewBacktestService(
	engineCfg backtesting.Config,
	provider ports.MarketDataProvider,
	repo ports.ResultRepository,
	logger ports.Logger,
	sweepWorkers int,
) (*BacktestService, error) {
	if provider == nil || logger == nil {
		return nil, fmt.Errorf("%w: missing required dependencies for BacktestService", ports.ErrConfigurationError)
	}
	if !engineCfg.StartingCapital.IsPositive() {
		return nil, fmt.Errorf("%w: starting capital must be positive", ports.ErrConfigurationError)
	}
	if sweepWorkers <= 0 {
		sweepWorkers = optimization.DefaultWorkers
	}
	return &BacktestService{
		engineCfg: engineCfg,
		provider:  provider,
		repo:      repo,
		logger:    logger,
		workers:   sweepWorkers,
	}, nil
}

// Run builds the strategy, simulates it on a fresh engine, then persists and
// exports the result. A persistence or export failure is returned together
// with the result.
func (s *BacktestService) Run(ctx context.Context, req RunRequest) (*domain.BacktestResult, error) {
	strat, err := strategies.New(req.Strategy, req.Params, s.logger)
	if err != nil {
		return nil, err
	}
	engine, err := backtesting.NewEngine(s.engineCfg, s.provider, s.logger)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Starting backtest", map[string]interface{}{
		"strategy": req.Strategy, "symbols": req.Symbols,
		"start": req.Start.Format(domain.DateLayout), "end": req.End.Format(domain.DateLayout),
	})
	result, err := engine.Run(ctx, strat, req.Symbols, req.Start, req.End, timeframeOrDaily(req.Timeframe))
	if err != nil {
		s.logger.Error(ctx, err, "Backtest failed", map[string]interface{}{"strategy": req.Strategy})
		return nil, err
	}
	s.logger.Info(ctx, "Backtest finished", map[string]interface{}{
		"runID":          result.RunID,
		"finalValue":     result.Metrics.FinalValue,
		"totalReturnPct": result.Metrics.TotalReturnPct,
		"trades":         result.Metrics.TotalTrades,
	})

	var errs []error
	if err := s.persist(ctx, result); err != nil {
		errs = append(errs, err)
	}
	if req.ExportDir != "" {
		if err := Export(result, req.ExportDir); err != nil {
			s.logger.Warn(ctx, "CSV export failed", map[string]interface{}{"runID": result.RunID, "dir": req.ExportDir, "error": err.Error()})
			errs = append(errs, err)
		}
	}
	return result, errors.Join(errs...)
}

// Sweep runs a parameter grid. Results are sorted by score, best first; the
// best run is always persisted, the rest only when Persist is set.
func (s *BacktestService) Sweep(ctx context.Context, req SweepRequest) ([]optimization.OptimizationResult, error) {
	workers := req.Workers
	if workers <= 0 {
		workers = s.workers
	}
	opt, err := optimization.NewOptimizer(optimization.OptimizerConfig{
		Strategy:   req.Strategy,
		BaseParams: req.Params,
		Grid:       req.Grid,
		Symbols:    req.Symbols,
		Start:      req.Start,
		End:        req.End,
		Timeframe:  timeframeOrDaily(req.Timeframe),
		Workers:    workers,
	}, s.engineCfg, s.provider, s.logger)
	if err != nil {
		return nil, err
	}

	results, err := opt.Optimize(ctx)
	if err != nil {
		return nil, err
	}

	toSave := results[:1]
	if req.Persist {
		toSave = results
	}
	var errs []error
	for _, r := range toSave {
		if err := s.persist(ctx, r.Result); err != nil {
			errs = append(errs, err)
		}
	}
	if req.ExportDir != "" {
		if err := Export(results[0].Result, req.ExportDir); err != nil {
			errs = append(errs, err)
		}
	}
	return results, errors.Join(errs...)
}

// ListRuns returns the most recent stored runs.
func (s *BacktestService) ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("%w: no result repository configured", ports.ErrConfigurationError)
	}
	return s.repo.ListRuns(ctx, limit)
}

// ShowRun loads a stored run with its trades and equity curve.
func (s *BacktestService) ShowRun(ctx context.Context, runID string) (*RunDetails, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("%w: no result repository configured", ports.ErrConfigurationError)
	}
	summary, err := s.repo.FindRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, fmt.Errorf("run %s: %w", runID, ports.ErrNotFound)
	}
	trades, err := s.repo.FindTrades(ctx, runID)
	if err != nil {
		return nil, err
	}
	curve, err := s.repo.FindEquityCurve(ctx, runID)
	if err != nil {
		return nil, err
	}
	return &RunDetails{Summary: *summary, Trades: trades, EquityCurve: curve}, nil
}

func (s *BacktestService) persist(ctx context.Context, result *domain.BacktestResult) error {
	if s.repo == nil || result == nil {
		return nil
	}
	if err := s.repo.SaveResult(ctx, result); err != nil {
		s.logger.Error(ctx, err, "Failed to save backtest result", map[string]interface{}{"runID": result.RunID})
		return fmt.Errorf("saving run %s: %w", result.RunID, err)
	}
	return nil
}

// Export writes <runID>_trades.csv and <runID>_equity.csv into dir.
func Export(result *domain.BacktestResult, dir string) error {
	if result == nil {
		return fmt.Errorf("%w: nothing to export", ports.ErrInvalidRequest)
	}
	if err := utils.WriteTradesToCSV(result.Trades, filepath.Join(dir, result.RunID+"_trades.csv")); err != nil {
		return fmt.Errorf("exporting trades: %w", err)
	}
	if err := utils.WriteEquityCurveToCSV(result.EquityCurve, filepath.Join(dir, result.RunID+"_equity.csv")); err != nil {
		return fmt.Errorf("exporting equity curve: %w", err)
	}
	return nil
}

func timeframeOrDaily(tf domain.Timeframe) domain.Timeframe {
	if tf == "" {
		return domain.TimeframeDaily
	}
	return tf
}
