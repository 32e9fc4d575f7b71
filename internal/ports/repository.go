package ports

import (
	"context"

	"backtestEngine/internal/domain"
)

// ResultRepository defines the interface for storing and retrieving backtest runs.
type ResultRepository interface {
	// SaveResult persists a run with its trade log and equity curve.
	SaveResult(ctx context.Context, result *domain.BacktestResult) error
	// FindRun retrieves a run header by ID.
	// Returns nil, nil if not found.
	FindRun(ctx context.Context, runID string) (*domain.RunSummary, error)
	// ListRuns retrieves the most recent runs, newest first, up to a limit.
	ListRuns(ctx context.Context, limit int) ([]domain.RunSummary, error)
	// FindTrades retrieves a run's trade log in execution order.
	FindTrades(ctx context.Context, runID string) ([]domain.Trade, error)
	// FindEquityCurve retrieves a run's equity curve in date order.
	FindEquityCurve(ctx context.Context, runID string) ([]domain.EquitySnapshot, error)
}
