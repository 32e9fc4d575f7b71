package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"backtestEngine/internal/domain"
)

// StrategyContext is the read-only portfolio view handed to a strategy each day.
// Positions and Trades are copies; changing them has no effect on the run.
type StrategyContext struct {
	Date           time.Time
	DayIndex       int
	PortfolioValue decimal.Decimal
	Cash           decimal.Decimal
	Positions      map[string]int64
	Trades         []domain.Trade
}

// Position returns the share count held for symbol (0 when flat).
func (c StrategyContext) Position(symbol string) int64 {
	return c.Positions[symbol]
}

// Strategy defines the interface for trading strategies.
type Strategy interface {
	// Name returns the name of the strategy.
	Name() string

	// GenerateSignals decides the day's orders from the price view and the portfolio context.
	// Signals are executed in the order returned. The call may block on I/O.
	GenerateSignals(ctx context.Context, prices domain.DayPrices, sc StrategyContext) ([]domain.Signal, error)
}

// Resetter is implemented by strategies holding private state across days.
// The engine calls Reset once before the first simulated day of every run.
type Resetter interface {
	Reset()
}
