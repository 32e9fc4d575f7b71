package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Metrics holds the summary statistics of a completed backtest run.
type Metrics struct {
	StartingCapital float64 `json:"startingCapital"`
	FinalValue      float64 `json:"finalValue"`
	TotalReturnPct  float64 `json:"totalReturnPct"`
	SharpeRatio     float64 `json:"sharpeRatio"`
	MaxDrawdownPct  float64 `json:"maxDrawdownPct"`
	TotalTrades     int     `json:"totalTrades"`
	TradingDays     int     `json:"tradingDays"`

	BuyTrades       int     `json:"buyTrades"`
	SellTrades      int     `json:"sellTrades"`
	TotalCommission float64 `json:"totalCommission"`
}

// Portfolio is the final ledger state of a run.
type Portfolio struct {
	Cash      decimal.Decimal  `json:"cash"`
	Positions map[string]int64 `json:"positions"`
}

// SkippedDay records a day on which the strategy failed and no trading happened.
type SkippedDay struct {
	Date   time.Time `json:"date"`
	Reason string    `json:"reason"`
}

// BacktestResult is the complete output of one simulation run.
type BacktestResult struct {
	RunID           string           `json:"runId"`
	Strategy        string           `json:"strategy"`
	Symbols         []string         `json:"symbols"`
	ExcludedSymbols []string         `json:"excludedSymbols,omitempty"`
	Start           time.Time        `json:"start"`
	End             time.Time        `json:"end"`
	Timeframe       Timeframe        `json:"timeframe"`
	CreatedAt       time.Time        `json:"createdAt"`
	Metrics         Metrics          `json:"metrics"`
	Trades          []Trade          `json:"trades"`
	EquityCurve     []EquitySnapshot `json:"equityCurve"`
	FinalPortfolio  Portfolio        `json:"finalPortfolio"`
	SkippedDays     []SkippedDay     `json:"skippedDays,omitempty"`
	DroppedSignals  int              `json:"droppedSignals"`
	RejectedOrders  int              `json:"rejectedOrders"`
}

// RunSummary is the persisted header of a run, without its trade log and curve.
type RunSummary struct {
	RunID     string    `json:"runId"`
	Strategy  string    `json:"strategy"`
	Symbols   []string  `json:"symbols"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Timeframe Timeframe `json:"timeframe"`
	CreatedAt time.Time `json:"createdAt"`
	Metrics   Metrics   `json:"metrics"`
}

// Summary returns the run header of r.
func (r *BacktestResult) Summary() RunSummary {
	return RunSummary{
		RunID:     r.RunID,
		Strategy:  r.Strategy,
		Symbols:   r.Symbols,
		Start:     r.Start,
		End:       r.End,
		Timeframe: r.Timeframe,
		CreatedAt: r.CreatedAt,
		Metrics:   r.Metrics,
	}
}
