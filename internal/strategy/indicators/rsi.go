package indicators

import (
	"context"
	"fmt"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"

	"backtestEngine/internal/domain"
)

// RSIConfig holds configuration for the RSI indicator
type RSIConfig struct {
	IndicatorConfig
	Overbought float64
	Oversold   float64
}

// DefaultRSIConfig returns the classic 14/70/30 settings.
func DefaultRSIConfig() RSIConfig {
	return RSIConfig{IndicatorConfig: IndicatorConfig{Period: 14}, Overbought: 70, Oversold: 30}
}

// RSI implements the Relative Strength Index indicator
type RSI struct {
	BaseIndicator
	config RSIConfig
}

// NewRSI creates a new RSI indicator instance
func NewRSI(config RSIConfig) *RSI {
	return &RSI{
		BaseIndicator: BaseIndicator{Config: config.IndicatorConfig},
		config:        config,
	}
}

// Name returns the name of the indicator
func (r *RSI) Name() string {
	return "RSI"
}

// RequiredDataPoints needs one bar more than the period to form Period changes.
func (r *RSI) RequiredDataPoints() int {
	return r.Config.Period + 1
}

// Calculate computes the RSI of the closes at the last bar.
func (r *RSI) Calculate(ctx context.Context, bars []domain.Bar) (float64, error) {
	if r.Config.Period <= 0 {
		return 0, fmt.Errorf("RSI period must be positive, got %d", r.Config.Period)
	}
	if len(bars) < r.RequiredDataPoints() {
		return 0, fmt.Errorf("not enough data (%d) to calculate RSI for period %d", len(bars), r.Config.Period)
	}

	v, ok := last(RSISeries(Closes(bars), r.Config.Period))
	if !ok {
		return 0, fmt.Errorf("RSI produced no value for period %d", r.Config.Period)
	}
	return v, nil
}

// IsOverbought reports whether value is at or above the overbought level.
func (r *RSI) IsOverbought(value float64) bool {
	return value >= r.config.Overbought
}

// IsOversold reports whether value is at or below the oversold level.
func (r *RSI) IsOversold(value float64) bool {
	return value <= r.config.Oversold
}

// Levels returns the oversold and overbought thresholds.
func (r *RSI) Levels() (oversold, overbought float64) {
	return r.config.Oversold, r.config.Overbought
}

// RSISeries returns the relative strength index of values.
func RSISeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) <= period {
		return nil
	}
	rsi := momentum.NewRsiWithPeriod[float64](period)
	return helper.ChanToSlice(rsi.Compute(helper.SliceToChan(values)))
}
