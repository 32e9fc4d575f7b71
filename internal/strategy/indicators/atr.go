package indicators

import (
	"context"
	"fmt"
	"math"

	"backtestEngine/internal/domain"
)

// ATRConfig holds configuration for the Average True Range indicator
type ATRConfig struct {
	IndicatorConfig
}

// ATR implements the Average True Range indicator with Wilder smoothing.
type ATR struct {
	config ATRConfig
}

// NewATR creates a new Average True Range indicator instance
func NewATR(config ATRConfig) *ATR {
	return &ATR{
		config: config,
	}
}

// Name returns the name of the indicator
func (a *ATR) Name() string {
	return "ATR"
}

// RequiredDataPoints returns period+1 bars: every true range past the first needs a previous close.
func (a *ATR) RequiredDataPoints() int {
	return a.config.Period + 1
}

// Calculate computes the Average True Range at the last bar.
func (a *ATR) Calculate(ctx context.Context, bars []domain.Bar) (float64, error) {
	period := a.config.Period
	if period <= 0 {
		return 0, fmt.Errorf("ATR period must be positive, got %d", period)
	}
	if len(bars) < period+1 {
		return 0, fmt.Errorf("not enough data points for ATR calculation: need %d, got %d", period+1, len(bars))
	}

	trueRanges := make([]float64, len(bars))
	trueRanges[0] = bars[0].High.Sub(bars[0].Low).InexactFloat64()

	for i := 1; i < len(bars); i++ {
		high := bars[i].High.InexactFloat64()
		low := bars[i].Low.InexactFloat64()
		prevClose := bars[i-1].Close.InexactFloat64()

		trueRanges[i] = math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
	}

	// Seed with the simple mean of the first period ranges, then smooth.
	atr := 0.0
	for i := 0; i < period; i++ {
		atr += trueRanges[i]
	}
	atr /= float64(period)

	for i := period; i < len(bars); i++ {
		atr = (atr*float64(period-1) + trueRanges[i]) / float64(period)
	}

	return atr, nil
}
