package indicators

import (
	"context"
	"fmt"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"

	"backtestEngine/internal/domain"
)

// MovingAverageType defines the type of moving average
type MovingAverageType string

const (
	// SimpleMovingAverage represents a simple moving average
	SimpleMovingAverage MovingAverageType = "SMA"
	// ExponentialMovingAverage represents an exponential moving average
	ExponentialMovingAverage MovingAverageType = "EMA"
)

// MovingAverageConfig holds configuration for moving average indicators
type MovingAverageConfig struct {
	IndicatorConfig
	Type MovingAverageType
}

// MovingAverage implements both SMA and EMA indicators
type MovingAverage struct {
	BaseIndicator
	config MovingAverageConfig
}

// NewMovingAverage creates a new moving average indicator instance
func NewMovingAverage(config MovingAverageConfig) *MovingAverage {
	return &MovingAverage{
		BaseIndicator: BaseIndicator{Config: config.IndicatorConfig},
		config:        config,
	}
}

// Name returns the name of the indicator
func (m *MovingAverage) Name() string {
	return string(m.config.Type)
}

// Calculate computes the moving average of the closes at the last bar.
func (m *MovingAverage) Calculate(ctx context.Context, bars []domain.Bar) (float64, error) {
	if m.Config.Period <= 0 {
		return 0, fmt.Errorf("moving average period must be positive, got %d", m.Config.Period)
	}
	if len(bars) < m.Config.Period {
		return 0, fmt.Errorf("not enough data (%d) to calculate %s for period %d", len(bars), m.config.Type, m.Config.Period)
	}

	var series []float64
	switch m.config.Type {
	case SimpleMovingAverage:
		series = SMASeries(Closes(bars), m.Config.Period)
	case ExponentialMovingAverage:
		series = EMASeries(Closes(bars), m.Config.Period)
	default:
		return 0, fmt.Errorf("unsupported moving average type: %s", m.config.Type)
	}

	v, ok := last(series)
	if !ok {
		return 0, fmt.Errorf("%s produced no value for period %d", m.config.Type, m.Config.Period)
	}
	return v, nil
}

// SMASeries returns the simple moving average of values. The result starts at
// the first full window, so it has len(values)-period+1 entries.
func SMASeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	sma := trend.NewSmaWithPeriod[float64](period)
	return helper.ChanToSlice(sma.Compute(helper.SliceToChan(values)))
}

// EMASeries returns the exponential moving average of values, seeded after the
// first full window.
func EMASeries(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nil
	}
	ema := trend.NewEmaWithPeriod[float64](period)
	return helper.ChanToSlice(ema.Compute(helper.SliceToChan(values)))
}
