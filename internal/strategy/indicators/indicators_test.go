package indicators

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtestEngine/internal/domain"
)

func barsFromCloses(closes ...float64) []domain.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.Bar, len(closes))
	for i, c := range closes {
		px := decimal.NewFromFloat(c)
		out[i] = domain.Bar{
			Symbol: "TEST",
			Date:   start.AddDate(0, 0, i),
			Open:   px,
			High:   px.Add(decimal.NewFromInt(1)),
			Low:    px.Sub(decimal.NewFromInt(1)),
			Close:  px,
		}
	}
	return out
}

func zigzag(n int, up, down float64) []float64 {
	out := make([]float64, n)
	v := 100.0
	for i := range out {
		if i%2 == 0 {
			v += up
		} else {
			v -= down
		}
		out[i] = v
	}
	return out
}

func TestMovingAverage_Calculate(t *testing.T) {
	tests := []struct {
		name          string
		config        MovingAverageConfig
		bars          []domain.Bar
		expectedValue float64
		expectError   bool
	}{
		{
			name:          "SMA of last window",
			config:        MovingAverageConfig{IndicatorConfig: IndicatorConfig{Period: 3}, Type: SimpleMovingAverage},
			bars:          barsFromCloses(1, 2, 3, 4, 5),
			expectedValue: 4,
		},
		{
			name:          "EMA of constant series",
			config:        MovingAverageConfig{IndicatorConfig: IndicatorConfig{Period: 3}, Type: ExponentialMovingAverage},
			bars:          barsFromCloses(7, 7, 7, 7, 7, 7),
			expectedValue: 7,
		},
		{
			name:        "not enough data",
			config:      MovingAverageConfig{IndicatorConfig: IndicatorConfig{Period: 10}, Type: SimpleMovingAverage},
			bars:        barsFromCloses(1, 2, 3),
			expectError: true,
		},
		{
			name:        "invalid type",
			config:      MovingAverageConfig{IndicatorConfig: IndicatorConfig{Period: 3}, Type: "INVALID"},
			bars:        barsFromCloses(1, 2, 3),
			expectError: true,
		},
		{
			name:        "zero period",
			config:      MovingAverageConfig{Type: SimpleMovingAverage},
			bars:        barsFromCloses(1, 2, 3),
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ma := NewMovingAverage(tt.config)
			value, err := ma.Calculate(context.Background(), tt.bars)

			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.expectedValue, value, 1e-4)
		})
	}
}

func TestMovingAverage_Name(t *testing.T) {
	assert.Equal(t, "SMA", NewMovingAverage(MovingAverageConfig{Type: SimpleMovingAverage}).Name())
	assert.Equal(t, "EMA", NewMovingAverage(MovingAverageConfig{Type: ExponentialMovingAverage}).Name())
}

func TestSMASeries_Length(t *testing.T) {
	got := SMASeries([]float64{1, 2, 3, 4, 5}, 2)
	require.Len(t, got, 4)
	assert.InDelta(t, 1.5, got[0], 1e-9)
	assert.InDelta(t, 4.5, got[3], 1e-9)

	assert.Nil(t, SMASeries([]float64{1}, 2))
}

func TestRSI_Direction(t *testing.T) {
	rsi := NewRSI(DefaultRSIConfig())
	ctx := context.Background()

	up, err := rsi.Calculate(ctx, barsFromCloses(zigzag(40, 3, 1)...))
	require.NoError(t, err)
	assert.Greater(t, up, 50.0)
	assert.LessOrEqual(t, up, 100.0)

	down, err := rsi.Calculate(ctx, barsFromCloses(zigzag(40, 1, 3)...))
	require.NoError(t, err)
	assert.Less(t, down, 50.0)
	assert.GreaterOrEqual(t, down, 0.0)
}

func TestRSI_NotEnoughData(t *testing.T) {
	rsi := NewRSI(DefaultRSIConfig())
	_, err := rsi.Calculate(context.Background(), barsFromCloses(1, 2, 3))
	assert.Error(t, err)
	assert.Equal(t, 15, rsi.RequiredDataPoints())
}

func TestRSI_Levels(t *testing.T) {
	rsi := NewRSI(DefaultRSIConfig())
	assert.True(t, rsi.IsOverbought(75))
	assert.False(t, rsi.IsOverbought(69.9))
	assert.True(t, rsi.IsOversold(30))
	assert.False(t, rsi.IsOversold(31))
	lo, hi := rsi.Levels()
	assert.Equal(t, 30.0, lo)
	assert.Equal(t, 70.0, hi)
}

func TestATR_ConstantRange(t *testing.T) {
	atr := NewATR(ATRConfig{IndicatorConfig: IndicatorConfig{Period: 5}})
	value, err := atr.Calculate(context.Background(), barsFromCloses(10, 10, 10, 10, 10, 10, 10, 10))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, value, 1e-9)
	assert.Equal(t, "ATR", atr.Name())

	_, err = atr.Calculate(context.Background(), barsFromCloses(10, 10))
	assert.Error(t, err)
}

func TestATR_GapWidensRange(t *testing.T) {
	atr := NewATR(ATRConfig{IndicatorConfig: IndicatorConfig{Period: 2}})
	// The gap from 10 to 20 makes the last true range |21-10| = 11.
	value, err := atr.Calculate(context.Background(), barsFromCloses(10, 10, 20))
	require.NoError(t, err)
	assert.InDelta(t, (2.0+11.0)/2, value, 1e-9)
}
