package analytics

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtestEngine/internal/domain"
)

func curveOf(values ...float64) []domain.EquitySnapshot {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.EquitySnapshot, len(values))
	for i, v := range values {
		out[i] = domain.EquitySnapshot{
			Date:  start.AddDate(0, 0, i),
			Value: decimal.NewFromFloat(v),
			Cash:  decimal.NewFromFloat(v),
		}
	}
	return out
}

func TestTotalReturn(t *testing.T) {
	tests := []struct {
		name  string
		start float64
		final float64
		want  float64
	}{
		{"gain", 10000, 10080, 0.008},
		{"loss", 10000, 9000, -0.1},
		{"flat", 10000, 10000, 0},
		{"zero start", 0, 500, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TotalReturn(decimal.NewFromFloat(tt.start), decimal.NewFromFloat(tt.final))
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestSharpeRatio_Degenerate(t *testing.T) {
	if got := SharpeRatio(nil, 0); got != 0 {
		t.Errorf("Expected 0 for no returns, got %f", got)
	}
	if got := SharpeRatio([]float64{0.01}, 0); got != 0 {
		t.Errorf("Expected 0 for a single return, got %f", got)
	}
	if got := SharpeRatio([]float64{0.01, 0.01, 0.01}, 0); got != 0 {
		t.Errorf("Expected 0 for constant returns, got %f", got)
	}
}

func TestSharpeRatio_KnownValue(t *testing.T) {
	returns := []float64{0.01, -0.01, 0.02}
	// mean = 0.02/3, sample variance = ((1/3)^2 + (5/3)^2 + (4/3)^2) * 1e-4 / 2 = 7e-4/3
	mean := 0.02 / 3
	std := math.Sqrt(7e-4 / 3)
	want := mean / std * math.Sqrt(252)

	assert.InDelta(t, want, SharpeRatio(returns, 0), 1e-9)
}

func TestSharpeRatio_RiskFreeLowersRatio(t *testing.T) {
	returns := []float64{0.01, -0.005, 0.02, 0.003}
	assert.Less(t, SharpeRatio(returns, 0.05), SharpeRatio(returns, 0))
}

func TestMaxDrawdown(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"single", []float64{100}, 0},
		{"monotonic rise", []float64{100, 101, 105, 110}, 0},
		{"halving", []float64{100, 50}, 0.5},
		{"recovery then deeper drop", []float64{100, 90, 120, 60, 130}, 0.5},
		{"end scenario", []float64{10000, 10000, 9990.1}, 0.00099},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, MaxDrawdown(curveOf(tt.values...)), 1e-12)
		})
	}
}

func TestMaxDrawdown_HalvingIsExact(t *testing.T) {
	assert.Equal(t, 0.5, MaxDrawdown(curveOf(100, 50)))
}

func TestDailyReturns(t *testing.T) {
	got := DailyReturns(curveOf(100, 110, 99))
	require.Len(t, got, 2)
	assert.InDelta(t, 0.1, got[0], 1e-12)
	assert.InDelta(t, -0.1, got[1], 1e-12)

	assert.Nil(t, DailyReturns(curveOf(100)))
}

func TestDailyReturns_SkipsStepFromZero(t *testing.T) {
	got := DailyReturns(curveOf(100, 0, 50, 55))
	require.Len(t, got, 2)
	assert.InDelta(t, -1.0, got[0], 1e-12)
	assert.InDelta(t, 0.1, got[1], 1e-12)
}

func TestCalculate_Counts(t *testing.T) {
	trades := []domain.Trade{
		{Action: domain.Buy, Commission: decimal.RequireFromString("9.009")},
		{Action: domain.Sell, Commission: decimal.RequireFromString("10.7892")},
	}
	m := Calculate(Input{
		StartingCapital: decimal.NewFromInt(10000),
		FinalValue:      decimal.NewFromInt(10080),
		Curve:           curveOf(10000, 10000, 9990.1),
		Trades:          trades,
	})

	assert.Equal(t, 10000.0, m.StartingCapital)
	assert.Equal(t, 10080.0, m.FinalValue)
	assert.InDelta(t, 0.8, m.TotalReturnPct, 1e-9)
	assert.Equal(t, 2, m.TotalTrades)
	assert.Equal(t, 1, m.BuyTrades)
	assert.Equal(t, 1, m.SellTrades)
	assert.Equal(t, 3, m.TradingDays)
	assert.InDelta(t, 19.7982, m.TotalCommission, 1e-9)
}

func TestCalculate_SingleSnapshot(t *testing.T) {
	m := Calculate(Input{
		StartingCapital: decimal.NewFromInt(10000),
		FinalValue:      decimal.NewFromInt(10000),
		Curve:           curveOf(10000),
	})
	assert.Zero(t, m.SharpeRatio)
	assert.Zero(t, m.MaxDrawdownPct)
	assert.Zero(t, m.TotalReturnPct)
}

func TestCalculate_Idempotent(t *testing.T) {
	in := Input{
		StartingCapital: decimal.NewFromInt(1000),
		FinalValue:      decimal.NewFromInt(1100),
		Curve:           curveOf(1000, 1020, 990, 1050, 1100),
		Trades:          []domain.Trade{{Action: domain.Buy, Commission: decimal.NewFromInt(1)}},
		RiskFreeRate:    0.02,
	}
	first := Calculate(in)
	second := Calculate(in)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Expected identical metrics, got %+v and %+v", first, second)
	}
}

func TestDrawdowns(t *testing.T) {
	periods := Drawdowns(curveOf(100, 80, 90, 110, 99))
	require.Len(t, periods, 2)

	assert.True(t, periods[0].Recovered)
	assert.InDelta(t, 0.2, periods[0].Depth, 1e-12)
	assert.Equal(t, 80.0, periods[0].Trough)

	assert.False(t, periods[1].Recovered)
	assert.InDelta(t, 0.1, periods[1].Depth, 1e-12)
	assert.True(t, periods[1].EndTime.IsZero())
}

func TestMonthlyReturns(t *testing.T) {
	curve := []domain.EquitySnapshot{
		{Date: time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC), Value: decimal.NewFromInt(100)},
		{Date: time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), Value: decimal.NewFromInt(110)},
		{Date: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Value: decimal.NewFromInt(121)},
	}
	got := MonthlyReturns(curve)
	assert.InDelta(t, 0.1, got["2024-01"], 1e-12)
	assert.InDelta(t, 0.1, got["2024-02"], 1e-12)
}
