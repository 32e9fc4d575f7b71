package analytics

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"backtestEngine/internal/domain"
)

// TradingDaysPerYear is the annualisation factor applied to daily Sharpe ratios.
const TradingDaysPerYear = 252

// Input carries everything Calculate needs. FinalValue is passed explicitly
// because it is valued at each symbol's last known close, which may differ
// from the last snapshot's value.
type Input struct {
	StartingCapital decimal.Decimal
	FinalValue      decimal.Decimal
	Curve           []domain.EquitySnapshot
	Trades          []domain.Trade
	RiskFreeRate    float64
}

// Drawdown represents a drawdown period on the equity curve.
type Drawdown struct {
	StartTime  time.Time
	EndTime    time.Time // zero while the curve has not recovered
	StartValue float64
	Trough     float64
	Depth      float64
	Recovered  bool
}

// Calculate derives the run metrics. It is pure: the same input always yields
// the same output and nothing passed in is modified.
func Calculate(in Input) domain.Metrics {
	m := domain.Metrics{
		StartingCapital: in.StartingCapital.InexactFloat64(),
		FinalValue:      in.FinalValue.InexactFloat64(),
		TotalReturnPct:  TotalReturn(in.StartingCapital, in.FinalValue) * 100,
		SharpeRatio:     SharpeRatio(DailyReturns(in.Curve), in.RiskFreeRate),
		MaxDrawdownPct:  MaxDrawdown(in.Curve) * 100,
		TotalTrades:     len(in.Trades),
		TradingDays:     len(in.Curve),
	}

	commission := decimal.Zero
	for _, t := range in.Trades {
		switch t.Action {
		case domain.Buy:
			m.BuyTrades++
		case domain.Sell:
			m.SellTrades++
		}
		commission = commission.Add(t.Commission)
	}
	m.TotalCommission = commission.InexactFloat64()

	return m
}

// TotalReturn returns (final - start) / start as a fraction. A non-positive
// start yields 0.
func TotalReturn(start, final decimal.Decimal) float64 {
	if !start.IsPositive() {
		return 0
	}
	return final.Sub(start).Div(start).InexactFloat64()
}

// DailyReturns returns the simple return between consecutive snapshots.
// A step starting from a non-positive value has no defined return and is
// left out, so the result can be shorter than len(curve)-1. A zero value
// happens when cash is spent and every held symbol is missing from that
// day's prices.
func DailyReturns(curve []domain.EquitySnapshot) []float64 {
	if len(curve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Value.InexactFloat64()
		if prev <= 0 {
			continue
		}
		returns = append(returns, (curve[i].Value.InexactFloat64()-prev)/prev)
	}
	return returns
}

// SharpeRatio annualises the mean excess daily return over its sample standard
// deviation. riskFreeRate is annual and is spread evenly over trading days.
// It returns 0 with fewer than two returns or zero deviation.
func SharpeRatio(returns []float64, riskFreeRate float64) float64 {
	n := len(returns)
	if n < 2 {
		return 0
	}

	dailyRF := riskFreeRate / TradingDaysPerYear

	var sum float64
	for _, r := range returns {
		sum += r - dailyRF
	}
	mean := sum / float64(n)

	var sq float64
	for _, r := range returns {
		d := r - dailyRF - mean
		sq += d * d
	}
	stdDev := math.Sqrt(sq / float64(n-1))
	if stdDev == 0 || math.IsNaN(stdDev) {
		return 0
	}

	return mean / stdDev * math.Sqrt(TradingDaysPerYear)
}

// MaxDrawdown returns the largest peak-to-trough decline of the curve as a
// fraction of the running peak. An empty or monotonically rising curve yields 0.
func MaxDrawdown(curve []domain.EquitySnapshot) float64 {
	var peak, maxDD float64
	for i, s := range curve {
		v := s.Value.InexactFloat64()
		if i == 0 || v > peak {
			peak = v
			continue
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v) / peak; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// Drawdowns lists every peak-to-recovery period of the curve. A trailing
// period that has not recovered is returned with Recovered=false.
func Drawdowns(curve []domain.EquitySnapshot) []Drawdown {
	var (
		out     []Drawdown
		current *Drawdown
		peak    float64
		peakAt  time.Time
	)

	for i, s := range curve {
		v := s.Value.InexactFloat64()
		if i == 0 {
			peak, peakAt = v, s.Date
			continue
		}

		if v >= peak {
			if current != nil {
				current.EndTime = s.Date
				current.Recovered = true
				out = append(out, *current)
				current = nil
			}
			peak, peakAt = v, s.Date
			continue
		}

		if peak <= 0 {
			continue
		}
		depth := (peak - v) / peak
		if current == nil {
			current = &Drawdown{StartTime: peakAt, StartValue: peak, Trough: v, Depth: depth}
		} else if depth > current.Depth {
			current.Depth = depth
			current.Trough = v
		}
	}

	if current != nil {
		out = append(out, *current)
	}
	return out
}

// MonthlyReturns returns the return of each calendar month ("2006-01"),
// measured from the last value of the previous month (or the first snapshot)
// to the last value of the month.
func MonthlyReturns(curve []domain.EquitySnapshot) map[string]float64 {
	out := make(map[string]float64)
	if len(curve) == 0 {
		return out
	}

	base := curve[0].Value.InexactFloat64()
	month := curve[0].Date.Format("2006-01")
	last := base

	flush := func() {
		if base > 0 {
			out[month] = (last - base) / base
		}
	}

	for _, s := range curve[1:] {
		key := s.Date.Format("2006-01")
		if key != month {
			flush()
			base = last
			month = key
		}
		last = s.Value.InexactFloat64()
	}
	flush()

	return out
}
