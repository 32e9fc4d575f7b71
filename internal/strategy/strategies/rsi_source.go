package strategies

import (
	"context"
	"fmt"
	"math"

	"backtestEngine/internal/domain"
	"backtestEngine/internal/ports"
	"backtestEngine/internal/strategy/indicators"
)

// RSISource recommends BUY when RSI is oversold and SELL when overbought.
// Confidence starts at 0.5 on the threshold and grows linearly to 1 at the
// extreme of the scale.
type RSISource struct {
	period int
	rsi    *indicators.RSI
}

// NewRSISource validates the thresholds (0 < oversold < overbought < 100).
func NewRSISource(period int, oversold, overbought float64) (*RSISource, error) {
	if period < 2 {
		return nil, fmt.Errorf("%w: RSI period must be at least 2, got %d", ports.ErrInvalidRequest, period)
	}
	if oversold <= 0 || overbought >= 100 || oversold >= overbought {
		return nil, fmt.Errorf("%w: need 0 < oversold < overbought < 100, got %f/%f", ports.ErrInvalidRequest, oversold, overbought)
	}
	return &RSISource{
		period: period,
		rsi: indicators.NewRSI(indicators.RSIConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: period},
			Oversold:        oversold,
			Overbought:      overbought,
		}),
	}, nil
}

// Recommend holds until enough history exists for the RSI.
func (r *RSISource) Recommend(ctx context.Context, symbol string, history []domain.Bar) (Recommendation, error) {
	if len(history) < r.rsi.RequiredDataPoints() {
		return Recommendation{}, nil
	}
	value, err := r.rsi.Calculate(ctx, history)
	if err != nil {
		return Recommendation{}, err
	}
	if math.IsNaN(value) {
		return Recommendation{}, nil
	}

	oversold, overbought := r.rsi.Levels()
	switch {
	case r.rsi.IsOversold(value):
		return Recommendation{
			Action:     domain.Buy,
			Confidence: 0.5 + 0.5*(oversold-value)/oversold,
			Reason:     fmt.Sprintf("RSI %.1f oversold", value),
		}, nil
	case r.rsi.IsOverbought(value):
		return Recommendation{
			Action:     domain.Sell,
			Confidence: 0.5 + 0.5*(value-overbought)/(100-overbought),
			Reason:     fmt.Sprintf("RSI %.1f overbought", value),
		}, nil
	}
	return Recommendation{}, nil
}
