package strategies

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"backtestEngine/internal/domain"
	"backtestEngine/internal/ports"
	"backtestEngine/internal/risk"
	"backtestEngine/internal/strategy/indicators"
)

// SMATrendName is the registry name of SMATrend.
const SMATrendName = "sma_trend"

// SMATrend goes long when the close crosses above its simple moving average
// and exits when the close falls back below it.
type SMATrend struct {
	*BaseStrategy
	ma    *indicators.MovingAverage
	sizer *risk.Sizer
	hist  *history
	above map[string]bool
}

// NewSMATrend reads period, fraction and leverage.
func NewSMATrend(params Params, logger ports.Logger) (*SMATrend, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for strategy")
	}
	if err := params.only(SMATrendName, "period", "fraction", "leverage"); err != nil {
		return nil, err
	}

	period := params.Int("period", 20)
	if period < 2 {
		return nil, fmt.Errorf("%w: period must be at least 2, got %d", ports.ErrInvalidRequest, period)
	}
	sizer, err := risk.NewSizer(risk.SizingConfig{
		PositionSizePercent: params.Float("fraction", 0.25),
		Leverage:            params.Float("leverage", 1),
		CostBuffer:          0.002,
	})
	if err != nil {
		return nil, err
	}

	return &SMATrend{
		BaseStrategy: NewBaseStrategy(logger),
		ma: indicators.NewMovingAverage(indicators.MovingAverageConfig{
			IndicatorConfig: indicators.IndicatorConfig{Period: period},
			Type:            indicators.SimpleMovingAverage,
		}),
		sizer: sizer,
		hist:  newHistory(period),
		above: make(map[string]bool),
	}, nil
}

// Name returns the name of the strategy
func (s *SMATrend) Name() string { return SMATrendName }

// Reset drops the close history and crossover state.
func (s *SMATrend) Reset() {
	s.hist.reset()
	s.above = make(map[string]bool)
}

// GenerateSignals emits a BUY on an upward cross and a SELL on a close below the average.
func (s *SMATrend) GenerateSignals(ctx context.Context, prices domain.DayPrices, sc ports.StrategyContext) ([]domain.Signal, error) {
	s.hist.add(prices)

	book := newCashBook(sc.Cash, s.sizer.Config().CostBuffer)
	var signals []domain.Signal

	for _, symbol := range sortedSymbols(prices) {
		bars := s.hist.get(symbol)
		if len(bars) < s.ma.RequiredDataPoints() {
			continue
		}
		avg, err := s.ma.Calculate(ctx, bars)
		if err != nil {
			return nil, fmt.Errorf("sma for %s: %w", symbol, err)
		}

		px := prices[symbol].Close
		sma := decimal.NewFromFloat(avg)
		isAbove := px.GreaterThan(sma)
		wasAbove, known := s.above[symbol]
		s.above[symbol] = isAbove

		held := sc.Position(symbol)
		switch {
		case held > 0 && !isAbove:
			signals = append(signals, domain.Signal{
				Symbol:    symbol,
				Action:    domain.Sell,
				Quantity:  held,
				Rationale: fmt.Sprintf("close %s below SMA %s", px.StringFixed(2), sma.StringFixed(2)),
			})
		case held == 0 && isAbove && known && !wasAbove:
			qty := s.sizer.Quantity(sc.PortfolioValue, book.remaining, px)
			if qty <= 0 {
				continue
			}
			book.reserve(qty, px)
			signals = append(signals, domain.Signal{
				Symbol:    symbol,
				Action:    domain.Buy,
				Quantity:  qty,
				Rationale: fmt.Sprintf("close %s crossed above SMA %s", px.StringFixed(2), sma.StringFixed(2)),
			})
		}
	}
	return signals, nil
}
