package strategies

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"backtestEngine/internal/domain"
	"backtestEngine/internal/ports"
	"backtestEngine/internal/risk"
)

// DailyTargetName is the registry name of DailyTarget.
const DailyTargetName = "daily_target"

// DailyTarget sizes aggressively toward a daily portfolio return target.
// While the day-over-day return is below Target it opens positions in every
// flat priced symbol; on the day the target is met it liquidates.
type DailyTarget struct {
	*BaseStrategy
	target    decimal.Decimal
	sizer     *risk.Sizer
	prevValue decimal.Decimal
}

// NewDailyTarget reads target, fraction and leverage.
func NewDailyTarget(params Params, logger ports.Logger) (*DailyTarget, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for strategy")
	}
	if err := params.only(DailyTargetName, "target", "fraction", "leverage"); err != nil {
		return nil, err
	}
	target := params.Float("target", 0.01)
	if target <= 0 {
		return nil, fmt.Errorf("%w: target must be positive, got %f", ports.ErrInvalidRequest, target)
	}
	sizer, err := risk.NewSizer(risk.SizingConfig{
		PositionSizePercent: params.Float("fraction", 0.5),
		Leverage:            params.Float("leverage", 2),
		CostBuffer:          0.002,
	})
	if err != nil {
		return nil, err
	}
	return &DailyTarget{
		BaseStrategy: NewBaseStrategy(logger),
		target:       decimal.NewFromFloat(target),
		sizer:        sizer,
	}, nil
}

// Name returns the name of the strategy
func (s *DailyTarget) Name() string { return DailyTargetName }

// Reset forgets the previous day's value.
func (s *DailyTarget) Reset() { s.prevValue = decimal.Zero }

// GenerateSignals compares today's value with yesterday's.
func (s *DailyTarget) GenerateSignals(ctx context.Context, prices domain.DayPrices, sc ports.StrategyContext) ([]domain.Signal, error) {
	prev := s.prevValue
	s.prevValue = sc.PortfolioValue

	if prev.IsPositive() {
		ret := sc.PortfolioValue.Sub(prev).Div(prev)
		if ret.GreaterThanOrEqual(s.target) {
			s.logger.Debug(ctx, "Daily target reached, liquidating", map[string]interface{}{
				"date":   sc.Date.Format(domain.DateLayout),
				"return": ret.StringFixed(4),
			})
			var signals []domain.Signal
			for _, symbol := range sortedSymbols(prices) {
				if held := sc.Position(symbol); held > 0 {
					signals = append(signals, domain.Signal{
						Symbol:    symbol,
						Action:    domain.Sell,
						Quantity:  held,
						Rationale: fmt.Sprintf("daily return %s reached target", ret.StringFixed(4)),
					})
				}
			}
			return signals, nil
		}
	}

	book := newCashBook(sc.Cash, s.sizer.Config().CostBuffer)
	var signals []domain.Signal
	for _, symbol := range sortedSymbols(prices) {
		if sc.Position(symbol) > 0 {
			continue
		}
		px := prices[symbol].Close
		qty := s.sizer.Quantity(sc.PortfolioValue, book.remaining, px)
		if qty <= 0 {
			continue
		}
		book.reserve(qty, px)
		signals = append(signals, domain.Signal{
			Symbol:    symbol,
			Action:    domain.Buy,
			Quantity:  qty,
			Rationale: "below daily target",
		})
	}
	return signals, nil
}
