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

// DipBuyName is the registry name of DipBuy.
const DipBuyName = "dip_buy"

// DipBuy buys a symbol after its close drops at least Dip below the previous
// close and exits at a take-profit or stop-loss level relative to the average
// entry. An optional ATR stop tightens the exit on volatile names.
type DipBuy struct {
	*BaseStrategy
	dip     decimal.Decimal
	sizer   *risk.Sizer
	atr     *indicators.ATR
	atrMult float64
	hist    *history

	prevClose map[string]decimal.Decimal
}

// NewDipBuy reads dip, take_profit, stop_loss, fraction, leverage, atr_period and atr_mult.
func NewDipBuy(params Params, logger ports.Logger) (*DipBuy, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for strategy")
	}
	if err := params.only(DipBuyName, "dip", "take_profit", "stop_loss", "fraction", "leverage", "atr_period", "atr_mult"); err != nil {
		return nil, err
	}

	dip := params.Float("dip", 0.03)
	if dip <= 0 || dip >= 1 {
		return nil, fmt.Errorf("%w: dip must be in (0, 1), got %f", ports.ErrInvalidRequest, dip)
	}

	sizer, err := risk.NewSizer(risk.SizingConfig{
		PositionSizePercent: params.Float("fraction", 0.2),
		Leverage:            params.Float("leverage", 1),
		CostBuffer:          0.002,
		StopLossPercent:     params.Float("stop_loss", 0.05),
		TakeProfitPercent:   params.Float("take_profit", 0.05),
	})
	if err != nil {
		return nil, err
	}

	s := &DipBuy{
		BaseStrategy: NewBaseStrategy(logger),
		dip:          decimal.NewFromFloat(dip),
		sizer:        sizer,
		atrMult:      params.Float("atr_mult", 2),
		prevClose:    make(map[string]decimal.Decimal),
	}

	if period := params.Int("atr_period", 0); period > 0 {
		if s.atrMult <= 0 {
			return nil, fmt.Errorf("%w: atr_mult must be positive, got %f", ports.ErrInvalidRequest, s.atrMult)
		}
		s.atr = indicators.NewATR(indicators.ATRConfig{IndicatorConfig: indicators.IndicatorConfig{Period: period}})
		s.hist = newHistory(period * 4)
	}
	return s, nil
}

// Name returns the name of the strategy
func (s *DipBuy) Name() string { return DipBuyName }

// Reset clears the previous-close memory and bar history.
func (s *DipBuy) Reset() {
	s.prevClose = make(map[string]decimal.Decimal)
	if s.hist != nil {
		s.hist.reset()
	}
}

// GenerateSignals emits exits for held symbols and dip entries for flat ones.
func (s *DipBuy) GenerateSignals(ctx context.Context, prices domain.DayPrices, sc ports.StrategyContext) ([]domain.Signal, error) {
	if s.hist != nil {
		s.hist.add(prices)
	}
	defer func() {
		for symbol, bar := range prices {
			s.prevClose[symbol] = bar.Close
		}
	}()

	book := newCashBook(sc.Cash, s.sizer.Config().CostBuffer)
	var signals []domain.Signal

	for _, symbol := range sortedSymbols(prices) {
		bar := prices[symbol]

		if held := sc.Position(symbol); held > 0 {
			entry := AverageEntry(sc.Trades, symbol)
			if reason := s.exitReason(ctx, symbol, entry, bar.Close); reason != "" {
				signals = append(signals, domain.Signal{
					Symbol:    symbol,
					Action:    domain.Sell,
					Quantity:  held,
					Rationale: fmt.Sprintf("%s: close %s vs entry %s", reason, bar.Close.StringFixed(2), entry.StringFixed(2)),
				})
			}
			continue
		}

		prev, ok := s.prevClose[symbol]
		if !ok || !prev.IsPositive() {
			continue
		}
		threshold := prev.Mul(decimal.NewFromInt(1).Sub(s.dip))
		if bar.Close.GreaterThan(threshold) {
			continue
		}

		qty := s.sizer.Quantity(sc.PortfolioValue, book.remaining, bar.Close)
		if qty <= 0 {
			s.logger.Debug(ctx, "Dip detected but no buying power left", map[string]interface{}{
				"symbol": symbol,
				"date":   sc.Date.Format(domain.DateLayout),
			})
			continue
		}
		book.reserve(qty, bar.Close)
		signals = append(signals, domain.Signal{
			Symbol:    symbol,
			Action:    domain.Buy,
			Quantity:  qty,
			Rationale: fmt.Sprintf("dip: close %s <= %s", bar.Close.StringFixed(2), threshold.StringFixed(2)),
		})
	}
	return signals, nil
}

func (s *DipBuy) exitReason(ctx context.Context, symbol string, entry, price decimal.Decimal) string {
	if !entry.IsPositive() {
		return ""
	}
	if reason := s.sizer.ExitReason(entry, price); reason != "" {
		return reason
	}
	if s.atr == nil {
		return ""
	}

	bars := s.hist.get(symbol)
	if len(bars) < s.atr.RequiredDataPoints() {
		return ""
	}
	atr, err := s.atr.Calculate(ctx, bars)
	if err != nil {
		s.logger.Debug(ctx, "ATR unavailable", map[string]interface{}{"symbol": symbol, "error": err.Error()})
		return ""
	}
	stop := entry.Sub(decimal.NewFromFloat(atr * s.atrMult))
	if price.LessThanOrEqual(stop) {
		return "atr stop"
	}
	return ""
}
