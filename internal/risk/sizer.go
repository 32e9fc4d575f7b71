package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"backtestEngine/internal/ports"
)

// SizingConfig holds the position sizing and exit parameters used by strategies.
type SizingConfig struct {
	PositionSizePercent float64 // fraction of portfolio value committed per entry (e.g., 0.1)
	Leverage            float64 // multiplier on the committed fraction; buying power is still capped by cash
	CostBuffer          float64 // fraction of the price reserved for commission and slippage
	StopLossPercent     float64 // 0 disables the stop
	TakeProfitPercent   float64 // 0 disables the target
}

// DefaultSizingConfig commits 10% of equity, unlevered, with a 0.2% cost buffer.
func DefaultSizingConfig() SizingConfig {
	return SizingConfig{
		PositionSizePercent: 0.1,
		Leverage:            1,
		CostBuffer:          0.002,
	}
}

// Sizer converts portfolio state into whole-share order quantities and
// long-side exit levels.
type Sizer struct {
	config SizingConfig
}

// NewSizer validates config and creates a Sizer.
func NewSizer(config SizingConfig) (*Sizer, error) {
	if config.PositionSizePercent <= 0 || config.PositionSizePercent > 1 {
		return nil, fmt.Errorf("%w: position size percent must be in (0, 1], got %f", ports.ErrConfigurationError, config.PositionSizePercent)
	}
	if config.Leverage == 0 {
		config.Leverage = 1
	}
	if config.Leverage < 1 {
		return nil, fmt.Errorf("%w: leverage must be at least 1, got %f", ports.ErrConfigurationError, config.Leverage)
	}
	if config.CostBuffer < 0 || config.CostBuffer >= 1 {
		return nil, fmt.Errorf("%w: cost buffer must be in [0, 1), got %f", ports.ErrConfigurationError, config.CostBuffer)
	}
	if config.StopLossPercent < 0 || config.StopLossPercent >= 1 {
		return nil, fmt.Errorf("%w: stop loss percent must be in [0, 1), got %f", ports.ErrConfigurationError, config.StopLossPercent)
	}
	if config.TakeProfitPercent < 0 {
		return nil, fmt.Errorf("%w: take profit percent must not be negative, got %f", ports.ErrConfigurationError, config.TakeProfitPercent)
	}
	return &Sizer{config: config}, nil
}

// Config returns the sizing parameters.
func (s *Sizer) Config() SizingConfig { return s.config }

// Quantity returns the number of whole shares to buy at price.
// The target notional is equity * fraction * leverage, capped by
// AffordableQuantity for cash. A non-positive price yields 0.
func (s *Sizer) Quantity(equity, cash, price decimal.Decimal) int64 {
	affordable := s.AffordableQuantity(cash, price)
	if affordable <= 0 {
		return 0
	}

	target := equity.
		Mul(decimal.NewFromFloat(s.config.PositionSizePercent)).
		Mul(decimal.NewFromFloat(s.config.Leverage))
	qty := target.Div(s.unitCost(price)).Floor().IntPart()
	if qty < 0 {
		return 0
	}
	if qty > affordable {
		return affordable
	}
	return qty
}

// AffordableQuantity returns the most whole shares cash can pay for at price
// after reserving the cost buffer.
func (s *Sizer) AffordableQuantity(cash, price decimal.Decimal) int64 {
	if !price.IsPositive() || !cash.IsPositive() {
		return 0
	}
	return cash.Div(s.unitCost(price)).Floor().IntPart()
}

func (s *Sizer) unitCost(price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(1).Add(decimal.NewFromFloat(s.config.CostBuffer)))
}

// StopLoss returns the long stop price for entry, or zero when disabled.
func (s *Sizer) StopLoss(entry decimal.Decimal) decimal.Decimal {
	if s.config.StopLossPercent == 0 {
		return decimal.Zero
	}
	return entry.Mul(decimal.NewFromFloat(1 - s.config.StopLossPercent))
}

// TakeProfit returns the long target price for entry, or zero when disabled.
func (s *Sizer) TakeProfit(entry decimal.Decimal) decimal.Decimal {
	if s.config.TakeProfitPercent == 0 {
		return decimal.Zero
	}
	return entry.Mul(decimal.NewFromFloat(1 + s.config.TakeProfitPercent))
}

// ExitReason reports why a long position entered at entry should close at
// price, or "" to keep holding.
func (s *Sizer) ExitReason(entry, price decimal.Decimal) string {
	if tp := s.TakeProfit(entry); tp.IsPositive() && price.GreaterThanOrEqual(tp) {
		return "take profit"
	}
	if sl := s.StopLoss(entry); sl.IsPositive() && price.LessThanOrEqual(sl) {
		return "stop loss"
	}
	return ""
}
