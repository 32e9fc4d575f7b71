package backtesting

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"backtestEngine/internal/domain"
	"backtestEngine/internal/id"
	"backtestEngine/internal/ports"
)

// Executor turns signals into fills against a Ledger, applying slippage and
// commission. Rejected orders leave the ledger untouched.
type Executor struct {
	commissionRate decimal.Decimal
	slippageRate   decimal.Decimal
	logger         ports.Logger
}

// NewExecutor validates the rates, which must lie in [0, 1).
func NewExecutor(commissionRate, slippageRate decimal.Decimal, logger ports.Logger) (*Executor, error) {
	if logger == nil {
		return nil, fmt.Errorf("%w: logger is required", ports.ErrConfigurationError)
	}
	if err := validateRate("commission rate", commissionRate); err != nil {
		return nil, err
	}
	if err := validateRate("slippage rate", slippageRate); err != nil {
		return nil, err
	}
	return &Executor{commissionRate: commissionRate, slippageRate: slippageRate, logger: logger}, nil
}

func validateRate(name string, rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: %s must be in [0, 1), got %s", ports.ErrConfigurationError, name, rate.String())
	}
	return nil
}

// Fill executes sig against ledger at the bar's price.
//
// A rejected order returns a nil trade and an error wrapping ports.ErrNoPrice,
// ports.ErrInsufficientFunds, ports.ErrNoPosition or ports.ErrInvalidRequest.
// An *InvariantError means the ledger is corrupt and the run must stop.
func (e *Executor) Fill(ctx context.Context, sig domain.Signal, bar *domain.Bar, ledger *Ledger) (*domain.Trade, error) {
	fields := map[string]interface{}{
		"symbol":   sig.Symbol,
		"action":   string(sig.Action),
		"quantity": sig.Quantity,
	}

	if bar == nil {
		e.logger.Warn(ctx, "No price for signal, skipping", fields)
		return nil, fmt.Errorf("fill %s: %w", sig.Symbol, ports.ErrNoPrice)
	}
	fields["date"] = bar.Date.Format(domain.DateLayout)

	if !sig.Action.Valid() {
		e.logger.Warn(ctx, "Unknown signal action, skipping", fields)
		return nil, fmt.Errorf("fill %s: action %q: %w", sig.Symbol, sig.Action, ports.ErrInvalidRequest)
	}
	if sig.Quantity <= 0 {
		e.logger.Warn(ctx, "Non-positive signal quantity, skipping", fields)
		return nil, fmt.Errorf("fill %s: quantity %d: %w", sig.Symbol, sig.Quantity, ports.ErrInvalidRequest)
	}

	ref := sig.Price
	if !ref.IsPositive() {
		ref = bar.Close
	}
	if !ref.IsPositive() {
		e.logger.Warn(ctx, "Reference price is not positive, skipping", fields)
		return nil, fmt.Errorf("fill %s: %w", sig.Symbol, ports.ErrNoPrice)
	}

	slip := ref.Mul(e.slippageRate)

	switch sig.Action {
	case domain.Buy:
		fill := ref.Add(slip)
		qty := decimal.NewFromInt(sig.Quantity)
		notional := qty.Mul(fill)
		commission := notional.Mul(e.commissionRate)
		required := notional.Add(commission)

		if required.GreaterThan(ledger.Cash()) {
			fields["required"] = required.String()
			fields["cash"] = ledger.Cash().String()
			e.logger.Warn(ctx, "Insufficient cash for buy, order rejected", fields)
			return nil, fmt.Errorf("fill %s: need %s, have %s: %w",
				sig.Symbol, required.String(), ledger.Cash().String(), ports.ErrInsufficientFunds)
		}

		if err := ledger.apply(bar.Date, sig.Symbol, required.Neg(), sig.Quantity); err != nil {
			return nil, err
		}
		return e.trade(sig, bar, sig.Quantity, fill, commission, notional), nil

	default: // domain.Sell
		held := ledger.Position(sig.Symbol)
		if held <= 0 {
			e.logger.Warn(ctx, "No position to sell, order rejected", fields)
			return nil, fmt.Errorf("fill %s: %w", sig.Symbol, ports.ErrNoPosition)
		}

		qtyN := sig.Quantity
		if qtyN > held {
			fields["held"] = held
			e.logger.Debug(ctx, "Sell quantity clamped to position", fields)
			qtyN = held
		}

		fill := ref.Sub(slip)
		qty := decimal.NewFromInt(qtyN)
		notional := qty.Mul(fill)
		commission := notional.Mul(e.commissionRate)

		if err := ledger.apply(bar.Date, sig.Symbol, notional.Sub(commission), -qtyN); err != nil {
			return nil, err
		}
		return e.trade(sig, bar, qtyN, fill, commission, notional), nil
	}
}

func (e *Executor) trade(sig domain.Signal, bar *domain.Bar, qty int64, fill, commission, notional decimal.Decimal) *domain.Trade {
	return &domain.Trade{
		ID:         id.At(bar.Date),
		Date:       bar.Date,
		Symbol:     sig.Symbol,
		Action:     sig.Action,
		Quantity:   qty,
		Price:      fill,
		Commission: commission,
		Notional:   notional,
		Rationale:  sig.Rationale,
	}
}
