package backtesting

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"backtestEngine/internal/domain"
)

// Ledger is the mutable portfolio state of a single run.
// Only the Executor changes it.
type Ledger struct {
	cash      decimal.Decimal
	positions map[string]int64
}

// NewLedger creates a ledger holding startingCapital in cash and no positions.
func NewLedger(startingCapital decimal.Decimal) *Ledger {
	return &Ledger{
		cash:      startingCapital,
		positions: make(map[string]int64),
	}
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() decimal.Decimal { return l.cash }

// Position returns the shares held for symbol.
func (l *Ledger) Position(symbol string) int64 { return l.positions[symbol] }

// Positions returns a copy of the non-zero positions.
func (l *Ledger) Positions() map[string]int64 { return domain.CopyPositions(l.positions) }

// Value marks the portfolio to market using the closes present in prices.
// Held symbols missing from prices contribute nothing.
func (l *Ledger) Value(prices domain.DayPrices) decimal.Decimal {
	value := l.cash
	for symbol, qty := range l.positions {
		if qty == 0 {
			continue
		}
		if bar, ok := prices[symbol]; ok {
			value = value.Add(bar.Close.Mul(decimal.NewFromInt(qty)))
		}
	}
	return value
}

// ValueAt values the portfolio with an explicit close per symbol.
func (l *Ledger) ValueAt(closes map[string]decimal.Decimal) decimal.Decimal {
	value := l.cash
	for symbol, qty := range l.positions {
		if qty == 0 {
			continue
		}
		if px, ok := closes[symbol]; ok {
			value = value.Add(px.Mul(decimal.NewFromInt(qty)))
		}
	}
	return value
}

// apply adjusts cash and the symbol's position, then checks the invariants.
func (l *Ledger) apply(date time.Time, symbol string, cashDelta decimal.Decimal, qtyDelta int64) error {
	l.cash = l.cash.Add(cashDelta)
	l.positions[symbol] += qtyDelta
	if l.positions[symbol] == 0 {
		delete(l.positions, symbol)
	}
	return l.check(date)
}

func (l *Ledger) check(date time.Time) error {
	if l.cash.IsNegative() {
		return &InvariantError{Date: date, Detail: fmt.Sprintf("cash is negative: %s", l.cash.String())}
	}
	for symbol, qty := range l.positions {
		if qty < 0 {
			return &InvariantError{Date: date, Detail: fmt.Sprintf("position %s is negative: %d", symbol, qty)}
		}
	}
	return nil
}
