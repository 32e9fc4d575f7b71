package strategies

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"backtestEngine/internal/domain"
	"backtestEngine/internal/ports"
)

// BaseStrategy provides common functionality for strategies
type BaseStrategy struct {
	logger ports.Logger
}

// NewBaseStrategy creates a new base strategy instance
func NewBaseStrategy(logger ports.Logger) *BaseStrategy {
	return &BaseStrategy{
		logger: logger,
	}
}

// Params are the tunable numeric knobs of a strategy, keyed by name.
type Params map[string]float64

// Float returns the value of key, or def when absent.
func (p Params) Float(key string, def float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return def
}

// Int returns the value of key truncated to int, or def when absent.
func (p Params) Int(key string, def int) int {
	if v, ok := p[key]; ok {
		return int(v)
	}
	return def
}

// only rejects keys outside allowed so that typos in run files fail loudly.
func (p Params) only(strategy string, allowed ...string) error {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	var unknown []string
	for k := range p {
		if _, ok := set[k]; !ok {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("%w: %s does not accept parameters %v", ports.ErrInvalidRequest, strategy, unknown)
	}
	return nil
}

// history keeps a bounded per-symbol bar window built from the daily views.
type history struct {
	limit int
	bars  map[string][]domain.Bar
}

func newHistory(limit int) *history {
	return &history{limit: limit, bars: make(map[string][]domain.Bar)}
}

func (h *history) add(prices domain.DayPrices) {
	for symbol, bar := range prices {
		series := append(h.bars[symbol], bar)
		if h.limit > 0 && len(series) > h.limit {
			series = series[len(series)-h.limit:]
		}
		h.bars[symbol] = series
	}
}

func (h *history) get(symbol string) []domain.Bar { return h.bars[symbol] }

func (h *history) reset() { h.bars = make(map[string][]domain.Bar) }

// sortedSymbols returns the symbols of prices in lexical order so that signal
// emission order is deterministic.
func sortedSymbols(prices domain.DayPrices) []string {
	out := make([]string, 0, len(prices))
	for s := range prices {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// AverageEntry returns the average fill price of the position currently held
// in symbol, replaying trades since the last time it was flat. It returns zero
// when trades show no open position.
func AverageEntry(trades []domain.Trade, symbol string) decimal.Decimal {
	var qty int64
	cost := decimal.Zero
	for _, t := range trades {
		if t.Symbol != symbol {
			continue
		}
		switch t.Action {
		case domain.Buy:
			qty += t.Quantity
			cost = cost.Add(t.Price.Mul(decimal.NewFromInt(t.Quantity)))
		case domain.Sell:
			if qty == 0 {
				continue
			}
			// Sells keep the average: remove cost pro rata.
			avg := cost.Div(decimal.NewFromInt(qty))
			qty -= t.Quantity
			if qty <= 0 {
				qty = 0
				cost = decimal.Zero
				continue
			}
			cost = avg.Mul(decimal.NewFromInt(qty))
		}
	}
	if qty == 0 {
		return decimal.Zero
	}
	return cost.Div(decimal.NewFromInt(qty))
}

// cashBook tracks cash still uncommitted by signals emitted earlier the same day.
type cashBook struct {
	remaining decimal.Decimal
	buffer    decimal.Decimal
}

func newCashBook(cash decimal.Decimal, costBuffer float64) *cashBook {
	return &cashBook{remaining: cash, buffer: decimal.NewFromFloat(1 + costBuffer)}
}

func (c *cashBook) reserve(qty int64, price decimal.Decimal) {
	c.remaining = c.remaining.Sub(price.Mul(decimal.NewFromInt(qty)).Mul(c.buffer))
	if c.remaining.IsNegative() {
		c.remaining = decimal.Zero
	}
}
