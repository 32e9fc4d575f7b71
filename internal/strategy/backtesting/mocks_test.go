package backtesting

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"backtestEngine/internal/domain"
	"backtestEngine/internal/ports"
)

type mockLogger struct {
	mu        sync.Mutex
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsgs = append(m.errorMsgs, msg)
}

// mockProvider serves fixed bars per symbol; errs takes precedence.
type mockProvider struct {
	bars map[string][]domain.Bar
	errs map[string]error
}

func (p *mockProvider) Load(ctx context.Context, symbol string, start, end time.Time, tf domain.Timeframe) ([]domain.Bar, error) {
	if err, ok := p.errs[symbol]; ok {
		return nil, err
	}
	return p.bars[symbol], nil
}

// funcStrategy adapts a closure to ports.Strategy and records every call.
type funcStrategy struct {
	fn     func(ctx context.Context, prices domain.DayPrices, sc ports.StrategyContext) ([]domain.Signal, error)
	calls  []ports.StrategyContext
	views  []domain.DayPrices
	resets int
}

func (s *funcStrategy) Name() string { return "func" }

func (s *funcStrategy) Reset() { s.resets++ }

func (s *funcStrategy) GenerateSignals(ctx context.Context, prices domain.DayPrices, sc ports.StrategyContext) ([]domain.Signal, error) {
	s.calls = append(s.calls, sc)
	s.views = append(s.views, prices)
	if s.fn == nil {
		return nil, nil
	}
	return s.fn(ctx, prices, sc)
}

func day(n int) time.Time {
	return time.Date(2024, 1, n, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func barsFor(symbol string, closes map[int]string) []domain.Bar {
	days := make([]int, 0, len(closes))
	for d := range closes {
		days = append(days, d)
	}
	sort.Ints(days)
	out := make([]domain.Bar, 0, len(days))
	for _, d := range days {
		c := dec(closes[d])
		out = append(out, domain.Bar{Symbol: symbol, Date: day(d), Open: c, High: c, Low: c, Close: c, Volume: 1000})
	}
	return out
}

func frictionless() Config {
	return Config{StartingCapital: decimal.NewFromInt(10000), CommissionRate: decimal.Zero, SlippageRate: decimal.Zero}
}
