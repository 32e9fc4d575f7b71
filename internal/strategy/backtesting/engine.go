package backtesting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"backtestEngine/internal/domain"
	"backtestEngine/internal/id"
	"backtestEngine/internal/ports"
	"backtestEngine/internal/strategy/analytics"
)

var errNoBars = errors.New("provider returned no bars in range")

// Config holds the simulation parameters shared by every run of an Engine.
type Config struct {
	StartingCapital decimal.Decimal
	CommissionRate  decimal.Decimal
	SlippageRate    decimal.Decimal
	RiskFreeRate    float64 // annual
}

// DefaultConfig returns 10000 starting capital, 0.1% commission and 0.05% slippage.
func DefaultConfig() Config {
	return Config{
		StartingCapital: decimal.NewFromInt(10000),
		CommissionRate:  decimal.RequireFromString("0.001"),
		SlippageRate:    decimal.RequireFromString("0.0005"),
	}
}

// Engine replays daily bars through a strategy. It keeps no state between
// runs, so one Engine may serve any number of runs, concurrently or not.
type Engine struct {
	cfg      Config
	provider ports.MarketDataProvider
	executor *Executor
	logger   ports.Logger
	now      func() time.Time
}

// NewEngine validates the configuration and dependencies.
func NewEngine(cfg Config, provider ports.MarketDataProvider, logger ports.Logger) (*Engine, error) {
	if provider == nil || logger == nil {
		return nil, fmt.Errorf("%w: missing required dependencies for Engine", ports.ErrConfigurationError)
	}
	if !cfg.StartingCapital.IsPositive() {
		return nil, fmt.Errorf("%w: starting capital must be positive, got %s",
			ports.ErrConfigurationError, cfg.StartingCapital.String())
	}
	executor, err := NewExecutor(cfg.CommissionRate, cfg.SlippageRate, logger)
	if err != nil {
		return nil, err
	}
	return &Engine{
		cfg:      cfg,
		provider: provider,
		executor: executor,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Config returns the engine's simulation parameters.
func (e *Engine) Config() Config { return e.cfg }

// Run simulates strategy over symbols between start and end inclusive.
//
// Symbols that fail to load or have no bars are excluded with a warning; if
// none remain a *NoDataError is returned. A strategy failure skips that day.
// Cancellation is honoured between days.
func (e *Engine) Run(
	ctx context.Context,
	strategy ports.Strategy,
	symbols []string,
	start, end time.Time,
	timeframe domain.Timeframe,
) (*domain.BacktestResult, error) {
	if strategy == nil {
		return nil, fmt.Errorf("%w: strategy is required", ports.ErrInvalidRequest)
	}
	symbols = uniqueSymbols(symbols)
	if len(symbols) == 0 {
		return nil, fmt.Errorf("%w: at least one symbol is required", ports.ErrInvalidRequest)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s is before start %s", ports.ErrInvalidRequest,
			end.Format(domain.DateLayout), start.Format(domain.DateLayout))
	}

	series, excluded, causes := e.loadAll(ctx, symbols, start, end, timeframe)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("backtest canceled while loading data: %w", err)
	}
	if len(series) == 0 {
		return nil, &NoDataError{Symbols: symbols, Start: start, End: end, Timeframe: timeframe, Causes: causes}
	}

	calendar := buildCalendar(series)

	if r, ok := strategy.(ports.Resetter); ok {
		r.Reset()
	}

	runID := id.New()
	ledger := NewLedger(e.cfg.StartingCapital)
	result := &domain.BacktestResult{
		RunID:           runID,
		Strategy:        strategy.Name(),
		Symbols:         loadedSymbols(symbols, series),
		ExcludedSymbols: excluded,
		Start:           start,
		End:             end,
		Timeframe:       timeframe,
		CreatedAt:       e.now().UTC(),
		Trades:          make([]domain.Trade, 0),
		EquityCurve:     make([]domain.EquitySnapshot, 0, len(calendar)),
	}
	lastClose := make(map[string]decimal.Decimal, len(series))

	e.logger.Info(ctx, "Starting backtest", map[string]interface{}{
		"runID":    runID,
		"strategy": result.Strategy,
		"symbols":  result.Symbols,
		"days":     len(calendar),
	})

	for dayIndex, date := range calendar {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest canceled at %s: %w", date.Format(domain.DateLayout), err)
		}

		prices := make(domain.DayPrices, len(series))
		for symbol, byDate := range series {
			if bar, ok := byDate[date.Unix()]; ok {
				prices[symbol] = bar
				lastClose[symbol] = bar.Close
			}
		}

		value := ledger.Value(prices)
		result.EquityCurve = append(result.EquityCurve, domain.EquitySnapshot{
			Date:      date,
			Value:     value,
			Cash:      ledger.Cash(),
			Positions: ledger.Positions(),
		})

		sc := ports.StrategyContext{
			Date:           date,
			DayIndex:       dayIndex,
			PortfolioValue: value,
			Cash:           ledger.Cash(),
			Positions:      ledger.Positions(),
			Trades:         append([]domain.Trade(nil), result.Trades...),
		}

		signals, err := generateSignals(ctx, strategy, prices, sc)
		if err != nil {
			serr := &StrategyError{Date: date, Err: err}
			e.logger.Warn(ctx, "Strategy failed, skipping day", map[string]interface{}{
				"date":  date.Format(domain.DateLayout),
				"error": err.Error(),
			})
			result.SkippedDays = append(result.SkippedDays, domain.SkippedDay{Date: date, Reason: serr.Error()})
			continue
		}

		for _, sig := range signals {
			bar, ok := prices.Get(sig.Symbol)
			if !ok {
				e.logger.Warn(ctx, "Signal for symbol without a bar today, dropped", map[string]interface{}{
					"date":   date.Format(domain.DateLayout),
					"symbol": sig.Symbol,
					"action": string(sig.Action),
				})
				result.DroppedSignals++
				continue
			}

			trade, err := e.executor.Fill(ctx, sig, &bar, ledger)
			if err != nil {
				var inv *InvariantError
				if errors.As(err, &inv) {
					e.logger.Error(ctx, err, "Aborting backtest", map[string]interface{}{"runID": runID})
					return nil, fmt.Errorf("backtest %s aborted: %w", runID, err)
				}
				result.RejectedOrders++
				continue
			}
			result.Trades = append(result.Trades, *trade)
		}
	}

	finalValue := ledger.ValueAt(lastClose)
	result.FinalPortfolio = domain.Portfolio{Cash: ledger.Cash(), Positions: ledger.Positions()}
	result.Metrics = analytics.Calculate(analytics.Input{
		StartingCapital: e.cfg.StartingCapital,
		FinalValue:      finalValue,
		Curve:           result.EquityCurve,
		Trades:          result.Trades,
		RiskFreeRate:    e.cfg.RiskFreeRate,
	})

	e.logger.Info(ctx, "Backtest finished", map[string]interface{}{
		"runID":          runID,
		"finalValue":     finalValue.String(),
		"totalReturnPct": result.Metrics.TotalReturnPct,
		"trades":         len(result.Trades),
		"skippedDays":    len(result.SkippedDays),
	})

	return result, nil
}

// generateSignals runs one day of the strategy. A panic is returned as an
// error so the day is skipped like any other strategy failure.
func generateSignals(
	ctx context.Context,
	strategy ports.Strategy,
	prices domain.DayPrices,
	sc ports.StrategyContext,
) (signals []domain.Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			signals, err = nil, fmt.Errorf("strategy panic: %v", r)
		}
	}()
	return strategy.GenerateSignals(ctx, prices, sc)
}

// loadAll fetches every symbol, indexing bars by their Unix timestamp.
func (e *Engine) loadAll(
	ctx context.Context,
	symbols []string,
	start, end time.Time,
	timeframe domain.Timeframe,
) (map[string]map[int64]domain.Bar, []string, map[string]error) {
	series := make(map[string]map[int64]domain.Bar, len(symbols))
	causes := make(map[string]error)
	var excluded []string

	for _, symbol := range symbols {
		bars, err := e.provider.Load(ctx, symbol, start, end, timeframe)
		if err == nil && len(bars) == 0 {
			err = errNoBars
		}
		if err != nil {
			e.logger.Warn(ctx, "Excluding symbol from backtest", map[string]interface{}{
				"symbol": symbol,
				"error":  err.Error(),
			})
			causes[symbol] = err
			excluded = append(excluded, symbol)
			continue
		}

		byDate := make(map[int64]domain.Bar, len(bars))
		for _, b := range bars {
			b.Date = b.Date.UTC()
			byDate[b.Date.Unix()] = b
		}
		series[symbol] = byDate
	}
	return series, excluded, causes
}

// buildCalendar returns the sorted union of every bar date.
func buildCalendar(series map[string]map[int64]domain.Bar) []time.Time {
	seen := make(map[int64]struct{})
	for _, byDate := range series {
		for ts := range byDate {
			seen[ts] = struct{}{}
		}
	}
	keys := make([]int64, 0, len(seen))
	for ts := range seen {
		keys = append(keys, ts)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	calendar := make([]time.Time, len(keys))
	for i, ts := range keys {
		calendar[i] = time.Unix(ts, 0).UTC()
	}
	return calendar
}

func uniqueSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func loadedSymbols(requested []string, series map[string]map[int64]domain.Bar) []string {
	out := make([]string, 0, len(series))
	for _, s := range requested {
		if _, ok := series[s]; ok {
			out = append(out, s)
		}
	}
	return out
}
