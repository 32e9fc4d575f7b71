package strategies

import (
	"context"
	"fmt"

	"backtestEngine/internal/domain"
	"backtestEngine/internal/ports"
	"backtestEngine/internal/risk"
	"backtestEngine/internal/strategy/indicators"
)

// SignalFollowerName is the registry name of SignalFollower.
const SignalFollowerName = "signal_follower"

// Recommendation is an opinion about one symbol for one day.
// An empty Action means hold.
type Recommendation struct {
	Action     domain.Action
	Confidence float64 // in [0, 1]
	Reason     string
}

// SignalSource produces recommendations from a symbol's bar history, the last
// element being today's bar. Implementations may block on I/O.
type SignalSource interface {
	Recommend(ctx context.Context, symbol string, history []domain.Bar) (Recommendation, error)
}

// SignalFollower acts on a SignalSource's recommendations whose confidence
// reaches the configured minimum. It buys only when flat and sells the whole
// position.
type SignalFollower struct {
	*BaseStrategy
	source        SignalSource
	minConfidence float64
	sizer         *risk.Sizer
	hist          *history
}

// SignalFollowerConfig configures a SignalFollower.
type SignalFollowerConfig struct {
	MinConfidence float64
	Sizing        risk.SizingConfig
	HistoryLimit  int // bars kept per symbol for the source
}

// NewSignalFollower wraps source.
func NewSignalFollower(source SignalSource, cfg SignalFollowerConfig, logger ports.Logger) (*SignalFollower, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for strategy")
	}
	if source == nil {
		return nil, fmt.Errorf("%w: signal source is required", ports.ErrInvalidRequest)
	}
	if cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		return nil, fmt.Errorf("%w: min confidence must be in [0, 1], got %f", ports.ErrInvalidRequest, cfg.MinConfidence)
	}
	sizer, err := risk.NewSizer(cfg.Sizing)
	if err != nil {
		return nil, err
	}
	return &SignalFollower{
		BaseStrategy:  NewBaseStrategy(logger),
		source:        source,
		minConfidence: cfg.MinConfidence,
		sizer:         sizer,
		hist:          newHistory(cfg.HistoryLimit),
	}, nil
}

// NewRSIFollower builds the registry flavour: a follower of an RSISource.
// It reads period, oversold, overbought, min_confidence, fraction and leverage.
func NewRSIFollower(params Params, logger ports.Logger) (*SignalFollower, error) {
	if err := params.only(SignalFollowerName, "period", "oversold", "overbought", "min_confidence", "fraction", "leverage"); err != nil {
		return nil, err
	}
	rsiDefaults := indicators.DefaultRSIConfig()
	source, err := NewRSISource(
		params.Int("period", rsiDefaults.Period),
		params.Float("oversold", rsiDefaults.Oversold),
		params.Float("overbought", rsiDefaults.Overbought),
	)
	if err != nil {
		return nil, err
	}
	sizing := risk.DefaultSizingConfig()
	sizing.PositionSizePercent = params.Float("fraction", 0.2)
	sizing.Leverage = params.Float("leverage", 1)

	return NewSignalFollower(source, SignalFollowerConfig{
		MinConfidence: params.Float("min_confidence", 0.6),
		Sizing:        sizing,
		HistoryLimit:  source.period * 10,
	}, logger)
}

// Name returns the name of the strategy
func (s *SignalFollower) Name() string { return SignalFollowerName }

// Reset drops the bar history handed to the source.
func (s *SignalFollower) Reset() { s.hist.reset() }

// GenerateSignals asks the source about every priced symbol. A source error
// fails the whole day.
func (s *SignalFollower) GenerateSignals(ctx context.Context, prices domain.DayPrices, sc ports.StrategyContext) ([]domain.Signal, error) {
	s.hist.add(prices)

	book := newCashBook(sc.Cash, s.sizer.Config().CostBuffer)
	var signals []domain.Signal

	for _, symbol := range sortedSymbols(prices) {
		rec, err := s.source.Recommend(ctx, symbol, s.hist.get(symbol))
		if err != nil {
			return nil, fmt.Errorf("signal source for %s: %w", symbol, err)
		}
		if rec.Action == "" || rec.Confidence < s.minConfidence {
			continue
		}

		held := sc.Position(symbol)
		rationale := fmt.Sprintf("%s (confidence %.2f)", rec.Reason, rec.Confidence)

		switch rec.Action {
		case domain.Buy:
			if held > 0 {
				continue
			}
			px := prices[symbol].Close
			qty := s.sizer.Quantity(sc.PortfolioValue, book.remaining, px)
			if qty <= 0 {
				continue
			}
			book.reserve(qty, px)
			signals = append(signals, domain.Signal{Symbol: symbol, Action: domain.Buy, Quantity: qty, Rationale: rationale})
		case domain.Sell:
			if held <= 0 {
				continue
			}
			signals = append(signals, domain.Signal{Symbol: symbol, Action: domain.Sell, Quantity: held, Rationale: rationale})
		default:
			s.logger.Warn(ctx, "Signal source returned unknown action", map[string]interface{}{
				"symbol": symbol,
				"action": string(rec.Action),
			})
		}
	}
	return signals, nil
}
