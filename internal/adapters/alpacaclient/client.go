// Package alpacaclient loads US equity bars from the Alpaca market data API.
package alpacaclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"backtestEngine/internal/domain"
	"backtestEngine/internal/ports"
)

// DefaultFeed is the free IEX feed; "sip" needs a paid subscription.
const DefaultFeed = "iex"

var _ ports.MarketDataProvider = (*Client)(nil)

type barFetcher interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// Client implements ports.MarketDataProvider on Alpaca historical bars.
type Client struct {
	fetcher barFetcher
	feed    string
	logger  ports.Logger
}

// Config holds Alpaca credentials and feed selection.
type Config struct {
	APIKey    string
	APISecret string
	BaseURL   string // optional data API override
	Feed      string
	Logger    ports.Logger
}

// New creates an Alpaca market data client.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Alpaca client")
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("alpaca api key and secret: %w", ports.ErrConfigurationError)
	}
	opts := marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}
	if cfg.BaseURL != "" {
		opts.BaseURL = cfg.BaseURL
	}
	feed := cfg.Feed
	if feed == "" {
		feed = DefaultFeed
	}
	return &Client{fetcher: marketdata.NewClient(opts), feed: feed, logger: cfg.Logger}, nil
}

// Load fetches bars for symbol between start and end inclusive.
func (c *Client) Load(ctx context.Context, symbol string, start, end time.Time, timeframe domain.Timeframe) ([]domain.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("alpaca load %s: %w: %w", symbol, ports.ErrContextCanceled, err)
	}
	tf, err := timeFrameFor(timeframe)
	if err != nil {
		return nil, err
	}

	raw, err := c.fetcher.GetBars(strings.ToUpper(symbol), marketdata.GetBarsRequest{
		TimeFrame: tf,
		Start:     domain.DayOf(start),
		End:       domain.DayOf(end).Add(24*time.Hour - time.Nanosecond),
		Feed:      c.feed,
	})
	if err != nil {
		c.logger.Error(ctx, err, "Alpaca GetBars failed", map[string]interface{}{"symbol": symbol, "feed": c.feed})
		return nil, mapError(symbol, err)
	}

	bars := make([]domain.Bar, 0, len(raw))
	for _, ab := range raw {
		bars = append(bars, translateBar(symbol, ab, timeframe))
	}
	c.logger.Debug(ctx, "Alpaca bars loaded", map[string]interface{}{"symbol": symbol, "bars": len(bars)})
	return domain.FilterRange(bars, start, end), nil
}

func timeFrameFor(tf domain.Timeframe) (marketdata.TimeFrame, error) {
	switch tf {
	case domain.TimeframeDaily:
		return marketdata.OneDay, nil
	case domain.TimeframeHourly:
		return marketdata.OneHour, nil
	default:
		return marketdata.TimeFrame{}, fmt.Errorf("alpaca timeframe %q: %w", tf, ports.ErrUnsupportedTimeframe)
	}
}

func translateBar(symbol string, ab marketdata.Bar, tf domain.Timeframe) domain.Bar {
	date := ab.Timestamp.UTC()
	if tf == domain.TimeframeDaily {
		date = domain.DayOf(date)
	}
	return domain.Bar{
		Symbol: symbol,
		Date:   date,
		Open:   decimal.NewFromFloat(ab.Open),
		High:   decimal.NewFromFloat(ab.High),
		Low:    decimal.NewFromFloat(ab.Low),
		Close:  decimal.NewFromFloat(ab.Close),
		Volume: int64(ab.Volume),
	}
}

func mapError(symbol string, err error) error {
	msg := strings.ToLower(err.Error())
	var mapped error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		mapped = ports.ErrTimeout
	case errors.Is(err, context.Canceled):
		mapped = ports.ErrContextCanceled
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit"):
		mapped = ports.ErrRateLimited
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "forbidden"):
		mapped = ports.ErrAuthenticationFailed
	case strings.Contains(msg, "422") || strings.Contains(msg, "invalid"):
		mapped = ports.ErrInvalidRequest
	default:
		mapped = ports.ErrDataSourceUnavailable
	}
	return fmt.Errorf("alpaca bars %s: %w: %w", symbol, mapped, err)
}
