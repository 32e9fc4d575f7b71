package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"

	"backtestEngine/internal/domain"
	"backtestEngine/internal/ports"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	// maxLimit is the largest page the klines endpoint serves.
	maxLimit = 1500

	codeInvalidSymbol = -1121
)

var _ ports.MarketDataProvider = (*Client)(nil)

// klineFetcher is the slice of the futures API the adapter needs.
type klineFetcher interface {
	Klines(ctx context.Context, symbol, interval string, startMs, endMs int64, limit int) ([]*futures.Kline, error)
	Ping(ctx context.Context) error
}

type futuresFetcher struct {
	client *futures.Client
}

func (f *futuresFetcher) Klines(ctx context.Context, symbol, interval string, startMs, endMs int64, limit int) ([]*futures.Kline, error) {
	return f.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		StartTime(startMs).
		EndTime(endMs).
		Limit(limit).
		Do(ctx)
}

func (f *futuresFetcher) Ping(ctx context.Context) error {
	return f.client.NewPingService().Do(ctx)
}

// Client implements ports.MarketDataProvider on Binance USD-M futures klines.
type Client struct {
	fetcher klineFetcher
	logger  ports.Logger
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	Logger     ports.Logger
}

// New creates a new Binance client adapter. Keys are optional: klines are a
// public endpoint.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)

	// Set BaseURL directly instead of using global futures.UseTestnet
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
	} else {
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance client configured", map[string]interface{}{"baseURL": client.BaseURL, "testnet": cfg.UseTestnet})

	return &Client{fetcher: &futuresFetcher{client: client}, logger: cfg.Logger}, nil
}

// Ping checks the connectivity to the exchange API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	if err := c.fetcher.Ping(ctx); err != nil {
		return c.handleError(ctx, fmt.Errorf("ping failed: %w", err), op)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// Load fetches bars for symbol between start and end inclusive. A symbol the
// exchange does not list yields an empty slice.
func (c *Client) Load(ctx context.Context, symbol string, start, end time.Time, timeframe domain.Timeframe) ([]domain.Bar, error) {
	interval, err := intervalFor(timeframe)
	if err != nil {
		return nil, err
	}

	bars, err := c.GetKlinesRange(ctx, strings.ToUpper(symbol), interval, domain.DayOf(start), domain.DayOf(end).Add(24*time.Hour-time.Millisecond))
	if err != nil {
		var apiErr *common.APIError
		if errors.As(err, &apiErr) && apiErr.Code == codeInvalidSymbol {
			c.logger.Warn(ctx, "Binance does not list symbol", map[string]interface{}{"symbol": symbol})
			return []domain.Bar{}, nil
		}
		return nil, err
	}

	for i := range bars {
		bars[i].Symbol = symbol
		if timeframe == domain.TimeframeDaily {
			bars[i].Date = domain.DayOf(bars[i].Date)
		}
	}
	return domain.FilterRange(bars, start, end), nil
}

// GetKlinesRange pages through all klines for a symbol/interval between start and end time.
func (c *Client) GetKlinesRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]domain.Bar, error) {
	op := "GetKlinesRange"
	var all []domain.Bar
	from := start.UnixMilli()
	until := end.UnixMilli()

	for from <= until {
		klines, err := c.fetcher.Klines(ctx, symbol, interval, from, until, maxLimit)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		if len(klines) == 0 {
			break
		}
		for _, bk := range klines {
			bar, err := translateBinanceKline(bk, symbol)
			if err != nil {
				return nil, c.handleError(ctx, fmt.Errorf("failed to translate historical kline range: %w", err), op)
			}
			all = append(all, bar)
		}
		last := klines[len(klines)-1]
		if len(klines) < maxLimit || last.CloseTime < from {
			break
		}
		from = last.CloseTime + 1
	}

	c.logger.Debug(ctx, op+" finished", map[string]interface{}{"symbol": symbol, "interval": interval, "bars": len(all)})
	return all, nil
}

func intervalFor(tf domain.Timeframe) (string, error) {
	switch tf {
	case domain.TimeframeDaily:
		return "1d", nil
	case domain.TimeframeHourly:
		return "1h", nil
	default:
		return "", fmt.Errorf("binance timeframe %q: %w", tf, ports.ErrUnsupportedTimeframe)
	}
}

// handleError translates common Binance API errors into standardized ports errors.
// The original error stays in the chain so callers can still inspect the API code.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp for this request is outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1022, -2014, -2015: // Bad signature or API key
			mappedErr = ports.ErrAuthenticationFailed
		case -1120: // Invalid interval
			mappedErr = ports.ErrUnsupportedTimeframe
		case codeInvalidSymbol:
			mappedErr = ports.ErrNotFound
		case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1115, -1116, -1117, -1125, -1127, -1128, -1130: // Parameter/Request format errors
			mappedErr = ports.ErrInvalidRequest
		default:
			mappedErr = ports.ErrDataSourceUnavailable
		}
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		if apiErr.Code != codeInvalidSymbol {
			c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		}
		return finalErr
	}

	// Handle non-API errors (network, context cancellation, etc.)
	var finalErr error
	if errors.Is(err, context.DeadlineExceeded) {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	} else if errors.Is(err, context.Canceled) {
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	} else if strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset by peer") ||
		strings.Contains(err.Error(), "no such host") {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrDataSourceUnavailable, err)
	} else {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

func translateBinanceKline(bk *futures.Kline, symbol string) (domain.Bar, error) {
	if bk == nil {
		return domain.Bar{}, errors.New("received nil historical kline")
	}

	bar := domain.Bar{Symbol: symbol, Date: time.UnixMilli(bk.OpenTime).UTC()}
	prices := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"open", bk.Open, &bar.Open},
		{"high", bk.High, &bar.High},
		{"low", bk.Low, &bar.Low},
		{"close", bk.Close, &bar.Close},
	}
	for _, p := range prices {
		v, err := decimal.NewFromString(p.raw)
		if err != nil {
			return domain.Bar{}, fmt.Errorf("parsing %s price '%s': %w", p.name, p.raw, err)
		}
		*p.dst = v
	}

	vol, err := decimal.NewFromString(bk.Volume)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parsing volume '%s': %w", bk.Volume, err)
	}
	bar.Volume = vol.IntPart()

	return bar, nil
}
