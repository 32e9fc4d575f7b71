package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtestEngine/internal/domain"
	"backtestEngine/internal/ports"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type klinesCall struct {
	symbol, interval string
	start, end       int64
}

type fakeFetcher struct {
	pages [][]*futures.Kline
	err   error
	calls []klinesCall
}

func (f *fakeFetcher) Klines(ctx context.Context, symbol, interval string, startMs, endMs int64, limit int) ([]*futures.Kline, error) {
	f.calls = append(f.calls, klinesCall{symbol, interval, startMs, endMs})
	if f.err != nil {
		return nil, f.err
	}
	if len(f.pages) == 0 {
		return nil, nil
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

func (f *fakeFetcher) Ping(ctx context.Context) error { return f.err }

func dailyKline(day time.Time, close string) *futures.Kline {
	return &futures.Kline{
		OpenTime:  day.UnixMilli(),
		CloseTime: day.Add(24*time.Hour - time.Millisecond).UnixMilli(),
		Open:      "100.5",
		High:      "110",
		Low:       "99.25",
		Close:     close,
		Volume:    "1234.75",
	}
}

func newTestClient(f *fakeFetcher) *Client {
	return &Client{fetcher: f, logger: &mockLogger{}}
}

func TestNew(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	c, err := New(Config{UseTestnet: true, Logger: &mockLogger{}})
	require.NoError(t, err)
	assert.NotNil(t, c.fetcher)
}

func TestTranslateBinanceKline(t *testing.T) {
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	bar, err := translateBinanceKline(dailyKline(day, "105.125"), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", bar.Symbol)
	assert.True(t, bar.Date.Equal(day))
	assert.Equal(t, "100.5", bar.Open.String())
	assert.Equal(t, "110", bar.High.String())
	assert.Equal(t, "99.25", bar.Low.String())
	assert.Equal(t, "105.125", bar.Close.String())
	assert.Equal(t, int64(1234), bar.Volume)

	_, err = translateBinanceKline(nil, "BTCUSDT")
	assert.Error(t, err)

	bad := dailyKline(day, "not-a-number")
	_, err = translateBinanceKline(bad, "BTCUSDT")
	assert.ErrorContains(t, err, "close")
}

func TestLoadPaginates(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	full := make([]*futures.Kline, 0, maxLimit)
	for i := 0; i < maxLimit; i++ {
		full = append(full, dailyKline(start.AddDate(0, 0, i), "100"))
	}
	tail := []*futures.Kline{dailyKline(start.AddDate(0, 0, maxLimit), "101")}
	f := &fakeFetcher{pages: [][]*futures.Kline{full, tail}}
	end := start.AddDate(0, 0, maxLimit+10)

	bars, err := newTestClient(f).Load(context.Background(), "btcusdt", start, end, domain.TimeframeDaily)
	require.NoError(t, err)

	assert.Len(t, bars, maxLimit+1)
	require.Len(t, f.calls, 2)
	assert.Equal(t, "BTCUSDT", f.calls[0].symbol)
	assert.Equal(t, "1d", f.calls[0].interval)
	assert.Equal(t, full[maxLimit-1].CloseTime+1, f.calls[1].start)
	assert.Equal(t, "btcusdt", bars[0].Symbol)
	assert.Equal(t, "101", bars[maxLimit].Close.String())
}

func TestLoadFiltersRange(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	f := &fakeFetcher{pages: [][]*futures.Kline{{
		dailyKline(start.AddDate(0, 0, -1), "1"),
		dailyKline(start, "2"),
		dailyKline(start.AddDate(0, 0, 1), "3"),
	}}}

	bars, err := newTestClient(f).Load(context.Background(), "ETHUSDT", start, start.AddDate(0, 0, 1), domain.TimeframeDaily)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, "2", bars[0].Close.String())
}

func TestLoadUnknownSymbolIsEmpty(t *testing.T) {
	f := &fakeFetcher{err: &common.APIError{Code: codeInvalidSymbol, Message: "Invalid symbol."}}
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	bars, err := newTestClient(f).Load(context.Background(), "NOPE", day, day, domain.TimeframeDaily)
	require.NoError(t, err)
	assert.Empty(t, bars)
	assert.NotNil(t, bars)
}

func TestLoadUnsupportedTimeframe(t *testing.T) {
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	_, err := newTestClient(&fakeFetcher{}).Load(context.Background(), "BTCUSDT", day, day, domain.Timeframe("3w"))
	assert.ErrorIs(t, err, ports.ErrUnsupportedTimeframe)
}

func TestHandleError(t *testing.T) {
	c := newTestClient(&fakeFetcher{})
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"rate limit", &common.APIError{Code: -1003}, ports.ErrRateLimited},
		{"recv window", &common.APIError{Code: -1021}, ports.ErrTimeout},
		{"bad key", &common.APIError{Code: -2015}, ports.ErrAuthenticationFailed},
		{"bad interval", &common.APIError{Code: -1120}, ports.ErrUnsupportedTimeframe},
		{"bad param", &common.APIError{Code: -1102}, ports.ErrInvalidRequest},
		{"other api", &common.APIError{Code: -1000}, ports.ErrDataSourceUnavailable},
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), ports.ErrTimeout},
		{"canceled", context.Canceled, ports.ErrContextCanceled},
		{"refused", errors.New("dial tcp: connection refused"), ports.ErrDataSourceUnavailable},
		{"unknown", errors.New("boom"), ports.ErrUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.handleError(context.Background(), tt.err, "op")
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.NoError(t, c.handleError(context.Background(), nil, "op"))
}

func TestPing(t *testing.T) {
	assert.NoError(t, newTestClient(&fakeFetcher{}).Ping(context.Background()))
	err := newTestClient(&fakeFetcher{err: errors.New("no such host")}).Ping(context.Background())
	assert.ErrorIs(t, err, ports.ErrDataSourceUnavailable)
}
