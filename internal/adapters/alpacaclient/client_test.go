package alpacaclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
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

type fakeFetcher struct {
	bars   []marketdata.Bar
	err    error
	symbol string
	req    marketdata.GetBarsRequest
}

func (f *fakeFetcher) GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error) {
	f.symbol = symbol
	f.req = req
	return f.bars, f.err
}

func TestNewValidates(t *testing.T) {
	_, err := New(Config{APIKey: "k", APISecret: "s"})
	assert.Error(t, err)

	_, err = New(Config{Logger: &mockLogger{}})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)

	c, err := New(Config{APIKey: "k", APISecret: "s", Logger: &mockLogger{}})
	require.NoError(t, err)
	assert.Equal(t, DefaultFeed, c.feed)
}

func TestLoadTranslatesBars(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	f := &fakeFetcher{bars: []marketdata.Bar{
		{Timestamp: time.Date(2024, 3, 4, 0, 0, 0, 0, ny), Open: 10.5, High: 11, Low: 10, Close: 10.75, Volume: 1200},
		{Timestamp: time.Date(2024, 3, 5, 0, 0, 0, 0, ny), Open: 10.75, High: 12, Low: 10.5, Close: 11.5, Volume: 900},
	}}
	c := &Client{fetcher: f, feed: "sip", logger: &mockLogger{}}
	start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	bars, err := c.Load(context.Background(), "aapl", start, end, domain.TimeframeDaily)
	require.NoError(t, err)

	assert.Equal(t, "AAPL", f.symbol)
	assert.Equal(t, "sip", f.req.Feed)
	assert.Equal(t, marketdata.OneDay, f.req.TimeFrame)
	require.Len(t, bars, 2)
	assert.Equal(t, "aapl", bars[0].Symbol)
	assert.True(t, bars[0].Date.Equal(start))
	assert.Equal(t, "10.75", bars[0].Close.String())
	assert.Equal(t, int64(900), bars[1].Volume)
}

func TestLoadErrors(t *testing.T) {
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"rate limited", errors.New("status code 429: too many requests"), ports.ErrRateLimited},
		{"forbidden", errors.New("status code 403: forbidden"), ports.ErrAuthenticationFailed},
		{"invalid", errors.New("status code 422: invalid symbol"), ports.ErrInvalidRequest},
		{"deadline", context.DeadlineExceeded, ports.ErrTimeout},
		{"other", errors.New("connection reset"), ports.ErrDataSourceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Client{fetcher: &fakeFetcher{err: tt.err}, feed: DefaultFeed, logger: &mockLogger{}}
			_, err := c.Load(context.Background(), "AAPL", day, day, domain.TimeframeDaily)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadUnsupportedTimeframe(t *testing.T) {
	c := &Client{fetcher: &fakeFetcher{}, feed: DefaultFeed, logger: &mockLogger{}}
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	_, err := c.Load(context.Background(), "AAPL", day, day, domain.Timeframe("5m"))
	assert.ErrorIs(t, err, ports.ErrUnsupportedTimeframe)
}

func TestLoadCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &Client{fetcher: &fakeFetcher{}, feed: DefaultFeed, logger: &mockLogger{}}
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	_, err := c.Load(ctx, "AAPL", day, day, domain.TimeframeDaily)
	assert.ErrorIs(t, err, context.Canceled)
}
