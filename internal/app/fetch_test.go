package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtestEngine/internal/adapters/csvstore"
	"backtestEngine/internal/adapters/parquetstore"
	"backtestEngine/internal/domain"
	"backtestEngine/internal/ports"
)

type failingProvider struct {
	mockProvider
	fail map[string]error
}

func (p *failingProvider) Load(ctx context.Context, symbol string, start, end time.Time, tf domain.Timeframe) ([]domain.Bar, error) {
	if err, ok := p.fail[symbol]; ok {
		return nil, err
	}
	return p.mockProvider.Load(ctx, symbol, start, end, tf)
}

func TestFetchBarsWritesEveryStore(t *testing.T) {
	dir := t.TempDir()
	csvStore := csvstore.New(dir)
	pqStore := parquetstore.New(dir)
	source := &failingProvider{
		mockProvider: *testProvider(),
		fail:         map[string]error{"BAD": ports.ErrRateLimited},
	}

	report, err := FetchBars(context.Background(), source, []ports.BarWriter{csvStore, pqStore},
		[]string{"AAA", "BAD", "EMPTY"}, day(1), day(8), domain.TimeframeDaily, &mockLogger{})
	require.NoError(t, err)

	assert.Equal(t, 8, report.Bars["AAA"])
	assert.Equal(t, 0, report.Bars["EMPTY"])
	assert.True(t, errors.Is(report.Failed["BAD"], ports.ErrRateLimited))

	for _, store := range []ports.MarketDataProvider{csvStore, pqStore} {
		bars, err := store.Load(context.Background(), "AAA", day(1), day(8), domain.TimeframeDaily)
		require.NoError(t, err)
		require.Len(t, bars, 8)
		assert.True(t, bars[7].Close.Equal(testProvider().bars["AAA"][7].Close))
	}
}

func TestFetchBarsValidation(t *testing.T) {
	_, err := FetchBars(context.Background(), testProvider(), nil, []string{"AAA"}, day(1), day(2), domain.TimeframeDaily, &mockLogger{})
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

func TestFetchBarsCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := FetchBars(ctx, testProvider(), []ports.BarWriter{csvstore.New(t.TempDir())}, []string{"AAA"}, day(1), day(2), domain.TimeframeDaily, &mockLogger{})
	assert.ErrorIs(t, err, context.Canceled)
}
