package ports

import (
	"context"
	"time"

	"backtestEngine/internal/domain"
)

// MarketDataProvider supplies historical bars for one symbol over a date range.
// Implementations return bars sorted ascending by date and an empty slice
// (not an error) for symbols they do not know.
type MarketDataProvider interface {
	Load(ctx context.Context, symbol string, start, end time.Time, timeframe domain.Timeframe) ([]domain.Bar, error)
}

// BarWriter persists bars, e.g. a local cache fed by a remote provider.
type BarWriter interface {
	WriteBars(ctx context.Context, bars []domain.Bar, timeframe domain.Timeframe) error
}
