package optimization

import (
	"context"
	"fmt"
	"sync"
	"time"

	"backtestEngine/internal/domain"
	"backtestEngine/internal/ports"
)

type cacheKey struct {
	symbol     string
	start, end string
	timeframe  domain.Timeframe
}

type cacheEntry struct {
	mu     sync.Mutex
	loaded bool
	bars   []domain.Bar
}

// cachingProvider loads each (symbol, range) once; concurrent callers for the
// same key wait on the load in progress. Only successful loads are kept, so a
// failed load is retried by the next run that asks for the symbol.
type cachingProvider struct {
	inner   ports.MarketDataProvider
	mu      sync.Mutex
	entries map[cacheKey]*cacheEntry
}

func newCachingProvider(inner ports.MarketDataProvider) *cachingProvider {
	return &cachingProvider{inner: inner, entries: make(map[cacheKey]*cacheEntry)}
}

func (c *cachingProvider) Load(ctx context.Context, symbol string, start, end time.Time, timeframe domain.Timeframe) ([]domain.Bar, error) {
	key := cacheKey{symbol: symbol, start: start.Format(time.RFC3339), end: end.Format(time.RFC3339), timeframe: timeframe}

	c.mu.Lock()
	entry, ok := c.entries[key]
	if !ok {
		entry = &cacheEntry{}
		c.entries[key] = entry
	}
	c.mu.Unlock()

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if !entry.loaded {
		bars, err := c.inner.Load(ctx, symbol, start, end, timeframe)
		if err != nil {
			return nil, fmt.Errorf("cached load %s: %w", symbol, err)
		}
		entry.bars, entry.loaded = bars, true
	}
	out := make([]domain.Bar, len(entry.bars))
	copy(out, entry.bars)
	return out, nil
}
