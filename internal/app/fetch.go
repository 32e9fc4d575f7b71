package app

import (
	"context"
	"fmt"
	"time"

	"backtestEngine/internal/domain"
	"backtestEngine/internal/ports"
)

// FetchReport counts the bars downloaded per symbol.
type FetchReport struct {
	Bars   map[string]int
	Failed map[string]error
}

// FetchBars downloads bars for each symbol from source and writes them to every
// writer. A symbol that fails to download is reported and skipped; a write
// failure aborts.
func FetchBars(
	ctx context.Context,
	source ports.MarketDataProvider,
	writers []ports.BarWriter,
	symbols []string,
	start, end time.Time,
	timeframe domain.Timeframe,
	logger ports.Logger,
) (*FetchReport, error) {
	if source == nil || logger == nil || len(writers) == 0 {
		return nil, fmt.Errorf("%w: fetch needs a source, a logger and at least one writer", ports.ErrConfigurationError)
	}
	report := &FetchReport{Bars: make(map[string]int), Failed: make(map[string]error)}

	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("fetch canceled: %w", err)
		}
		bars, err := source.Load(ctx, symbol, start, end, timeframe)
		if err != nil {
			logger.Warn(ctx, "Failed to fetch bars", map[string]interface{}{"symbol": symbol, "error": err.Error()})
			report.Failed[symbol] = err
			continue
		}
		report.Bars[symbol] = len(bars)
		if len(bars) == 0 {
			logger.Warn(ctx, "No bars returned", map[string]interface{}{"symbol": symbol})
			continue
		}
		for _, w := range writers {
			if err := w.WriteBars(ctx, bars, timeframe); err != nil {
				return report, fmt.Errorf("writing %d bars for %s: %w", len(bars), symbol, err)
			}
		}
		logger.Info(ctx, "Fetched bars", map[string]interface{}{
			"symbol": symbol, "count": len(bars),
			"first": bars[0].Date.Format(domain.DateLayout), "last": bars[len(bars)-1].Date.Format(domain.DateLayout),
		})
	}
	return report, nil
}
