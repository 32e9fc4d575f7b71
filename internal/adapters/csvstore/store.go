// Package csvstore serves bars from CSV files named <SYMBOL>_<timeframe>.csv.
package csvstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"backtestEngine/internal/domain"
	"backtestEngine/internal/ports"
	"backtestEngine/internal/utils"
)

var (
	_ ports.MarketDataProvider = (*Store)(nil)
	_ ports.BarWriter          = (*Store)(nil)
)

// Store implements MarketDataProvider and BarWriter over a directory of CSV files.
type Store struct {
	Dir string
}

// New creates a Store reading from dir.
func New(dir string) *Store {
	return &Store{Dir: dir}
}

// Path returns the file holding symbol's bars for timeframe.
func (s *Store) Path(symbol string, timeframe domain.Timeframe) string {
	return filepath.Join(s.Dir, fmt.Sprintf("%s_%s.csv", strings.ToUpper(symbol), timeframe))
}

// Load returns the bars between start and end inclusive. A missing file is an
// unknown symbol and yields no bars.
func (s *Store) Load(_ context.Context, symbol string, start, end time.Time, timeframe domain.Timeframe) ([]domain.Bar, error) {
	bars, err := utils.ReadBarsFromCSV(s.Path(symbol, timeframe), symbol)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []domain.Bar{}, nil
		}
		return nil, fmt.Errorf("csv bars for %s: %w", symbol, err)
	}
	return domain.FilterRange(bars, start, end), nil
}

// WriteBars merges bars into each symbol's file.
func (s *Store) WriteBars(_ context.Context, bars []domain.Bar, timeframe domain.Timeframe) error {
	bySymbol := make(map[string][]domain.Bar)
	for _, b := range bars {
		sym := strings.ToUpper(b.Symbol)
		bySymbol[sym] = append(bySymbol[sym], b)
	}

	for symbol, incoming := range bySymbol {
		path := s.Path(symbol, timeframe)
		existing, err := utils.ReadBarsFromCSV(path, symbol)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("reading existing csv for %s: %w", symbol, err)
		}
		if err := utils.WriteBarsToCSV(domain.MergeBars(existing, incoming), path); err != nil {
			return fmt.Errorf("writing csv for %s: %w", symbol, err)
		}
	}
	return nil
}
