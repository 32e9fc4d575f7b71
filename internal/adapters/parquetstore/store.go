// Package parquetstore keeps historical bars in Parquet files, one file per
// symbol and year:
//
//	<DataDir>/<timeframe>/<SYMBOL>/<YYYY>.parquet
package parquetstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/shopspring/decimal"

	"backtestEngine/internal/domain"
	"backtestEngine/internal/ports"
)

// Compile-time interface checks.
var (
	_ ports.MarketDataProvider = (*Store)(nil)
	_ ports.BarWriter          = (*Store)(nil)
)

// Store implements MarketDataProvider and BarWriter on Parquet files.
type Store struct {
	DataDir string
}

// New creates a Store rooted at dataDir.
func New(dataDir string) *Store {
	return &Store{DataDir: dataDir}
}

// BarRecord is the on-disk schema. Prices are decimal strings so that
// values round-trip exactly.
type BarRecord struct {
	Symbol    string `parquet:"symbol"`
	Timestamp int64  `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open      string `parquet:"open"`
	High      string `parquet:"high"`
	Low       string `parquet:"low"`
	Close     string `parquet:"close"`
	Volume    int64  `parquet:"volume"`
}

// Load reads bars for symbol between start and end inclusive. A symbol without
// files yields an empty slice.
func (s *Store) Load(_ context.Context, symbol string, start, end time.Time, timeframe domain.Timeframe) ([]domain.Bar, error) {
	var bars []domain.Bar
	for year := start.Year(); year <= end.Year(); year++ {
		path := s.barPath(symbol, timeframe, year)
		records, err := readParquetFile[BarRecord](path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}

		for _, r := range records {
			bar, err := toBar(symbol, r)
			if err != nil {
				return nil, fmt.Errorf("decoding %s: %w", path, err)
			}
			if domain.InRange(bar.Date, start, end) {
				bars = append(bars, bar)
			}
		}
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

// WriteBars merges bars into the per-symbol, per-year files. Existing rows
// with the same timestamp are replaced.
func (s *Store) WriteBars(_ context.Context, bars []domain.Bar, timeframe domain.Timeframe) error {
	if len(bars) == 0 {
		return nil
	}

	type key struct {
		symbol string
		year   int
	}
	groups := make(map[key][]BarRecord)
	for _, b := range bars {
		ts := b.Date.UTC()
		k := key{symbol: strings.ToUpper(b.Symbol), year: ts.Year()}
		groups[k] = append(groups[k], fromBar(b))
	}

	for k, records := range groups {
		path := s.barPath(k.symbol, timeframe, k.year)

		existing, err := readParquetFile[BarRecord](path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("reading existing bars for %s/%d: %w", k.symbol, k.year, err)
		}
		merged := mergeBarRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing bars for %s/%d: %w", k.symbol, k.year, err)
		}
	}
	return nil
}

func (s *Store) barPath(symbol string, timeframe domain.Timeframe, year int) string {
	return filepath.Join(s.DataDir, string(timeframe), strings.ToUpper(symbol), fmt.Sprintf("%d.parquet", year))
}

func fromBar(b domain.Bar) BarRecord {
	return BarRecord{
		Symbol:    strings.ToUpper(b.Symbol),
		Timestamp: b.Date.UTC().UnixMilli(),
		Open:      b.Open.String(),
		High:      b.High.String(),
		Low:       b.Low.String(),
		Close:     b.Close.String(),
		Volume:    b.Volume,
	}
}

func toBar(symbol string, r BarRecord) (domain.Bar, error) {
	bar := domain.Bar{
		Symbol: symbol,
		Date:   time.UnixMilli(r.Timestamp).UTC(),
		Volume: r.Volume,
	}
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"open", r.Open, &bar.Open},
		{"high", r.High, &bar.High},
		{"low", r.Low, &bar.Low},
		{"close", r.Close, &bar.Close},
	}
	for _, f := range fields {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return domain.Bar{}, fmt.Errorf("%s %q at %d: %w", f.name, f.raw, r.Timestamp, err)
		}
		*f.dst = v
	}
	return bar, nil
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return parquet.ReadFile[T](path)
}

// mergeBarRecords deduplicates by timestamp, preferring incoming records.
func mergeBarRecords(existing, incoming []BarRecord) []BarRecord {
	seen := make(map[int64]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, r := range incoming {
		seen[r.Timestamp] = r
	}

	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
