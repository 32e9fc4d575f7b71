package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"backtestEngine/internal/domain"
)

var barHeader = []string{"date", "symbol", "open", "high", "low", "close", "volume"}

// WriteBarsToCSV writes bars with a date,symbol,open,high,low,close,volume header.
// Daily bars are written as YYYY-MM-DD, intraday bars as RFC3339.
func WriteBarsToCSV(bars []domain.Bar, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", filename, err)
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(barHeader); err != nil {
		return err
	}
	for _, b := range bars {
		if err := writer.Write([]string{
			formatBarTime(b.Date),
			b.Symbol,
			b.Open.String(),
			b.High.String(),
			b.Low.String(),
			b.Close.String(),
			strconv.FormatInt(b.Volume, 10),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatBarTime(t time.Time) string {
	t = t.UTC()
	if t.Equal(domain.DayOf(t)) {
		return t.Format(domain.DateLayout)
	}
	return t.Format(time.RFC3339)
}

// ReadBarsFromCSV reads bars for symbol from filename. Columns are located by
// header name (case-insensitive); "date", "timestamp", "time" or "open_time"
// name the time column and "symbol" is optional. Rows are returned sorted by date.
func ReadBarsFromCSV(filename, symbol string) ([]domain.Bar, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadBars(file, symbol)
}

// ReadBars is ReadBarsFromCSV over an arbitrary reader.
func ReadBars(r io.Reader, symbol string) ([]domain.Bar, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	timeCol := -1
	for _, name := range []string{"date", "timestamp", "time", "open_time"} {
		if i, ok := cols[name]; ok {
			timeCol = i
			break
		}
	}
	if timeCol < 0 {
		return nil, fmt.Errorf("csv header %v has no date column", header)
	}
	for _, name := range []string{"open", "high", "low", "close"} {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("csv header %v has no %s column", header, name)
		}
	}
	symCol, hasSym := cols["symbol"]
	volCol, hasVol := cols["volume"]

	var bars []domain.Bar
	line := 1
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		if hasSym && rec[symCol] != "" && !strings.EqualFold(rec[symCol], symbol) {
			continue
		}

		ts, err := parseBarTime(rec[timeCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		bar := domain.Bar{Symbol: symbol, Date: ts}
		fields := []struct {
			name string
			dst  *decimal.Decimal
		}{
			{"open", &bar.Open}, {"high", &bar.High}, {"low", &bar.Low}, {"close", &bar.Close},
		}
		for _, f := range fields {
			v, err := decimal.NewFromString(strings.TrimSpace(rec[cols[f.name]]))
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid %s %q: %w", line, f.name, rec[cols[f.name]], err)
			}
			*f.dst = v
		}

		if hasVol && strings.TrimSpace(rec[volCol]) != "" {
			vol, err := decimal.NewFromString(strings.TrimSpace(rec[volCol]))
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid volume %q: %w", line, rec[volCol], err)
			}
			bar.Volume = vol.IntPart()
		}

		bars = append(bars, bar)
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

func parseBarTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := domain.ParseDate(s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// WriteTradesToCSV writes the trade log of a run.
func WriteTradesToCSV(trades []domain.Trade, filename string) error {
	rows := make([][]string, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, []string{
			t.ID,
			t.Date.Format(domain.DateLayout),
			t.Symbol,
			string(t.Action),
			strconv.FormatInt(t.Quantity, 10),
			t.Price.String(),
			t.Commission.String(),
			t.Notional.String(),
			t.Rationale,
		})
	}
	return writeTable(filename, []string{"id", "date", "symbol", "action", "quantity", "price", "commission", "notional", "rationale"}, rows)
}

// WriteEquityCurveToCSV writes one row per snapshot. Positions are encoded as
// SYMBOL:QTY pairs separated by ';' in symbol order.
func WriteEquityCurveToCSV(curve []domain.EquitySnapshot, filename string) error {
	rows := make([][]string, 0, len(curve))
	for _, s := range curve {
		rows = append(rows, []string{
			s.Date.Format(domain.DateLayout),
			s.Value.String(),
			s.Cash.String(),
			encodePositions(s.Positions),
		})
	}
	return writeTable(filename, []string{"date", "value", "cash", "positions"}, rows)
}

func encodePositions(positions map[string]int64) string {
	keys := make([]string, 0, len(positions))
	for k := range positions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%d", k, positions[k]))
	}
	return strings.Join(parts, ";")
}

func writeTable(filename string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", filename, err)
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return err
	}
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return writer.Error()
}
