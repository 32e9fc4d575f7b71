package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Bar represents one instrument's trading data for one calendar day.
// Bars are created by a market data provider and never modified afterward.
type Bar struct {
	Symbol string          `json:"symbol"`
	Date   time.Time       `json:"date"` // Calendar day, midnight UTC
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// DayPrices is the price view for one simulated day, keyed by symbol.
// A symbol without a bar on that day is absent from the map.
type DayPrices map[string]Bar

// Get returns the bar for symbol, if the symbol traded that day.
func (p DayPrices) Get(symbol string) (Bar, bool) {
	b, ok := p[symbol]
	return b, ok
}

// InRange reports whether t falls on a calendar day between start and end inclusive.
func InRange(t, start, end time.Time) bool {
	d := DayOf(t.UTC())
	return !d.Before(DayOf(start)) && !d.After(DayOf(end))
}

// FilterRange returns the bars dated between start and end inclusive.
func FilterRange(bars []Bar, start, end time.Time) []Bar {
	out := make([]Bar, 0, len(bars))
	for _, b := range bars {
		if InRange(b.Date, start, end) {
			out = append(out, b)
		}
	}
	return out
}

// MergeBars merges incoming into existing by timestamp; incoming wins on
// collisions. The result is sorted ascending.
func MergeBars(existing, incoming []Bar) []Bar {
	byTime := make(map[int64]Bar, len(existing)+len(incoming))
	for _, b := range existing {
		byTime[b.Date.Unix()] = b
	}
	for _, b := range incoming {
		byTime[b.Date.Unix()] = b
	}
	out := make([]Bar, 0, len(byTime))
	for _, b := range byTime {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
