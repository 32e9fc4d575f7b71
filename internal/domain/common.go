package domain

import "time"

// Action represents the side of a trade signal or fill (BUY or SELL).
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
)

// Valid reports whether the action is one of the supported sides.
func (a Action) Valid() bool {
	return a == Buy || a == Sell
}

// Timeframe is the bar interval requested from a market data provider (e.g., "1d").
type Timeframe string

const (
	TimeframeDaily  Timeframe = "1d"
	TimeframeHourly Timeframe = "1h"
)

// DateLayout is the calendar-day layout used for keys, CSV files and storage.
const DateLayout = "2006-01-02"

// DayOf truncates t to its calendar day at midnight UTC.
// The year/month/day triple is taken from t's own location, so an exchange-local
// timestamp keeps its local date.
func DayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a calendar day.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return DayOf(t), nil
}
