package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EquitySnapshot records the portfolio state at one trading day's close,
// taken before that day's signals are executed.
type EquitySnapshot struct {
	Date      time.Time        `json:"date"`
	Value     decimal.Decimal  `json:"value"` // Cash + mark-to-market of symbols priced that day
	Cash      decimal.Decimal  `json:"cash"`
	Positions map[string]int64 `json:"positions"`
}

// CopyPositions returns an independent copy of a position map, dropping flat symbols.
func CopyPositions(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for sym, qty := range src {
		if qty != 0 {
			dst[sym] = qty
		}
	}
	return dst
}
