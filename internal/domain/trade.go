package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade is the record of an executed order (a fill).
// Trades are appended to the run's trade log and never mutated.
type Trade struct {
	ID         string          `json:"id"`
	Date       time.Time       `json:"date"`
	Symbol     string          `json:"symbol"`
	Action     Action          `json:"action"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`      // Fill price after slippage
	Commission decimal.Decimal `json:"commission"` // Commission paid
	Notional   decimal.Decimal `json:"notional"`   // Quantity * Price
	Rationale  string          `json:"rationale,omitempty"`
}
