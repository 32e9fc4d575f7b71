package domain

import "github.com/shopspring/decimal"

// Signal is an instruction emitted by a strategy for a single trading day.
// Signals are consumed immediately by execution and are not persisted.
type Signal struct {
	Symbol    string          `json:"symbol"`
	Action    Action          `json:"action"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"` // Reference price; zero means the day's close
	Rationale string          `json:"rationale"`
}
