package ports

import "errors"

// Standard application-level errors.
// Adapters and the engine wrap underlying errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Simulation Errors
	ErrNoData            = errors.New("no market data available for any requested symbol")
	ErrStrategy          = errors.New("strategy failed to generate signals")
	ErrInvariant         = errors.New("internal ledger invariant violated")
	ErrNoPrice           = errors.New("no price data for symbol on this day")
	ErrInsufficientFunds = errors.New("insufficient funds for operation")
	ErrNoPosition        = errors.New("no position held to sell")

	// Data Source Errors
	ErrDataSourceUnavailable = errors.New("market data source is unavailable")
	ErrRateLimited           = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed  = errors.New("data source authentication failed (check API keys)")
	ErrUnsupportedTimeframe  = errors.New("timeframe not supported by data source")

	// Database Specific Errors
	ErrDuplicateEntry = errors.New("database record already exists")
	ErrDBConnection   = errors.New("database connection error")
	ErrQueryFailed    = errors.New("database query failed")
)
