package backtesting

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"backtestEngine/internal/domain"
	"backtestEngine/internal/ports"
)

// NoDataError is returned when none of the requested symbols produced bars.
type NoDataError struct {
	Symbols   []string
	Start     time.Time
	End       time.Time
	Timeframe domain.Timeframe
	Causes    map[string]error
}

func (e *NoDataError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "no data for %s between %s and %s (%s)",
		strings.Join(e.Symbols, ","), e.Start.Format(domain.DateLayout), e.End.Format(domain.DateLayout), e.Timeframe)

	if len(e.Causes) > 0 {
		keys := make([]string, 0, len(e.Causes))
		for k := range e.Causes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %v", k, e.Causes[k]))
		}
		sb.WriteString(": ")
		sb.WriteString(strings.Join(parts, "; "))
	}
	return sb.String()
}

func (e *NoDataError) Is(target error) bool { return target == ports.ErrNoData }

// StrategyError wraps a failure of the strategy on a single day.
type StrategyError struct {
	Date time.Time
	Err  error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("strategy failed on %s: %v", e.Date.Format(domain.DateLayout), e.Err)
}

func (e *StrategyError) Unwrap() error { return e.Err }

func (e *StrategyError) Is(target error) bool { return target == ports.ErrStrategy }

// InvariantError signals a ledger state that must never happen, such as
// negative cash after an executed order. It aborts the run.
type InvariantError struct {
	Date   time.Time
	Detail string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("ledger invariant violated on %s: %s", e.Date.Format(domain.DateLayout), e.Detail)
}

func (e *InvariantError) Is(target error) bool { return target == ports.ErrInvariant }
