package logger

import (
	"context"
	"strings"

	"backtestEngine/internal/ports"
)

// New returns the logger for the configured output format: "json" is logrus
// with the JSON formatter, "logrus" is logrus with the text formatter, and
// "text" or anything else is the standard logger.
func New(level LogLevel, format string) ports.Logger {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return NewLogrusLogger(level, true)
	case "logrus":
		return NewLogrusLogger(level, false)
	default:
		return NewStdLogger(level)
	}
}

// Nop discards everything. Useful for sweeps and tests.
type Nop struct{}

func (Nop) Debug(context.Context, string, ...map[string]interface{})        {}
func (Nop) Info(context.Context, string, ...map[string]interface{})         {}
func (Nop) Warn(context.Context, string, ...map[string]interface{})         {}
func (Nop) Error(context.Context, error, string, ...map[string]interface{}) {}
