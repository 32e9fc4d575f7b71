package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{" warn ", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestStdLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdLoggerTo(&buf, LevelWarn)

	l.Info(context.Background(), "hidden")
	assert.Empty(t, buf.String())

	l.Warn(context.Background(), "order rejected", map[string]interface{}{"symbol": "AAPL", "qty": 10})
	out := buf.String()
	assert.Contains(t, out, "[WARN] order rejected")
	assert.Contains(t, out, "| qty=10 symbol=AAPL")
}

func TestStdLogger_ErrorIncludesCause(t *testing.T) {
	var buf bytes.Buffer
	l := NewStdLoggerTo(&buf, LevelDebug)

	l.Error(context.Background(), errors.New("disk full"), "save failed")
	assert.Contains(t, buf.String(), "[ERROR] save failed | error: disk full")
}

func TestLogrusLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogrusLoggerTo(&buf, LevelInfo, true)

	l.Warn(context.Background(), "signal dropped", map[string]interface{}{"symbol": "MSFT"})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "signal dropped", entry["msg"])
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, "MSFT", entry["symbol"])
}

func TestLogrusLogger_DebugSuppressedAtInfo(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogrusLoggerTo(&buf, LevelInfo, true)

	l.Debug(context.Background(), "noise")
	assert.Zero(t, buf.Len())
}

func TestNew_SelectsImplementation(t *testing.T) {
	jsonLogger, ok := New(LevelInfo, " JSON ").(*LogrusLogger)
	require.True(t, ok)
	assert.IsType(t, &logrus.JSONFormatter{}, jsonLogger.entry.Formatter)

	textLogger, ok := New(LevelInfo, "logrus").(*LogrusLogger)
	require.True(t, ok)
	assert.IsType(t, &logrus.TextFormatter{}, textLogger.entry.Formatter)

	assert.IsType(t, &StdLogger{}, New(LevelInfo, "text"))
	assert.IsType(t, &StdLogger{}, New(LevelInfo, ""))
}
