package logger

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// LogrusLogger implements the ports.Logger interface on top of logrus.
// It is used when structured (JSON) output is requested.
type LogrusLogger struct {
	entry *logrus.Logger
}

// NewLogrusLogger creates a logrus-backed logger writing to os.Stderr.
func NewLogrusLogger(level LogLevel, json bool) *LogrusLogger {
	return NewLogrusLoggerTo(os.Stderr, level, json)
}

// NewLogrusLoggerTo creates a logrus-backed logger writing to w.
func NewLogrusLoggerTo(w io.Writer, level LogLevel, json bool) *LogrusLogger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(toLogrusLevel(level))
	if json {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	}
	return &LogrusLogger{entry: l}
}

func toLogrusLevel(level LogLevel) logrus.Level {
	switch level {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func (l *LogrusLogger) with(fields []map[string]interface{}) *logrus.Entry {
	return l.entry.WithFields(logrus.Fields(mergeFields(fields)))
}

// Debug logs a message at Debug level.
func (l *LogrusLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.with(fields).WithContext(ctx).Debug(msg)
}

// Info logs a message at Info level.
func (l *LogrusLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.with(fields).WithContext(ctx).Info(msg)
}

// Warn logs a message at Warning level.
func (l *LogrusLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.with(fields).WithContext(ctx).Warn(msg)
}

// Error logs an error message at Error level.
func (l *LogrusLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	l.with(fields).WithContext(ctx).WithError(err).Error(msg)
}
