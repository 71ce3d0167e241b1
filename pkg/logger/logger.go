package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger instance with the specified log level
func New(level string) *Logger {
	var logLevel slog.Level

	switch strings.ToUpper(level) {
	case "DEBUG":
		logLevel = slog.LevelDebug
	case "INFO":
		logLevel = slog.LevelInfo
	case "WARN":
		logLevel = slog.LevelWarn
	case "ERROR":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	logger := slog.New(handler)

	return &Logger{Logger: logger}
}

// WithJID returns a logger with chat JID context
func (l *Logger) WithJID(jid string) *Logger {
	return &Logger{
		Logger: l.With("jid", jid),
	}
}

// WithAccountID returns a logger with account ID context
func (l *Logger) WithAccountID(accountID string) *Logger {
	return &Logger{
		Logger: l.With("account_id", accountID),
	}
}

// WithMessageID returns a logger with message ID context
func (l *Logger) WithMessageID(messageID string) *Logger {
	return &Logger{
		Logger: l.With("message_id", messageID),
	}
}

// WithError returns a logger with error context
func (l *Logger) WithError(err error) *Logger {
	return &Logger{
		Logger: l.With("error", err),
	}
}
