package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Logger is the structured logging surface shared by all services.
type Logger interface {
	WithComponent(componentName string) *slog.Logger
	WithOperation(operationName string) *slog.Logger
	WithRunID(runID string) *slog.Logger
	WithSignalID(signalID int64) *slog.Logger
	WithError(err error) *slog.Logger
	LogStartup(serviceName string, version string, port int)
	LogShutdown(serviceName string, reason string)
	LogDatabaseOperation(operation string, table string, durationMs int64, rowsAffected int64)
	LogAnalysisRun(periodKind string, savedCount int, durationMs int64)
	Logger() *slog.Logger
}

// StandardLogger is a JSON slog logger with the analyzer's field conventions.
type StandardLogger struct {
	logger *slog.Logger
}

// NewStandardLogger creates a logger writing JSON records to stdout at the
// given level ("debug", "info", "warn", "error").
func NewStandardLogger(logLevel string) *StandardLogger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: getSlogLevel(logLevel),
	}))
	return &StandardLogger{logger: logger}
}

// NewTestLogger creates a logger discarding all output, for use in tests.
func NewTestLogger() *StandardLogger {
	return &StandardLogger{logger: slog.New(slog.DiscardHandler)}
}

func (l *StandardLogger) WithComponent(componentName string) *slog.Logger {
	return l.logger.With("component", componentName)
}

func (l *StandardLogger) WithOperation(operationName string) *slog.Logger {
	return l.logger.With("operation", operationName)
}

func (l *StandardLogger) WithRunID(runID string) *slog.Logger {
	return l.logger.With("run_id", runID)
}

func (l *StandardLogger) WithSignalID(signalID int64) *slog.Logger {
	return l.logger.With("signal_id", signalID)
}

func (l *StandardLogger) WithError(err error) *slog.Logger {
	return l.logger.With("error", err.Error())
}

func (l *StandardLogger) LogStartup(serviceName string, version string, port int) {
	l.logger.Info("Application startup",
		"service", serviceName,
		"version", version,
		"port", port,
		"event", "startup",
	)
}

func (l *StandardLogger) LogShutdown(serviceName string, reason string) {
	l.logger.Info("Application shutdown",
		"service", serviceName,
		"reason", reason,
		"event", "shutdown",
	)
}

func (l *StandardLogger) LogDatabaseOperation(operation string, table string, durationMs int64, rowsAffected int64) {
	l.logger.Info("Database operation",
		"operation", operation,
		"table", table,
		"duration_ms", durationMs,
		"rows_affected", rowsAffected,
		"event", "database",
	)
}

func (l *StandardLogger) LogAnalysisRun(periodKind string, savedCount int, durationMs int64) {
	l.logger.Info("Analysis run completed",
		"period_kind", periodKind,
		"saved_count", savedCount,
		"duration_ms", durationMs,
		"event", "analysis",
	)
}

func (l *StandardLogger) Logger() *slog.Logger {
	return l.logger
}

func getSlogLevel(logLevel string) slog.Level {
	switch strings.ToLower(logLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
