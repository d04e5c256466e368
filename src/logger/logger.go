package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// -----------------------------------------------------------------------------

// Logger is a thin printf-style facade over zap. Components format their own
// messages ("name : message"), so the sugared API is all that is needed.
type Logger struct {
	s *zap.SugaredLogger
}

// -----------------------------------------------------------------------------

// New creates a Logger at the given level ("debug", "info", "warning",
// "error"); unknown levels fall back to info.
func New(level string) *Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Logging must not take the process down; fall back to a bare logger.
		fmt.Fprintf(os.Stderr, "logger init failed, using no-op config: %v\n", err)
		z = zap.NewNop()
	}
	return &Logger{s: z.Sugar()}
}

// NewNop returns a logger that discards everything, for tests.
func NewNop() *Logger {
	return &Logger{s: zap.NewNop().Sugar()}
}

// -----------------------------------------------------------------------------

// Info logs a formatted message at info level.
func (l *Logger) Info(format string, args ...any) {
	l.s.Infof(format, args...)
}

// Warning logs a formatted message at warn level.
func (l *Logger) Warning(format string, args ...any) {
	l.s.Warnf(format, args...)
}

// Error logs a formatted message at error level.
func (l *Logger) Error(format string, args ...any) {
	l.s.Errorf(format, args...)
}

// Debug logs a formatted message at debug level.
func (l *Logger) Debug(format string, args ...any) {
	l.s.Debugf(format, args...)
}

// Fatal logs a formatted message at fatal level and exits the process.
func (l *Logger) Fatal(format string, args ...any) {
	l.s.Fatalf(format, args...)
}

// Sync flushes buffered log entries.
func (l *Logger) Sync() error {
	return l.s.Sync()
}

// -----------------------------------------------------------------------------

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
