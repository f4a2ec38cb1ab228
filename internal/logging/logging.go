package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	pionlog "github.com/pion/logging"
)

// LevelTrace sits below debug for pion's chattiest output.
const LevelTrace = slog.Level(-8)

func levelFromEnv() slog.Level {
	level := slog.LevelError // default: production only shows errors

	if l, ok := os.LookupEnv("LOG_LEVEL"); ok {
		switch l {
		case "trace":
			level = LevelTrace
		case "dev", "development", "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn", "warning":
			level = slog.LevelWarn
		case "error", "production", "prod":
			level = slog.LevelError
		}
	}
	return level
}

// Init installs a text handler on stderr at the LOG_LEVEL level.
func Init() {
	setup(os.Stderr)
}

// InitFile sends logs to path instead of stderr, which would otherwise
// corrupt a full-screen UI. The caller closes the returned file.
func InitFile(path string) (io.Closer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	setup(f)
	return f, nil
}

func setup(w io.Writer) {
	logger := slog.New(
		slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: levelFromEnv(),
		}),
	)
	slog.SetDefault(logger)
}

// PionFactory adapts pion's leveled loggers onto the default slog logger.
func PionFactory() pionlog.LoggerFactory {
	return pionFactory{}
}

type pionFactory struct{}

func (pionFactory) NewLogger(scope string) pionlog.LeveledLogger {
	return &pionLogger{scope: scope}
}

// pionLogger resolves slog.Default on every call so it follows later Init calls.
type pionLogger struct {
	scope string
}

func (l *pionLogger) log(level slog.Level, msg string) {
	logger := slog.Default()
	ctx := context.Background()
	if !logger.Enabled(ctx, level) {
		return
	}
	logger.Log(ctx, level, msg, "scope", l.scope)
}

func (l *pionLogger) logf(level slog.Level, format string, args ...any) {
	if !slog.Default().Enabled(context.Background(), level) {
		return
	}
	l.log(level, fmt.Sprintf(format, args...))
}

func (l *pionLogger) Trace(msg string)                  { l.log(LevelTrace, msg) }
func (l *pionLogger) Tracef(format string, args ...any) { l.logf(LevelTrace, format, args...) }
func (l *pionLogger) Debug(msg string)                  { l.log(slog.LevelDebug, msg) }
func (l *pionLogger) Debugf(format string, args ...any) { l.logf(slog.LevelDebug, format, args...) }
func (l *pionLogger) Info(msg string)                   { l.log(slog.LevelInfo, msg) }
func (l *pionLogger) Infof(format string, args ...any)  { l.logf(slog.LevelInfo, format, args...) }
func (l *pionLogger) Warn(msg string)                   { l.log(slog.LevelWarn, msg) }
func (l *pionLogger) Warnf(format string, args ...any)  { l.logf(slog.LevelWarn, format, args...) }
func (l *pionLogger) Error(msg string)                  { l.log(slog.LevelError, msg) }
func (l *pionLogger) Errorf(format string, args ...any) { l.logf(slog.LevelError, format, args...) }
