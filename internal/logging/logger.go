// Package logging provides structured logging for para using log/slog.
//
// Usage:
//
//	if err := logging.Init("daemon"); err != nil {
//	    // handle error
//	}
//	defer logging.Close()
//
//	ctx = logging.WithRepo(ctx, repoRoot)
//	ctx = logging.WithSession(ctx, sessionName)
//	logging.Info(ctx, "signal processed", slog.String("signal", "finish"))
package logging

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/para-dev/para/internal/paths"
	"github.com/para-dev/para/internal/validation"
)

// LogLevelEnvVar is the environment variable that controls log level.
const LogLevelEnvVar = "PARA_LOG_LEVEL"

var (
	logger       *slog.Logger
	logFile      *os.File
	logBufWriter *bufio.Writer
	currentName  string
	mu           sync.RWMutex
)

type ctxKey int

const (
	repoKey ctxKey = iota
	sessionKey
	componentKey
)

// WithRepo attaches a repository root to ctx for automatic inclusion in logs.
func WithRepo(ctx context.Context, repoRoot string) context.Context {
	return context.WithValue(ctx, repoKey, repoRoot)
}

// WithSession attaches a session name to ctx for automatic inclusion in logs.
func WithSession(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, sessionKey, name)
}

// WithComponent attaches a component tag (e.g. "daemon", "watcher") to ctx.
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// Init initializes the logger, writing JSON logs to
// ~/.para/logs/<name>.log (falls back to stderr on any failure
// so logging never blocks a core operation).
func Init(name string) error {
	if err := validation.ValidatePathSafeID(name); err != nil {
		return fmt.Errorf("invalid log name: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()

	if logBufWriter != nil {
		_ = logBufWriter.Flush()
		logBufWriter = nil
	}
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}

	level := parseLogLevel(os.Getenv(LogLevelEnvVar))

	stateDir, err := paths.UserStateDir()
	if err != nil {
		logger = createLogger(os.Stderr, level)
		return nil //nolint:nilerr // fall back to stderr, never block on logging
	}

	logsPath := filepath.Join(stateDir, "logs")
	if err := os.MkdirAll(logsPath, 0o750); err != nil {
		logger = createLogger(os.Stderr, level)
		return nil //nolint:nilerr
	}

	logFilePath := filepath.Join(logsPath, name+".log")
	f, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // name validated above
	if err != nil {
		logger = createLogger(os.Stderr, level)
		return nil //nolint:nilerr
	}

	logFile = f
	logBufWriter = bufio.NewWriterSize(f, 8192)
	logger = createLogger(logBufWriter, level)
	currentName = name

	return nil
}

// Close flushes and closes the log file. Safe to call multiple times.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if logBufWriter != nil {
		_ = logBufWriter.Flush()
		logBufWriter = nil
	}
	if logFile != nil {
		_ = logFile.Close()
		logFile = nil
	}
	currentName = ""
}

func getLogger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if logger == nil {
		return slog.Default()
	}
	return logger
}

func createLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func Debug(ctx context.Context, msg string, attrs ...any) { log(ctx, slog.LevelDebug, msg, attrs...) }
func Info(ctx context.Context, msg string, attrs ...any)  { log(ctx, slog.LevelInfo, msg, attrs...) }
func Warn(ctx context.Context, msg string, attrs ...any)  { log(ctx, slog.LevelWarn, msg, attrs...) }
func Error(ctx context.Context, msg string, attrs ...any) { log(ctx, slog.LevelError, msg, attrs...) }

func log(ctx context.Context, level slog.Level, msg string, attrs ...any) {
	l := getLogger()

	var allAttrs []any
	if ctx != nil {
		if v, ok := ctx.Value(repoKey).(string); ok && v != "" {
			allAttrs = append(allAttrs, slog.String("repo", v))
		}
		if v, ok := ctx.Value(sessionKey).(string); ok && v != "" {
			allAttrs = append(allAttrs, slog.String("session", v))
		}
		if v, ok := ctx.Value(componentKey).(string); ok && v != "" {
			allAttrs = append(allAttrs, slog.String("component", v))
		}
	}
	allAttrs = append(allAttrs, attrs...)

	l.Log(context.Background(), level, msg, allAttrs...)
}
