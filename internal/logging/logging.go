package logging

import (
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

var (
	level  slog.LevelVar
	logger atomic.Pointer[slog.Logger]
)

func init() {
	logger.Store(newLogger(os.Stderr, false))
}

func newLogger(w io.Writer, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: &level}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Setup replaces the process logger. Diagnostics go to w (stderr when nil)
// at Info, or Debug when verbose is set.
func Setup(verbose, json bool, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}
	logger.Store(newLogger(w, json))
}

// Verbose reports whether debug records are emitted.
func Verbose() bool {
	return level.Level() <= slog.LevelDebug
}

// Logger returns the current process logger.
func Logger() *slog.Logger {
	return logger.Load()
}

func Debug(msg string, args ...any) { Logger().Debug(msg, args...) }
func Info(msg string, args ...any)  { Logger().Info(msg, args...) }
func Warn(msg string, args ...any)  { Logger().Warn(msg, args...) }
func Error(msg string, args ...any) { Logger().Error(msg, args...) }

// With returns the current logger with extra attributes, such as a run ID
// or the case under test.
func With(args ...any) *slog.Logger {
	return Logger().With(args...)
}
