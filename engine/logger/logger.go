// Package logger holds the slog logger shared by every package of the render core. Logging is
// silent until SetLogger is called, so embedding applications see no output they did not ask for.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var current atomic.Pointer[slog.Logger]

func init() {
	current.Store(slog.New(nopHandler{}))
}

// SetLogger replaces the package logger. Passing nil restores the silent default.
// Safe for concurrent use.
//
// Parameters:
//   - l: the logger to install
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	current.Store(l)
}

// L returns the current package logger.
func L() *slog.Logger {
	return current.Load()
}

// Options configures a logger built by New.
type Options struct {
	// Level is one of "debug", "info", "warn" or "error". Empty means "info".
	Level string

	// File is the path of the rotating log file. Empty writes to stderr.
	File string

	// MaxSizeMB is the size at which the log file is rotated.
	MaxSizeMB int

	// MaxBackups is the number of rotated files to keep.
	MaxBackups int
}

// New builds a JSON slog logger from opts. The result is not installed; pass it to SetLogger.
//
// Parameters:
//   - opts: level and output configuration
//
// Returns:
//   - *slog.Logger: the configured logger
//   - io.Closer: closes the rotating file, a no-op for stderr
//   - error: if the level string is not recognised
func New(opts Options) (*slog.Logger, io.Closer, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
		}
		if lj.MaxSize == 0 {
			lj.MaxSize = 32 // MB
		}
		w, closer = lj, lj
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	return slog.New(h), closer, nil
}

// ParseLevel converts a level name into a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", level)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
