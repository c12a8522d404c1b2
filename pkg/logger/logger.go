// Package logger builds the slog loggers used across minerva. Console output goes
// through charmbracelet/log, which renders levels in colour when writing to a
// terminal and plain text otherwise.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Options configures NewLogger.
type Options struct {
	Level  slog.Level
	Format string // text (default), json or logfmt
	// Prefix is printed before every message, e.g. the subcommand name.
	Prefix          string
	ReportTimestamp bool
	ReportCaller    bool
}

// NewDefaultLogger returns a timestamped console logger on stderr.
func NewDefaultLogger(level slog.Level) *slog.Logger {
	return NewLogger(os.Stderr, Options{Level: level, ReportTimestamp: true})
}

// NewLogger returns a slog.Logger writing to w.
func NewLogger(w io.Writer, opts Options) *slog.Logger {
	return slog.New(NewHandler(w, opts))
}

// NewHandler returns the charmbracelet handler, for wrapping by other handlers
// such as the telemetry parquet handler.
func NewHandler(w io.Writer, opts Options) slog.Handler {
	formatter := log.TextFormatter
	switch strings.ToLower(opts.Format) {
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	}
	return log.NewWithOptions(w, log.Options{
		Level:           log.Level(opts.Level),
		Prefix:          opts.Prefix,
		ReportTimestamp: opts.ReportTimestamp,
		ReportCaller:    opts.ReportCaller,
		Formatter:       formatter,
	})
}

// ParseLevel maps debug/info/warn/error to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
