// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the slog handler.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Options configures a logger.
type Options struct {
	Format Format
	Level  slog.Level
	Output io.Writer // defaults to stderr
}

// OptionsForMode returns text output for dev and demo, JSON for prod.
func OptionsForMode(mode, level string) Options {
	opts := Options{Format: FormatText, Level: ParseLevel(level)}
	if mode == "prod" {
		opts.Format = FormatJSON
	}
	return opts
}

// ParseLevel maps a level name to a slog level; unknown names mean info.
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

// NewLogger creates a logger from opts.
func NewLogger(opts Options) *slog.Logger {
	return newLogger(opts, opts.Level)
}

func newLogger(opts Options, leveler slog.Leveler) *slog.Logger {
	output := opts.Output
	if output == nil {
		output = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: leveler}

	var handler slog.Handler
	if opts.Format == FormatJSON {
		handler = slog.NewJSONHandler(output, handlerOpts)
	} else {
		handler = slog.NewTextHandler(output, handlerOpts)
	}
	return slog.New(handler)
}

var (
	level     slog.LevelVar
	baseLevel = slog.LevelInfo
)

// Setup installs a logger built from opts as the slog default. Its level can
// later be changed with EnableDebug.
func Setup(opts Options) *slog.Logger {
	baseLevel = opts.Level
	level.Set(opts.Level)
	opts.Level = 0
	logger := newLogger(opts, &level)
	slog.SetDefault(logger)
	return logger
}

// EnableDebug lowers the default logger to DEBUG, or restores the level given to Setup.
func EnableDebug(on bool) {
	if on {
		level.Set(slog.LevelDebug)
		return
	}
	level.Set(baseLevel)
}
