// Package logging holds the shared log flags and builds the slog logger
// used by the autoloop subcommands.
package logging

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"
)

var (
	flagLevel  string
	flagFormat string
)

// AddFlags registers the logging flags on the given flag set. The root
// command registers them as persistent flags.
func AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&flagLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.StringVar(&flagFormat, "log-format", "text", "Log format (text, json)")
}

// New builds a logger from the registered flags. Logs go to stderr so
// stdout stays clean for the agent's output.
func New() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(flagLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(flagFormat, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
