// Package logging holds the process logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var logger zerolog.Logger

func init() {
	logger = New(os.Stderr)
}

// New returns a human-readable logger writing to w.
func New(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger().
		Level(zerolog.InfoLevel)
}

// Logger returns the package logger.
func Logger() zerolog.Logger {
	return logger
}

// SetOutput redirects the package logger, keeping its level. The live
// viewer uses it to keep log lines off the terminal it draws on.
func SetOutput(w io.Writer) {
	lvl := logger.GetLevel()
	logger = New(w).Level(lvl)
}

// SetLevel parses one of trace, debug, info, warn, error or disabled.
func SetLevel(level string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger = logger.Level(lvl)
	return nil
}

// Nop discards everything.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
