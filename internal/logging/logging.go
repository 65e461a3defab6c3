// Package logging builds the process logger.
package logging

import (
	"io"
	"log/slog"
)

// New returns a text logger on w. Verbose enables debug output; otherwise
// only warnings and errors are shown so they do not bury command output.
func New(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
