// Package log builds the application's slog loggers.
//
// Loggers are injected through constructors, never pulled from globals.
// Components add their own context with logger.With("component", ...).
// Tests use NewNop or NewWithWriter with a bytes.Buffer to inspect output.
package log

import (
	"io"
	"log/slog"
	"os"
)

// Config controls handler construction.
type Config struct {
	// Level is the minimum level emitted. Zero value is slog.LevelInfo.
	Level slog.Level

	// JSON selects the JSON handler instead of the text handler.
	JSON bool

	// AddSource annotates records with file:line of the call site.
	AddSource bool
}

// New returns a logger writing to stderr with the given configuration.
func New(cfg Config) *slog.Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter returns a logger writing to w. Used by tests that capture
// output, and by commands that want logs on a specific stream.
func NewWithWriter(w io.Writer, cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}
	if cfg.JSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// NewNop returns a logger that discards everything. Test use only.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
