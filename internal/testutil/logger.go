package testutil

import "log/slog"

// DiscardLogger returns a logger that drops all output. Use it to keep
// test output quiet; components treat it like any other *slog.Logger.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
