package testutil

import "log/slog"

// DiscardLogger returns a slog.Logger that drops all output. Use it in
// tests to keep logs out of test output.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
