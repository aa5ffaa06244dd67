package testutil

import (
	"io"
	"log/slog"
	"os"
)

// NewTestLogger returns a debug-level text logger writing to stderr, so log
// output shows up interleaved with test failures under -v.
func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// NewNullLogger returns a logger that discards everything.
func NewNullLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
