package testutil

import (
	"log/slog"
	"testing"
)

// Logger returns a logger that forwards records to t.Log so output is
// attributed to the running test and hidden unless it fails.
func Logger(t *testing.T) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
