package observability

import (
	"log/slog"
	"os"
)

// NewLogger returns a JSON slog logger wrapped so that records emitted
// inside a traced request carry trace_id/span_id.
func NewLogger(env string) *slog.Logger {
	level := slog.LevelInfo

	if env == "dev" {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(NewTraceHandler(handler))
}
