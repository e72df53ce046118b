package infrastructure

import (
	"log/slog"

	"github.com/google/uuid"
)

// NewRunID returns a unique identifier for one pipeline invocation. It ties
// log lines, the manifest, and the build summary to the same run.
func NewRunID() string {
	return uuid.NewString()
}

// WithRunID returns a logger that stamps every record with the run id.
func WithRunID(logger *slog.Logger, runID string) *slog.Logger {
	return logger.With(slog.String("run_id", runID))
}
