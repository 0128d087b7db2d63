package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"lala/internal/logging"
	"lala/internal/store"
)

// Recover resets every asset left Processing by an earlier run back to
// Queued. It must run once at startup, before the worker starts and before
// commands are accepted.
func Recover(ctx context.Context, st *store.Store, logger *slog.Logger) (int64, error) {
	logger = logging.NewComponentLogger(logger, "recovery")
	count, err := st.ResetInterruptedJobs(ctx)
	if err != nil {
		return 0, fmt.Errorf("recover interrupted jobs: %w", err)
	}
	if count > 0 {
		logging.WarnWithContext(logger, "requeued interrupted jobs", "jobs_recovered",
			logging.Int64("count", count),
			logging.String(logging.FieldImpact, "interrupted jobs restart from the beginning"),
			logging.String(logging.FieldErrorHint, "previous run stopped while jobs were processing"),
		)
		return count, nil
	}
	logger.Info("no interrupted jobs", logging.String(logging.FieldEventType, "jobs_recovered"), logging.Int64("count", 0))
	return 0, nil
}
