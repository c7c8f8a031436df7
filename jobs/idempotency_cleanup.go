package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/warelane/warelane/internal/shared"
)

const defaultIdempotencyMaxAge = 7 * 24 * time.Hour

// NewIdempotencyCleanupHandler prunes idempotency keys older than the
// payload's retention window.
func NewIdempotencyCleanupHandler(store *shared.IdempotencyStore, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload IdempotencyCleanupPayload
		if len(t.Payload()) > 0 {
			if err := json.Unmarshal(t.Payload(), &payload); err != nil {
				return asynq.SkipRetry
			}
		}
		maxAge := payload.MaxAge
		if maxAge <= 0 {
			maxAge = defaultIdempotencyMaxAge
		}
		if err := store.Cleanup(ctx, maxAge); err != nil {
			logger.Error("idempotency cleanup", slog.Any("error", err))
			return err
		}
		logger.Info("idempotency cleanup done", slog.Duration("max_age", maxAge))
		return nil
	}
}
