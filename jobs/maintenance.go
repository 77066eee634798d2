package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/lumbung-erp/lumbung-erp/internal/shared"
)

// TaskIdempotencyCleanup prunes claimed one-shot keys past their retention.
const TaskIdempotencyCleanup = "maintenance:idempotency_cleanup"

// Approved documents never re-run, so keys only matter while a retry of the
// same operation is still plausible.
const idempotencyRetention = 30 * 24 * time.Hour

// NewIdempotencyCleanupTask builds the cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil, asynq.Queue(QueueDefault))
}

// NewIdempotencyCleanupHandler drops idempotency keys older than the
// retention window.
func NewIdempotencyCleanupHandler(store *shared.IdempotencyStore, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, _ *asynq.Task) error {
		if err := store.Cleanup(ctx, idempotencyRetention); err != nil {
			logger.Error("idempotency cleanup", slog.Any("error", err))
			return err
		}
		logger.Info("idempotency keys pruned")
		return nil
	}
}
