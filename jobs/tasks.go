package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAdjustmentReindex refreshes the adjustment search index after a
	// draft is saved or approved.
	TaskAdjustmentReindex = "adjustment:reindex"
)

// AdjustmentReindexPayload identifies the adjustment to reindex.
type AdjustmentReindexPayload struct {
	ID     string `json:"id"`
	Number string `json:"number"`
}

// NewAdjustmentReindexTask builds a reindex task.
func NewAdjustmentReindexTask(payload AdjustmentReindexPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAdjustmentReindex, body, asynq.Queue(QueueDefault)), nil
}

// NewAdjustmentReindexHandler refreshes the denormalised search view for one
// adjustment.
func NewAdjustmentReindexHandler(idx *SearchIndexer, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload AdjustmentReindexPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if err := idx.ReindexAdjustment(ctx, payload.ID); err != nil {
			logger.Error("adjustment reindex", slog.Any("error", err), slog.String("number", payload.Number))
			return err
		}
		logger.Info("adjustment reindexed", slog.String("number", payload.Number))
		return nil
	}
}
