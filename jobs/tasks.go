package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskIdempotencyCleanup prunes processed idempotency keys past retention.
	TaskIdempotencyCleanup = "idempotency:cleanup"
	// TaskReportTotalsRefresh recomputes persisted count report totals from
	// their item rows.
	TaskReportTotalsRefresh = "counts:refresh_totals"
)

// IdempotencyCleanupPayload carries the retention window for a cleanup run.
type IdempotencyCleanupPayload struct {
	MaxAge time.Duration `json:"max_age"`
}

// NewIdempotencyCleanupTask constructs an Asynq task.
func NewIdempotencyCleanupTask(payload IdempotencyCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}

// NewReportTotalsRefreshTask constructs an Asynq task with no payload.
func NewReportTotalsRefreshTask() *asynq.Task {
	return asynq.NewTask(TaskReportTotalsRefresh, nil)
}
