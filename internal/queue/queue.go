package queue

import (
	"context"
	"oemcatalog/ingest/internal/domain/task"
	"time"

	"github.com/redis/go-redis/v9"
)

const StreamPrefix = "ingest:stream:"

// Queue is a durable list of task messages grouped into one stream per task type.
type Queue interface {
	AddTask(ctx context.Context, task task.Task) (string, error) // Returns message ID
	// GetTask returns the next undelivered message, or nil when the stream is drained.
	GetTask(ctx context.Context, consumer, stream string) (*redis.XMessage, error)
	AckTask(ctx context.Context, stream, msgID string) error
	// AutoClaim takes over messages delivered to another consumer and left
	// unacknowledged for at least minIdleTime.
	AutoClaim(ctx context.Context, consumer, stream string, minIdleTime time.Duration) ([]redis.XMessage, error)
	EnsureStreamsExist(ctx context.Context) error
}

func StreamName(taskType string) string {
	return StreamPrefix + taskType
}

// TaskTypes lists every task type that has a stream.
var TaskTypes = []string{
	(&task.FailedPageTask{}).TaskType(),
}

func taskMessage(t task.Task) (map[string]interface{}, error) {
	value, err := t.TaskValue()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"task_type": t.TaskType(),
		"task_data": string(value),
	}, nil
}
