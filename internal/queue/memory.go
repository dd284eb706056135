package queue

import (
	"context"
	"fmt"
	"oemcatalog/ingest/internal/domain/task"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type memoryMessage struct {
	msg         redis.XMessage
	consumer    string
	deliveredAt time.Time
}

// MemoryQueue keeps streams in process memory. It is used when redis is
// disabled, so failed pages survive only until the process exits.
type MemoryQueue struct {
	mu      sync.Mutex
	seq     int64
	streams map[string][]*memoryMessage // Undelivered, in insertion order
	pending map[string][]*memoryMessage // Delivered, not yet acknowledged
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		streams: make(map[string][]*memoryMessage),
		pending: make(map[string][]*memoryMessage),
	}
}

func (q *MemoryQueue) AddTask(_ context.Context, t task.Task) (string, error) {
	values, err := taskMessage(t)
	if err != nil {
		return "", fmt.Errorf("failed to serialize task: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	id := fmt.Sprintf("%d-0", q.seq)
	stream := StreamName(t.TaskType())
	q.streams[stream] = append(q.streams[stream], &memoryMessage{msg: redis.XMessage{ID: id, Values: values}})
	return id, nil
}

func (q *MemoryQueue) GetTask(_ context.Context, consumer, stream string) (*redis.XMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.streams[stream]) == 0 {
		return nil, nil
	}

	m := q.streams[stream][0]
	q.streams[stream] = q.streams[stream][1:]
	m.consumer, m.deliveredAt = consumer, time.Now()
	q.pending[stream] = append(q.pending[stream], m)

	msg := m.msg
	return &msg, nil
}

func (q *MemoryQueue) AckTask(_ context.Context, stream, msgID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending := q.pending[stream]
	for i, m := range pending {
		if m.msg.ID == msgID {
			q.pending[stream] = append(pending[:i], pending[i+1:]...)
			return nil
		}
	}
	return nil
}

func (q *MemoryQueue) AutoClaim(_ context.Context, consumer, stream string, minIdleTime time.Duration) ([]redis.XMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var claimed []redis.XMessage
	for _, m := range q.pending[stream] {
		if time.Since(m.deliveredAt) >= minIdleTime {
			m.consumer, m.deliveredAt = consumer, time.Now()
			claimed = append(claimed, m.msg)
		}
	}
	return claimed, nil
}

func (q *MemoryQueue) EnsureStreamsExist(context.Context) error {
	return nil
}

// Len reports undelivered plus unacknowledged messages on stream.
func (q *MemoryQueue) Len(stream string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.streams[stream]) + len(q.pending[stream])
}
