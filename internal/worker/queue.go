package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultMaxTries = 3

type JobQueue struct {
	client  *redis.Client
	breaker *CircuitBreaker
}

func NewJobQueue(client *redis.Client, breaker *CircuitBreaker) *JobQueue {
	if breaker == nil {
		breaker = NewCircuitBreaker(nil)
	}
	return &JobQueue{client: client, breaker: breaker}
}

func (q *JobQueue) Enqueue(ctx context.Context, queue string, jobType JobType, payload interface{}) (*Job, error) {
	return q.EnqueueAt(ctx, queue, jobType, payload, time.Now())
}

func (q *JobQueue) EnqueueAt(ctx context.Context, queue string, jobType JobType, payload interface{}, processAt time.Time) (*Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}

	job := &Job{
		ID:        id.String(),
		Type:      jobType,
		Payload:   raw,
		MaxTries:  defaultMaxTries,
		CreatedAt: time.Now(),
		ProcessAt: processAt,
	}

	jobData, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}

	err = q.breaker.Execute(func() error {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return q.client.RPush(ctx, queue, jobData).Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue %s job: %w", jobType, err)
	}
	return job, nil
}

func (q *JobQueue) QueueSize(ctx context.Context, queue string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return q.client.LLen(ctx, queue).Result()
}

func (q *JobQueue) BreakerStats() map[string]interface{} {
	return q.breaker.Stats()
}

// Stats reports the breaker state and the backlog of each queue. A queue
// whose length cannot be read reports -1.
func (q *JobQueue) Stats(queues ...string) map[string]interface{} {
	sizes := make(map[string]int64, len(queues))
	for _, name := range queues {
		n, err := q.QueueSize(context.Background(), name)
		if err != nil {
			n = -1
		}
		sizes[name] = n
	}
	return map[string]interface{}{
		"breaker": q.BreakerStats(),
		"queues":  sizes,
	}
}
