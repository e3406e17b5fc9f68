// Package memory provides an in-memory job queue for tests, examples, and
// single-process deployments. It records enqueued jobs and hands out handles;
// execution, retry, and backoff policy remain the consumer's concern, exactly
// as with a real job system.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	migrator "github.com/getpup/schema-migrator"
)

// Job is one enqueued job with its handle and payload.
type Job struct {
	// ID is the job's handle.
	ID string

	// Payload is the payload supplied at enqueue time.
	Payload migrator.JobPayload
}

// Queue is an in-memory implementation of migrator.Queue.
// It is safe for concurrent use.
type Queue struct {
	mu   sync.Mutex
	jobs []Job
}

// Compile-time check that Queue implements migrator.Queue.
var _ migrator.Queue = (*Queue)(nil)

// New creates a new in-memory queue.
func New() *Queue {
	return &Queue{}
}

// Enqueue durably records a job and returns its handle.
// It never blocks on job execution.
func (q *Queue) Enqueue(ctx context.Context, payload migrator.JobPayload) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job := Job{
		ID:      uuid.New().String(),
		Payload: payload,
	}
	q.jobs = append(q.jobs, job)
	return job.ID, nil
}

// Jobs returns every job enqueued so far, in order.
func (q *Queue) Jobs() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	return append([]Job(nil), q.jobs...)
}
