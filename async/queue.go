package async

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/serpmon/serpmon/errors"
)

// Queue is a durable FIFO job queue backed by the async_jobs table.
// The mutex serializes the select-then-update in Dequeue so concurrent
// workers never receive the same job.
type Queue struct {
	store *Store
	mu    sync.RWMutex
}

// NewQueue creates a new job queue
func NewQueue(db *sql.DB) *Queue {
	return &Queue{store: NewStore(db)}
}

// Enqueue adds a new job to the queue
func (q *Queue) Enqueue(job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.store.CreateJob(job); err != nil {
		err = errors.Wrap(err, "failed to enqueue job")
		err = errors.WithDetail(err, fmt.Sprintf("Job ID: %s", job.ID))
		err = errors.WithDetail(err, fmt.Sprintf("Handler: %s", job.HandlerName))
		return err
	}
	return nil
}

// Dequeue gets the oldest queued job and marks it as running.
// Returns nil, nil when no job is available.
func (q *Queue) Dequeue() (*Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	queued := JobStatusQueued
	jobs, err := q.store.ListJobs(&queued, 1)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get queued jobs")
	}
	if len(jobs) == 0 {
		return nil, nil
	}

	job := jobs[0]
	job.Start()

	if err := q.store.UpdateJob(job); err != nil {
		return nil, errors.Wrapf(err, "failed to mark job %s as running", job.ID)
	}
	return job, nil
}

// GetJob retrieves a job by ID
func (q *Queue) GetJob(id string) (*Job, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.store.GetJob(id)
}

// UpdateJob updates a job's state
func (q *Queue) UpdateJob(job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.store.UpdateJob(job)
}

// Requeue puts a failed job back in the queue for another attempt
func (q *Queue) Requeue(job *Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job.RetryCount++
	job.Status = JobStatusQueued
	job.StartedAt = nil
	job.CompletedAt = nil
	return q.store.UpdateJob(job)
}
