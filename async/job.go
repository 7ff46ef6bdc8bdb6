// Package async provides asynchronous refresh job processing: a durable
// queue of units of work and a worker pool that executes them through
// registered handlers.
package async

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/serpmon/serpmon/errors"
)

// JobStatus represents the current state of a job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// MaxRetries is the maximum number of retry attempts for failed jobs
const MaxRetries = 2

// Job represents one async unit of work.
// HandlerName identifies which registered handler executes it; Payload is
// handler-specific and opaque to the queue.
type Job struct {
	ID          string          `json:"id"`
	HandlerName string          `json:"handler_name"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Source      string          `json:"source"` // who enqueued it, for logging
	Status      JobStatus       `json:"status"`
	Error       string          `json:"error,omitempty"`
	RetryCount  int             `json:"retry_count,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewJob creates a queued job bound to a handler and payload
func NewJob(handlerName string, payload json.RawMessage, source string) (*Job, error) {
	if handlerName == "" {
		return nil, errors.New("handlerName cannot be empty")
	}

	now := time.Now()
	return &Job{
		ID:          "job_" + uuid.NewString(),
		HandlerName: handlerName,
		Payload:     payload,
		Source:      source,
		Status:      JobStatusQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Start marks the job as running
func (j *Job) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.UpdatedAt = now
}

// Complete marks the job as successfully finished
func (j *Job) Complete() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// Fail marks the job as failed with the given error message
func (j *Job) Fail(errMsg string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.Error = errMsg
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// CanRetry reports whether the job has retry attempts left
func (j *Job) CanRetry() bool {
	return j.RetryCount < MaxRetries
}
