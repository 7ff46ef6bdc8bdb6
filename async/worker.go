package async

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/serpmon/serpmon/errors"
)

// WorkerPool manages a pool of workers that process async jobs
type WorkerPool struct {
	queue    *Queue
	registry *HandlerRegistry
	workers  int
	interval time.Duration
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	logger   *zap.SugaredLogger
}

// WorkerPoolConfig contains configuration for the worker pool
type WorkerPoolConfig struct {
	Workers      int           // Number of concurrent job workers
	PollInterval time.Duration // How often to check for new jobs
}

// DefaultWorkerPoolConfig returns sensible defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		Workers:      1,
		PollInterval: 5 * time.Second,
	}
}

// NewWorkerPool creates a worker pool over the given database and registry.
// Callers must register handlers before calling Start().
func NewWorkerPool(ctx context.Context, db *sql.DB, cfg WorkerPoolConfig, registry *HandlerRegistry, logger *zap.SugaredLogger) *WorkerPool {
	workerCtx, cancel := context.WithCancel(ctx)

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	return &WorkerPool{
		queue:    NewQueue(db),
		registry: registry,
		workers:  workers,
		interval: interval,
		ctx:      workerCtx,
		cancel:   cancel,
		logger:   logger.Named("async"),
	}
}

// Queue returns the pool's underlying job queue
func (w *WorkerPool) Queue() *Queue {
	return w.queue
}

// Workers returns the configured worker count
func (w *WorkerPool) Workers() int {
	return w.workers
}

// Start launches the worker goroutines
func (w *WorkerPool) Start() {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run(i)
	}
	w.logger.Infow("Worker pool started", "workers", w.workers, "poll_interval", w.interval)
}

// Stop cancels all workers and waits for in-flight jobs to finish
func (w *WorkerPool) Stop() {
	w.cancel()
	w.wg.Wait()
	w.logger.Infow("Worker pool stopped")
}

// run is a single worker's poll loop
func (w *WorkerPool) run(idx int) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.drainQueue(idx)
		}
	}
}

// drainQueue processes jobs until the queue is empty or the pool stops
func (w *WorkerPool) drainQueue(idx int) {
	for {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		job, err := w.queue.Dequeue()
		if err != nil {
			w.logger.Warnw("Failed to dequeue job", "worker", idx, "error", err)
			return
		}
		if job == nil {
			return
		}

		w.processJob(idx, job)
	}
}

// processJob executes one job through its registered handler.
// Handler failures are recorded on the job and never propagate to the
// worker loop; failed jobs with retries left go back in the queue.
func (w *WorkerPool) processJob(idx int, job *Job) {
	start := time.Now()

	handler := w.registry.Get(job.HandlerName)
	if handler == nil {
		job.Fail("no handler registered for " + job.HandlerName)
		if err := w.queue.UpdateJob(job); err != nil {
			w.logger.Errorw("Failed to record missing handler", "job_id", job.ID, "error", err)
		}
		w.logger.Errorw("Job has no registered handler",
			"job_id", job.ID,
			"handler", job.HandlerName)
		return
	}

	err := w.executeSafely(handler, job)
	durationMs := int(time.Since(start).Milliseconds())

	if err != nil {
		if job.CanRetry() {
			w.logger.Warnw("Job failed, requeueing",
				"job_id", job.ID,
				"handler", job.HandlerName,
				"retry", job.RetryCount+1,
				"duration_ms", durationMs,
				"error", err)
			if rqErr := w.queue.Requeue(job); rqErr != nil {
				w.logger.Errorw("Failed to requeue job", "job_id", job.ID, "error", rqErr)
			}
			return
		}

		job.Fail(err.Error())
		if updErr := w.queue.UpdateJob(job); updErr != nil {
			w.logger.Errorw("Failed to record job failure", "job_id", job.ID, "error", updErr)
		}
		w.logger.Errorw("Job failed",
			"job_id", job.ID,
			"handler", job.HandlerName,
			"retries", job.RetryCount,
			"duration_ms", durationMs,
			"error", err)
		return
	}

	job.Complete()
	if err := w.queue.UpdateJob(job); err != nil {
		w.logger.Errorw("Failed to record job completion", "job_id", job.ID, "error", err)
		return
	}
	w.logger.Infow("Job completed",
		"job_id", job.ID,
		"handler", job.HandlerName,
		"worker", idx,
		"duration_ms", durationMs)
}

// executeSafely runs a handler, converting panics into errors so one bad
// job cannot take a worker down.
func (w *WorkerPool) executeSafely(handler JobHandler, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf("handler panicked: %v", r)
		}
	}()
	return handler.Execute(w.ctx, job)
}
