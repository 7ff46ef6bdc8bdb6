package scheduler

import (
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/serpmon/serpmon/async"
	"github.com/serpmon/serpmon/errors"
)

// Scheduler owns the process-wide live trigger registry. It wraps a
// cron runner whose entries mirror the durable scheduler_jobs table:
// Schedule/Unschedule mutate both under one lock, and Start rebuilds the
// live entries from the table so registrations survive restarts. Fired
// triggers enqueue async jobs; they never run refresh work inline, so a
// slow refresh cannot stall the timing loop.
//
// One process must own the durable store. Running two schedulers against
// the same database would fire every job twice; nothing below guards
// against that deployment mistake.
type Scheduler struct {
	store  *Store
	queue  *async.Queue
	c      *cron.Cron
	loc    *time.Location
	logger *zap.SugaredLogger

	mu      sync.Mutex
	entries map[string]cron.EntryID
	started bool
}

// New creates a scheduler running in the given IANA timezone.
// All trigger hours and minutes are interpreted in that zone.
func New(db *sql.DB, queue *async.Queue, timezone string, logger *zap.SugaredLogger) (*Scheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid scheduler timezone %q", timezone)
	}

	log := logger.Named("scheduler")
	return &Scheduler{
		store: NewStore(db),
		queue: queue,
		c: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cron.PrintfLogger(cronLogger{log}))),
		),
		loc:     loc,
		logger:  log,
		entries: make(map[string]cron.EntryID),
	}, nil
}

// Location returns the timezone triggers are evaluated in
func (s *Scheduler) Location() *time.Location {
	return s.loc
}

// Start reloads all durable registrations into the live cron runner and
// begins firing them at their next matching timestamp. Occurrences missed
// while the process was down are not caught up. Registrations whose stored
// cron spec no longer parses are logged and skipped, never fatal.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	regs, err := s.store.List()
	if err != nil {
		return errors.Wrap(err, "failed to reload scheduler registrations")
	}

	for _, reg := range regs {
		entryID, err := s.addEntryLocked(reg.ID, reg.CronSpec)
		if err != nil {
			s.logger.Errorw("Skipping unloadable registration",
				"job_id", reg.ID,
				"cron_spec", reg.CronSpec,
				"error", err)
			continue
		}
		s.entries[reg.ID] = entryID
	}

	s.c.Start()
	s.started = true
	s.logger.Infow("Scheduler started",
		"jobs", len(s.entries),
		"timezone", s.loc.String())
	return nil
}

// Stop halts the timing loop and waits for in-flight fires to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	<-s.c.Stop().Done()
	s.started = false
	s.logger.Infow("Scheduler stopped")
}

// Schedule registers a job keyed by id, atomically replacing any existing
// registration for that id: the durable row is upserted and the old live
// entry swapped for the new one under the scheduler lock, so concurrent
// replacements cannot leave two entries (or none) live for one id.
func (s *Scheduler) Schedule(id string, trig Trigger, handlerName string, payload json.RawMessage) error {
	if err := trig.Validate(); err != nil {
		return err
	}
	if handlerName == "" {
		return errors.NewInvalidRequestError("handler name is required")
	}

	spec := trig.CronSpec()
	// Parse up front so the durable row is never written with a spec the
	// live runner would reject.
	if _, err := cron.ParseStandard(spec); err != nil {
		return errors.Wrapf(err, "trigger produced invalid cron spec %q", spec)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reg := &Registration{
		ID:          id,
		CronSpec:    spec,
		HandlerName: handlerName,
		Payload:     payload,
	}
	if err := s.store.Upsert(reg); err != nil {
		return err
	}

	if old, ok := s.entries[id]; ok {
		s.c.Remove(old)
		delete(s.entries, id)
	}

	entryID, err := s.addEntryLocked(id, spec)
	if err != nil {
		// The durable row is in place; the live entry is not. Surface the
		// desync so the caller can retry, and restart-reload will also heal it.
		return errors.Wrapf(errors.ErrSchedulerDesync, "job %s persisted but not live: %v", id, err)
	}
	s.entries[id] = entryID

	s.logger.Infow("Job scheduled",
		"job_id", id,
		"cron_spec", spec,
		"handler", handlerName)
	return nil
}

// Unschedule removes the registration for id, both the live entry and the
// durable row. No-op if nothing is registered.
func (s *Scheduler) Unschedule(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.entries[id]; ok {
		s.c.Remove(entryID)
		delete(s.entries, id)
	}
	if err := s.store.Delete(id); err != nil {
		return err
	}

	s.logger.Debugw("Job unscheduled", "job_id", id)
	return nil
}

// Get returns the durable registration for id, or ErrNotFound
func (s *Scheduler) Get(id string) (*Registration, error) {
	return s.store.Get(id)
}

// List returns all durable registrations
func (s *Scheduler) List() ([]*Registration, error) {
	return s.store.List()
}

// IsLive reports whether a live cron entry exists for id
func (s *Scheduler) IsLive(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[id]
	return ok
}

// addEntryLocked installs a cron entry that fires the job with the given id.
// Caller must hold s.mu.
func (s *Scheduler) addEntryLocked(id string, spec string) (cron.EntryID, error) {
	return s.c.AddFunc(spec, func() {
		s.fire(id)
	})
}

// fire enqueues one async job for a due registration. Failures are logged
// and never deregister the job; it stays scheduled for its next occurrence.
func (s *Scheduler) fire(id string) {
	reg, err := s.store.Get(id)
	if err != nil {
		// Registration deleted between the tick and the lookup; the live
		// entry will be gone after the unschedule that raced us.
		s.logger.Warnw("Fired job has no registration", "job_id", id, "error", err)
		return
	}

	job, err := async.NewJob(reg.HandlerName, reg.Payload, "schedule:"+id)
	if err != nil {
		s.logger.Errorw("Failed to build job for fired trigger", "job_id", id, "error", err)
		return
	}

	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Errorw("Failed to enqueue fired job",
			"job_id", id,
			"async_job_id", job.ID,
			"error", err)
		return
	}

	s.logger.Infow("Trigger fired",
		"job_id", id,
		"async_job_id", job.ID,
		"handler", reg.HandlerName)
}

// cronLogger adapts zap to the printf interface cron.PrintfLogger expects
type cronLogger struct {
	log *zap.SugaredLogger
}

func (c cronLogger) Printf(format string, args ...interface{}) {
	c.log.Infof(format, args...)
}
