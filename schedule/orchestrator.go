package schedule

import (
	"go.uber.org/zap"

	"github.com/serpmon/serpmon/errors"
	"github.com/serpmon/serpmon/lists"
	"github.com/serpmon/serpmon/refresh"
	"github.com/serpmon/serpmon/scheduler"
)

// Orchestrator drives the schedule lifecycle: it validates submitted
// definitions, persists them, and keeps the live job scheduler in sync
// with what is stored. It is the only writer of schedule records.
type Orchestrator struct {
	store  *Store
	lists  *lists.Store
	sched  *scheduler.Scheduler
	logger *zap.SugaredLogger
}

// NewOrchestrator creates a schedule orchestrator
func NewOrchestrator(store *Store, listStore *lists.Store, sched *scheduler.Scheduler, logger *zap.SugaredLogger) *Orchestrator {
	return &Orchestrator{
		store:  store,
		lists:  listStore,
		sched:  sched,
		logger: logger.Named("schedule"),
	}
}

// SetSchedule creates or replaces a list's refresh schedule.
//
// The definition is validated first; validation failure mutates nothing.
// The record is then upserted and any existing job for the schedule id is
// unscheduled unconditionally, so reissuing the same definition is
// idempotent and leaves exactly one live job. Unless the new mode is
// Disabled, a fresh trigger is derived and a job is registered bound to
// (accountID, listID). If job registration fails after the record was
// persisted, the error is surfaced wrapping ErrSchedulerDesync;
// re-issuing the call or a restart reload recovers.
func (o *Orchestrator) SetSchedule(listID int64, accountID string, spec Spec) (*Schedule, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	exists, err := o.lists.Exists(listID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.NewNotFoundError("list %d", listID)
	}

	sched, err := o.store.Upsert(listID, spec)
	if err != nil {
		return nil, err
	}

	// Always drop the old job, whatever the new mode; replacement must
	// never leave a stale trigger live.
	if err := o.sched.Unschedule(sched.ID); err != nil {
		return sched, o.desync(sched.ID, err)
	}

	if spec.Mode == ModeDisabled {
		o.logger.Infow("Schedule disabled", "schedule_id", sched.ID, "list_id", listID)
		return sched, nil
	}

	payload, err := refresh.MarshalPayload(accountID, listID)
	if err != nil {
		return sched, o.desync(sched.ID, err)
	}

	if err := o.sched.Schedule(sched.ID, deriveTrigger(spec), refresh.HandlerName, payload); err != nil {
		return sched, o.desync(sched.ID, err)
	}

	o.logger.Infow("Schedule set",
		"schedule_id", sched.ID,
		"list_id", listID,
		"mode", spec.Mode,
		"account_id", accountID)
	return sched, nil
}

// GetSchedule returns a list's schedule with days in the external
// 1-indexed form, or ErrNotFound if the list has no schedule record.
func (o *Orchestrator) GetSchedule(listID int64) (*Schedule, error) {
	return o.store.Get(listID)
}

// RemoveList deletes a list together with its schedule record (cascade)
// and removes any live job registered for that schedule.
func (o *Orchestrator) RemoveList(listID int64) error {
	sched, err := o.store.Get(listID)
	if err != nil && !errors.IsNotFoundError(err) {
		return err
	}

	if err := o.lists.Delete(listID); err != nil {
		return err
	}

	if sched != nil {
		if err := o.sched.Unschedule(sched.ID); err != nil {
			return o.desync(sched.ID, err)
		}
	}

	o.logger.Infow("List removed", "list_id", listID)
	return nil
}

// desync tags a post-persist scheduler failure so callers can tell it
// apart from validation and persistence errors.
func (o *Orchestrator) desync(scheduleID string, err error) error {
	if !errors.Is(err, errors.ErrSchedulerDesync) {
		err = errors.Wrapf(errors.ErrSchedulerDesync, "schedule %s: %v", scheduleID, err)
	}
	o.logger.Errorw("Schedule persisted but job registration failed",
		"schedule_id", scheduleID,
		"error", err)
	return err
}

// deriveTrigger converts a validated non-disabled spec into a scheduler
// trigger, shifting weekday values to the trigger's 0-based form.
func deriveTrigger(spec Spec) scheduler.Trigger {
	trig := scheduler.Trigger{
		Hour:   *spec.Hours,
		Minute: *spec.Minutes,
	}
	if spec.Mode == ModeWeekDays {
		trig.Weekdays = make([]int, len(spec.Days))
		for i, d := range spec.Days {
			trig.Weekdays[i] = d - 1
		}
	} else {
		trig.MonthDays = append([]int(nil), spec.Days...)
	}
	return trig
}
