// Package scheduler maintains the live set of recurring refresh triggers.
// Registrations are persisted in the scheduler_jobs table so they survive
// process restarts, and fire by enqueueing async jobs. The package is
// domain-agnostic: callers hand it a trigger, a handler name and a payload.
package scheduler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/serpmon/serpmon/errors"
)

// Trigger describes a recurring time-of-day pattern. Exactly one of
// Weekdays and MonthDays must be set. Weekdays are 0-based with 0=Monday;
// MonthDays are 1..31. The trigger fires at every matching timestamp in
// the scheduler's timezone until unscheduled.
type Trigger struct {
	Hour      int
	Minute    int
	Weekdays  []int
	MonthDays []int
}

// Validate checks the trigger's fields are well-formed
func (t Trigger) Validate() error {
	if t.Hour < 0 || t.Hour >= 24 {
		return errors.NewInvalidRequestError("trigger hour out of range: %d", t.Hour)
	}
	if t.Minute < 0 || t.Minute >= 60 {
		return errors.NewInvalidRequestError("trigger minute out of range: %d", t.Minute)
	}
	if len(t.Weekdays) == 0 && len(t.MonthDays) == 0 {
		return errors.NewInvalidRequestError("trigger has no day pattern")
	}
	if len(t.Weekdays) > 0 && len(t.MonthDays) > 0 {
		return errors.NewInvalidRequestError("trigger has both weekday and month-day patterns")
	}
	for _, d := range t.Weekdays {
		if d < 0 || d > 6 {
			return errors.NewInvalidRequestError("trigger weekday out of range: %d", d)
		}
	}
	for _, d := range t.MonthDays {
		if d < 1 || d > 31 {
			return errors.NewInvalidRequestError("trigger month day out of range: %d", d)
		}
	}
	return nil
}

// CronSpec renders the trigger as a standard five-field cron expression.
// The 0-based weekday form (0=Monday) maps to cron day-of-week numbering
// (1=Monday, 0=Sunday), so stored weekday 6 becomes cron 0.
func (t Trigger) CronSpec() string {
	if len(t.Weekdays) > 0 {
		dows := make([]string, len(t.Weekdays))
		for i, d := range t.Weekdays {
			dows[i] = strconv.Itoa((d + 1) % 7)
		}
		return fmt.Sprintf("%d %d * * %s", t.Minute, t.Hour, strings.Join(dows, ","))
	}

	doms := make([]string, len(t.MonthDays))
	for i, d := range t.MonthDays {
		doms[i] = strconv.Itoa(d)
	}
	return fmt.Sprintf("%d %d %s * *", t.Minute, t.Hour, strings.Join(doms, ","))
}
