// Package schedule manages per-list automatic refresh schedules: the
// user-facing schedule definition, its persisted record, and the
// orchestration that keeps the live job scheduler in sync with it.
package schedule

import (
	"github.com/serpmon/serpmon/errors"
)

// Mode selects how a schedule's day values are interpreted
type Mode string

const (
	// ModeDisabled turns automatic refresh off; the schedule record is
	// kept but no job is registered.
	ModeDisabled Mode = "Disabled"
	// ModeWeekDays fires on the given days of week, 1=Monday .. 7=Sunday
	ModeWeekDays Mode = "WeekDays"
	// ModeMonthDays fires on the given days of month, 1..31
	ModeMonthDays Mode = "MonthDays"
)

// IsValidMode returns true if the string is a recognized schedule mode
func IsValidMode(s string) bool {
	switch Mode(s) {
	case ModeDisabled, ModeWeekDays, ModeMonthDays:
		return true
	default:
		return false
	}
}

// maxDay returns the upper bound of the mode's day range
func (m Mode) maxDay() int {
	if m == ModeWeekDays {
		return 7
	}
	return 31
}

// Spec is a user-submitted schedule definition.
// Days, Hours and Minutes are pointers so that "absent" is distinguishable
// from zero values; all three are ignored when Mode is Disabled.
type Spec struct {
	Mode    Mode   `json:"mode"`
	Days    []int  `json:"days"`
	Hours   *int   `json:"hours"`
	Minutes *int   `json:"minutes"`
}

// Validate checks a schedule definition against its mode's constraints.
// Disabled is always valid. Otherwise days must be a non-empty set of
// in-range values (1..7 for WeekDays, 1..31 for MonthDays, never more
// values than the range holds), hours must be in [0,24) and minutes in
// [0,60). Returns ErrInvalidRequest-wrapped errors; no side effects.
func (sp Spec) Validate() error {
	if !IsValidMode(string(sp.Mode)) {
		return errors.NewInvalidRequestError("unknown schedule mode %q", sp.Mode)
	}
	if sp.Mode == ModeDisabled {
		return nil
	}

	if len(sp.Days) == 0 {
		return errors.NewInvalidRequestError("days not specified")
	}
	if sp.Hours == nil {
		return errors.NewInvalidRequestError("hours not specified")
	}
	if *sp.Hours < 0 || *sp.Hours >= 24 {
		return errors.NewInvalidRequestError("invalid hours range: %d", *sp.Hours)
	}
	if sp.Minutes == nil {
		return errors.NewInvalidRequestError("minutes not specified")
	}
	if *sp.Minutes < 0 || *sp.Minutes >= 60 {
		return errors.NewInvalidRequestError("invalid minutes range: %d", *sp.Minutes)
	}

	max := sp.Mode.maxDay()
	if len(sp.Days) > max {
		return errors.NewInvalidRequestError("too many days for mode %s: %d", sp.Mode, len(sp.Days))
	}
	for _, day := range sp.Days {
		if day < 1 || day > max {
			return errors.NewInvalidRequestError("day %d out of range for mode %s", day, sp.Mode)
		}
	}

	return nil
}
