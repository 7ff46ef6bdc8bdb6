package schedule

import (
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/serpmon/serpmon/errors"
)

// isConstraintViolation reports whether err is a sqlite constraint failure
func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

// Schedule is the persisted refresh schedule for a list.
// Days are in the mode's external 1-indexed form; the storage-format
// shift for weekdays is confined to encodeDays/decodeDays below.
type Schedule struct {
	ID      string `json:"id"`
	ListID  int64  `json:"list_id"`
	Mode    Mode   `json:"mode"`
	Days    []int  `json:"days"`
	Hours   *int   `json:"hours"`
	Minutes *int   `json:"minutes"`
}

// Store handles persistence of refresh schedules
type Store struct {
	db *sql.DB
}

// NewStore creates a new schedule store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// encodeDays converts external day values to the stored CSV representation.
// WeekDays values are shifted to 0-based (1=Monday becomes 0) to match the
// trigger format; MonthDays are stored as-is.
func encodeDays(mode Mode, days []int) sql.NullString {
	if len(days) == 0 {
		return sql.NullString{}
	}
	parts := make([]string, len(days))
	for i, day := range days {
		if mode == ModeWeekDays {
			day--
		}
		parts[i] = strconv.Itoa(day)
	}
	return sql.NullString{String: strings.Join(parts, ","), Valid: true}
}

// decodeDays reverses encodeDays, restoring the mode's 1-indexed form
func decodeDays(mode Mode, stored sql.NullString) ([]int, error) {
	if !stored.Valid || stored.String == "" {
		return nil, nil
	}
	parts := strings.Split(stored.String, ",")
	days := make([]int, len(parts))
	for i, part := range parts {
		day, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, errors.Wrapf(err, "malformed day value %q", part)
		}
		if mode == ModeWeekDays {
			day++
		}
		days[i] = day
	}
	return days, nil
}

// Upsert creates or updates the schedule for a list and returns the stored
// record. An existing schedule keeps its id. The lookup and write run in
// one transaction and the UNIQUE(list_id) constraint backs it up, so
// concurrent upserts for the same list cannot produce two live records.
func (s *Store) Upsert(listID int64, spec Spec) (*Schedule, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRow(
		`SELECT id FROM auto_update_schedules WHERE list_id = ?`, listID,
	).Scan(&id)

	days := encodeDays(spec.Mode, spec.Days)
	now := time.Now().UTC().Format(time.RFC3339)

	switch {
	case err == sql.ErrNoRows:
		id = uuid.NewString()
		_, err = tx.Exec(
			`INSERT INTO auto_update_schedules (id, list_id, mode, days, hours, minutes, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, listID, string(spec.Mode), days, spec.Hours, spec.Minutes, now, now,
		)
		if err != nil {
			// UNIQUE(list_id) fired: a concurrent upsert created the
			// schedule between our lookup and insert.
			if isConstraintViolation(err) {
				return nil, errors.Wrapf(errors.ErrConflict, "schedule for list %d created concurrently", listID)
			}
			return nil, errors.Wrap(err, "failed to create schedule")
		}
	case err != nil:
		return nil, errors.Wrap(err, "failed to look up schedule")
	default:
		_, err = tx.Exec(
			`UPDATE auto_update_schedules
			 SET mode = ?, days = ?, hours = ?, minutes = ?, updated_at = ?
			 WHERE id = ?`,
			string(spec.Mode), days, spec.Hours, spec.Minutes, now, id,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to update schedule")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}

	return &Schedule{
		ID:      id,
		ListID:  listID,
		Mode:    spec.Mode,
		Days:    spec.Days,
		Hours:   spec.Hours,
		Minutes: spec.Minutes,
	}, nil
}

// Get retrieves the schedule for a list with days decoded back to the
// external 1-indexed form. Returns ErrNotFound if no schedule exists.
func (s *Store) Get(listID int64) (*Schedule, error) {
	var sched Schedule
	var mode string
	var days sql.NullString
	var hours, minutes sql.NullInt64

	err := s.db.QueryRow(
		`SELECT id, list_id, mode, days, hours, minutes
		 FROM auto_update_schedules WHERE list_id = ?`,
		listID,
	).Scan(&sched.ID, &sched.ListID, &mode, &days, &hours, &minutes)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("schedule for list %d", listID)
		}
		return nil, errors.Wrap(err, "failed to get schedule")
	}

	sched.Mode = Mode(mode)
	sched.Days, err = decodeDays(sched.Mode, days)
	if err != nil {
		return nil, errors.Wrapf(err, "schedule %s has corrupt days", sched.ID)
	}
	if hours.Valid {
		h := int(hours.Int64)
		sched.Hours = &h
	}
	if minutes.Valid {
		m := int(minutes.Int64)
		sched.Minutes = &m
	}

	return &sched, nil
}
