package scheduler

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/serpmon/serpmon/errors"
)

// Registration is a durable scheduler entry keyed by schedule id.
// The cron spec is derived from the trigger at registration time and is
// sufficient to reconstruct firing behavior after a restart.
type Registration struct {
	ID          string          `json:"id"`
	CronSpec    string          `json:"cron_spec"`
	HandlerName string          `json:"handler_name"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Store handles persistence of scheduler registrations
type Store struct {
	db *sql.DB
}

// NewStore creates a new scheduler store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Upsert inserts or replaces the registration for its id
func (s *Store) Upsert(reg *Registration) error {
	var payload interface{}
	if len(reg.Payload) > 0 {
		payload = string(reg.Payload)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(
		`INSERT INTO scheduler_jobs (id, cron_spec, handler_name, payload, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		     cron_spec = excluded.cron_spec,
		     handler_name = excluded.handler_name,
		     payload = excluded.payload,
		     updated_at = excluded.updated_at`,
		reg.ID, reg.CronSpec, reg.HandlerName, payload, now, now,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to persist scheduler registration %s", reg.ID)
	}
	return nil
}

// Get retrieves a registration by id. Returns ErrNotFound if absent.
func (s *Store) Get(id string) (*Registration, error) {
	reg, err := scanRegistration(s.db.QueryRow(
		`SELECT id, cron_spec, handler_name, payload, created_at, updated_at
		 FROM scheduler_jobs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("scheduler registration %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get scheduler registration %s", id)
	}
	return reg, nil
}

// Delete removes a registration. No-op if it does not exist.
func (s *Store) Delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM scheduler_jobs WHERE id = ?`, id); err != nil {
		return errors.Wrapf(err, "failed to delete scheduler registration %s", id)
	}
	return nil
}

// List returns all durable registrations, oldest first
func (s *Store) List() ([]*Registration, error) {
	rows, err := s.db.Query(
		`SELECT id, cron_spec, handler_name, payload, created_at, updated_at
		 FROM scheduler_jobs ORDER BY created_at ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list scheduler registrations")
	}
	defer rows.Close()

	var regs []*Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRegistration(row scanner) (*Registration, error) {
	var reg Registration
	var payload sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&reg.ID, &reg.CronSpec, &reg.HandlerName, &payload, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if payload.Valid {
		reg.Payload = []byte(payload.String)
	}
	reg.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse created_at for registration %s", reg.ID)
	}
	reg.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse updated_at for registration %s", reg.ID)
	}
	return &reg, nil
}
