package async

import (
	"database/sql"
	"time"

	"github.com/serpmon/serpmon/errors"
)

// Store handles persistence of async jobs
type Store struct {
	db *sql.DB
}

// NewStore creates a new async job store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateJob inserts a new job row
func (s *Store) CreateJob(job *Job) error {
	var payload interface{}
	if len(job.Payload) > 0 {
		payload = string(job.Payload)
	}

	_, err := s.db.Exec(
		`INSERT INTO async_jobs (
			id, handler_name, payload, source, status, error, retry_count,
			created_at, started_at, completed_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.HandlerName,
		payload,
		job.Source,
		string(job.Status),
		nullIfEmpty(job.Error),
		job.RetryCount,
		job.CreatedAt.Format(time.RFC3339),
		formatNullableTime(job.StartedAt),
		formatNullableTime(job.CompletedAt),
		job.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to create async job %s", job.ID)
	}
	return nil
}

// GetJob retrieves a job by ID. Returns ErrNotFound if it does not exist.
func (s *Store) GetJob(id string) (*Job, error) {
	row := s.db.QueryRow(
		`SELECT id, handler_name, payload, source, status, error, retry_count,
		        created_at, started_at, completed_at, updated_at
		 FROM async_jobs WHERE id = ?`, id)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("async job %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get async job %s", id)
	}
	return job, nil
}

// ListJobs returns jobs in creation order, optionally filtered by status
func (s *Store) ListJobs(status *JobStatus, limit int) ([]*Job, error) {
	query := `SELECT id, handler_name, payload, source, status, error, retry_count,
	                 created_at, started_at, completed_at, updated_at
	          FROM async_jobs`
	args := []interface{}{}
	if status != nil {
		query += ` WHERE status = ?`
		args = append(args, string(*status))
	}
	// rowid breaks ties between jobs created within the same second
	query += ` ORDER BY created_at ASC, rowid ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list async jobs")
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateJob persists a job's mutable fields
func (s *Store) UpdateJob(job *Job) error {
	res, err := s.db.Exec(
		`UPDATE async_jobs
		 SET status = ?, error = ?, retry_count = ?,
		     started_at = ?, completed_at = ?, updated_at = ?
		 WHERE id = ?`,
		string(job.Status),
		nullIfEmpty(job.Error),
		job.RetryCount,
		formatNullableTime(job.StartedAt),
		formatNullableTime(job.CompletedAt),
		time.Now().UTC().Format(time.RFC3339),
		job.ID,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to update async job %s", job.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if n == 0 {
		return errors.NewNotFoundError("async job %s", job.ID)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanJob
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row scanner) (*Job, error) {
	var job Job
	var payload, errMsg, startedAt, completedAt sql.NullString
	var status, createdAt, updatedAt string

	err := row.Scan(
		&job.ID,
		&job.HandlerName,
		&payload,
		&job.Source,
		&status,
		&errMsg,
		&job.RetryCount,
		&createdAt,
		&startedAt,
		&completedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Status = JobStatus(status)
	if payload.Valid {
		job.Payload = []byte(payload.String)
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}

	job.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse created_at for job %s", job.ID)
	}
	job.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse updated_at for job %s", job.ID)
	}
	if startedAt.Valid {
		t, err := time.Parse(time.RFC3339, startedAt.String)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse started_at for job %s", job.ID)
		}
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t, err := time.Parse(time.RFC3339, completedAt.String)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse completed_at for job %s", job.ID)
		}
		job.CompletedAt = &t
	}

	return &job, nil
}

func formatNullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
