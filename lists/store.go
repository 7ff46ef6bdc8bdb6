// Package lists persists monitored live-search lists and their queries.
package lists

import (
	"database/sql"
	"time"

	"github.com/serpmon/serpmon/errors"
)

// List is a monitored set of search queries
type List struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Queries   []string  `json:"queries"`
	CreatedAt time.Time `json:"created_at"`
}

// Store handles persistence of lists
type Store struct {
	db *sql.DB
}

// NewStore creates a new list store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a list and its queries in one transaction
func (s *Store) Create(name string, queries []string) (*List, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.Exec(
		`INSERT INTO live_search_lists (name, created_at) VALUES (?, ?)`,
		name, now.Format(time.RFC3339),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create list")
	}

	listID, err := res.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get list id")
	}

	for _, q := range queries {
		if _, err := tx.Exec(
			`INSERT INTO list_queries (list_id, query) VALUES (?, ?)`,
			listID, q,
		); err != nil {
			return nil, errors.Wrapf(err, "failed to add query %q", q)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}

	return &List{ID: listID, Name: name, Queries: queries, CreatedAt: now}, nil
}

// Get retrieves a list with its queries.
// Returns ErrNotFound if no list exists with the given id.
func (s *Store) Get(listID int64) (*List, error) {
	var list List
	var createdAt string

	err := s.db.QueryRow(
		`SELECT id, name, created_at FROM live_search_lists WHERE id = ?`,
		listID,
	).Scan(&list.ID, &list.Name, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("list %d", listID)
		}
		return nil, errors.Wrap(err, "failed to get list")
	}

	list.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse created_at for list %d", listID)
	}

	list.Queries, err = s.Queries(listID)
	if err != nil {
		return nil, err
	}

	return &list, nil
}

// Exists reports whether a list with the given id exists
func (s *Store) Exists(listID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(
		`SELECT EXISTS(SELECT 1 FROM live_search_lists WHERE id = ?)`, listID,
	).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check list existence")
	}
	return exists, nil
}

// Queries returns the search queries belonging to a list
func (s *Store) Queries(listID int64) ([]string, error) {
	rows, err := s.db.Query(
		`SELECT query FROM list_queries WHERE list_id = ? ORDER BY id`,
		listID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list queries")
	}
	defer rows.Close()

	var queries []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// Delete removes a list. Its queries and schedule rows are removed by
// the ON DELETE CASCADE constraints; the caller is responsible for
// unscheduling any live job keyed by the schedule id.
func (s *Store) Delete(listID int64) error {
	res, err := s.db.Exec(`DELETE FROM live_search_lists WHERE id = ?`, listID)
	if err != nil {
		return errors.Wrap(err, "failed to delete list")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if n == 0 {
		return errors.NewNotFoundError("list %d", listID)
	}
	return nil
}
