// Package quota tracks per-account monthly query allowances.
package quota

import (
	"database/sql"
	"time"

	"github.com/serpmon/serpmon/errors"
)

// EligibleRoles are the account roles subject to quota enforcement.
// ResetAll rewrites counters only for active accounts holding one of these.
var EligibleRoles = []string{"Search", "Superuser"}

// Ledger persists one remaining-query counter per account
type Ledger struct {
	db *sql.DB
}

// NewLedger creates a new quota ledger
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Decrement atomically consumes amount units from an account's counter and
// returns the new remaining value. Fails with ErrQuotaExceeded if the
// counter is smaller than amount, leaving it unchanged; the counter never
// goes negative. Concurrent decrements for the same account serialize on
// the row update, so there are no lost updates.
func (l *Ledger) Decrement(accountID string, amount int) (int, error) {
	if amount < 0 {
		return 0, errors.NewInvalidRequestError("negative decrement amount: %d", amount)
	}

	tx, err := l.db.Begin()
	if err != nil {
		return 0, errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE query_quota
		 SET remaining = remaining - ?, updated_at = ?
		 WHERE account_id = ? AND remaining >= ?`,
		amount, time.Now().UTC().Format(time.RFC3339), accountID, amount,
	)
	if err != nil {
		return 0, errors.Wrap(err, "failed to decrement quota")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}

	var remaining int
	if n == 0 {
		// Either the account has no counter or the counter is too small.
		err := tx.QueryRow(
			`SELECT remaining FROM query_quota WHERE account_id = ?`, accountID,
		).Scan(&remaining)
		if err == sql.ErrNoRows {
			return 0, errors.NewNotFoundError("quota counter for account %s", accountID)
		}
		if err != nil {
			return 0, errors.Wrap(err, "failed to read quota counter")
		}
		return remaining, errors.Wrapf(errors.ErrQuotaExceeded,
			"account %s has %d queries remaining, needs %d", accountID, remaining, amount)
	}

	if err := tx.QueryRow(
		`SELECT remaining FROM query_quota WHERE account_id = ?`, accountID,
	).Scan(&remaining); err != nil {
		return 0, errors.Wrap(err, "failed to read quota counter")
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit tx")
	}

	return remaining, nil
}

// Remaining returns the current counter value for an account
func (l *Ledger) Remaining(accountID string) (int, error) {
	var remaining int
	err := l.db.QueryRow(
		`SELECT remaining FROM query_quota WHERE account_id = ?`, accountID,
	).Scan(&remaining)
	if err == sql.ErrNoRows {
		return 0, errors.NewNotFoundError("quota counter for account %s", accountID)
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to read quota counter")
	}
	return remaining, nil
}

// ResetAll sets every eligible account's counter to limit in one
// transaction: either all eligible counters are rewritten or none are.
// Ineligible accounts (inactive, or holding another role) are untouched.
// Returns the number of counters reset.
func (l *Ledger) ResetAll(limit int) (int, error) {
	if limit < 0 {
		return 0, errors.NewInvalidRequestError("negative quota limit: %d", limit)
	}

	tx, err := l.db.Begin()
	if err != nil {
		return 0, errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE query_quota
		 SET remaining = ?, updated_at = ?
		 WHERE account_id IN (
		     SELECT id FROM accounts
		     WHERE is_active = 1 AND role IN (?, ?)
		 )`,
		limit, time.Now().UTC().Format(time.RFC3339), EligibleRoles[0], EligibleRoles[1],
	)
	if err != nil {
		return 0, errors.Wrap(err, "failed to reset quota counters")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit tx")
	}

	return int(n), nil
}

// EnsureCounter creates an account's counter at the given limit if it does
// not exist yet. Existing counters are left as they are.
func (l *Ledger) EnsureCounter(accountID string, limit int) error {
	_, err := l.db.Exec(
		`INSERT INTO query_quota (account_id, remaining, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(account_id) DO NOTHING`,
		accountID, limit, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to ensure quota counter for %s", accountID)
	}
	return nil
}
