package schedule

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serpmon/serpmon/errors"
	"github.com/serpmon/serpmon/internal/util"
)

// A concurrent first upsert can win the race between our lookup and
// insert; the UNIQUE(list_id) failure must surface as ErrConflict.
func TestUpsertConflictOnConcurrentCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM auto_update_schedules").
		WithArgs(int64(7)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO auto_update_schedules").
		WillReturnError(sqlite3.Error{Code: sqlite3.ErrConstraint})
	mock.ExpectRollback()

	store := NewStore(db)
	_, err = store.Upsert(7, Spec{Mode: ModeWeekDays, Days: []int{1}, Hours: util.Ptr(9), Minutes: util.Ptr(0)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertRollsBackOnInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM auto_update_schedules").
		WithArgs(int64(7)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO auto_update_schedules").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	store := NewStore(db)
	_, err = store.Upsert(7, Spec{Mode: ModeMonthDays, Days: []int{15}, Hours: util.Ptr(6), Minutes: util.Ptr(0)})
	require.Error(t, err)
	assert.False(t, errors.Is(err, errors.ErrConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}
