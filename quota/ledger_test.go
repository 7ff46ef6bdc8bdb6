package quota

import (
	"database/sql"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serpmon/serpmon/errors"
	serpmontest "github.com/serpmon/serpmon/internal/testing"
)

func createTestAccount(t *testing.T, db *sql.DB, id, role string, active bool) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO accounts (id, email, role, is_active) VALUES (?, ?, ?, ?)`,
		id, id+"@example.com", role, active,
	)
	require.NoError(t, err)
}

func TestDecrement(t *testing.T) {
	db := serpmontest.CreateTestDB(t)
	ledger := NewLedger(db)
	createTestAccount(t, db, "acct_1", "Search", true)
	require.NoError(t, ledger.EnsureCounter("acct_1", 10))

	remaining, err := ledger.Decrement("acct_1", 3)
	require.NoError(t, err)
	assert.Equal(t, 7, remaining)

	remaining, err = ledger.Decrement("acct_1", 7)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestDecrementExceedsQuota(t *testing.T) {
	db := serpmontest.CreateTestDB(t)
	ledger := NewLedger(db)
	createTestAccount(t, db, "acct_1", "Search", true)
	require.NoError(t, ledger.EnsureCounter("acct_1", 5))

	_, err := ledger.Decrement("acct_1", 6)
	require.Error(t, err)
	assert.True(t, errors.IsQuotaExceededError(err))

	// Counter is untouched on failure
	remaining, err := ledger.Remaining("acct_1")
	require.NoError(t, err)
	assert.Equal(t, 5, remaining)
}

func TestDecrementExactlyToZero(t *testing.T) {
	db := serpmontest.CreateTestDB(t)
	ledger := NewLedger(db)
	createTestAccount(t, db, "acct_1", "Search", true)
	require.NoError(t, ledger.EnsureCounter("acct_1", 5))

	remaining, err := ledger.Decrement("acct_1", 5)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)

	_, err = ledger.Decrement("acct_1", 1)
	assert.True(t, errors.IsQuotaExceededError(err))
}

func TestDecrementUnknownAccount(t *testing.T) {
	db := serpmontest.CreateTestDB(t)
	ledger := NewLedger(db)

	_, err := ledger.Decrement("acct_missing", 1)
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestDecrementNegativeAmount(t *testing.T) {
	db := serpmontest.CreateTestDB(t)
	ledger := NewLedger(db)
	createTestAccount(t, db, "acct_1", "Search", true)
	require.NoError(t, ledger.EnsureCounter("acct_1", 5))

	_, err := ledger.Decrement("acct_1", -1)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestDecrementConcurrent(t *testing.T) {
	db := serpmontest.CreateTestDB(t)
	ledger := NewLedger(db)
	createTestAccount(t, db, "acct_1", "Search", true)
	require.NoError(t, ledger.EnsureCounter("acct_1", 100))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Decrement("acct_1", 5)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// No lost updates: 20 * 5 consumed exactly
	remaining, err := ledger.Remaining("acct_1")
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestResetAllOnlyEligibleAccounts(t *testing.T) {
	db := serpmontest.CreateTestDB(t)
	ledger := NewLedger(db)

	createTestAccount(t, db, "acct_search", "Search", true)
	createTestAccount(t, db, "acct_super", "Superuser", true)
	createTestAccount(t, db, "acct_viewer", "Viewer", true)
	createTestAccount(t, db, "acct_inactive", "Search", false)
	for _, id := range []string{"acct_search", "acct_super", "acct_viewer", "acct_inactive"} {
		require.NoError(t, ledger.EnsureCounter(id, 2))
	}

	reset, err := ledger.ResetAll(100)
	require.NoError(t, err)
	assert.Equal(t, 2, reset)

	for id, want := range map[string]int{
		"acct_search":   100,
		"acct_super":    100,
		"acct_viewer":   2,
		"acct_inactive": 2,
	} {
		remaining, err := ledger.Remaining(id)
		require.NoError(t, err)
		assert.Equal(t, want, remaining, "account %s", id)
	}
}

func TestResetAllNegativeLimit(t *testing.T) {
	db := serpmontest.CreateTestDB(t)
	ledger := NewLedger(db)

	_, err := ledger.ResetAll(-1)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestEnsureCounterKeepsExisting(t *testing.T) {
	db := serpmontest.CreateTestDB(t)
	ledger := NewLedger(db)
	createTestAccount(t, db, "acct_1", "Search", true)

	require.NoError(t, ledger.EnsureCounter("acct_1", 10))
	_, err := ledger.Decrement("acct_1", 4)
	require.NoError(t, err)

	// Re-ensuring must not reset the counter
	require.NoError(t, ledger.EnsureCounter("acct_1", 10))
	remaining, err := ledger.Remaining("acct_1")
	require.NoError(t, err)
	assert.Equal(t, 6, remaining)
}

func TestRemainingUnknownAccount(t *testing.T) {
	db := serpmontest.CreateTestDB(t)
	ledger := NewLedger(db)

	_, err := ledger.Remaining("acct_missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}
