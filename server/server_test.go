package server

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/serpmon/serpmon/async"
	"github.com/serpmon/serpmon/config"
	serpmontest "github.com/serpmon/serpmon/internal/testing"
	"github.com/serpmon/serpmon/lists"
	"github.com/serpmon/serpmon/quota"
	"github.com/serpmon/serpmon/schedule"
	"github.com/serpmon/serpmon/scheduler"
)

func newTestServer(t *testing.T) (*Server, *sql.DB) {
	t.Helper()
	db := serpmontest.CreateTestDB(t)
	log := zap.NewNop().Sugar()

	cfg := &config.Config{}
	cfg.Quota.MonthlyQueryLimit = 100

	sched, err := scheduler.New(db, async.NewQueue(db), "UTC", log)
	require.NoError(t, err)

	listStore := lists.NewStore(db)
	orchestrator := schedule.NewOrchestrator(schedule.NewStore(db), listStore, sched, log)
	return New(cfg, orchestrator, listStore, quota.NewLedger(db), sched, log), db
}

func createList(t *testing.T, s *Server, name string, queries []string) int64 {
	t.Helper()
	body, err := json.Marshal(CreateListRequest{Name: name, Queries: queries})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/lists", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.HandleLists(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created lists.List
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	return created.ID
}

func postSchedule(t *testing.T, s *Server, listID int64, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost,
		"/api/lists/"+itoa(listID)+"/schedule", bytes.NewBufferString(body))
	req.Header.Set("X-Account-ID", "acct_1")
	w := httptest.NewRecorder()
	s.HandleList(w, req)
	return w
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func TestCreateList(t *testing.T) {
	s, _ := newTestServer(t)
	listID := createList(t, s, "watch", []string{"alpha"})
	assert.NotZero(t, listID)
}

func TestCreateListRequiresName(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/lists", bytes.NewBufferString(`{"queries":["a"]}`))
	w := httptest.NewRecorder()
	s.HandleLists(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetList(t *testing.T) {
	s, _ := newTestServer(t)
	listID := createList(t, s, "watch", []string{"alpha", "beta"})

	req := httptest.NewRequest(http.MethodGet, "/api/lists/"+itoa(listID), nil)
	w := httptest.NewRecorder()
	s.HandleList(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var got lists.List
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "watch", got.Name)
	assert.Len(t, got.Queries, 2)
}

func TestGetListNotFound(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/lists/999", nil)
	w := httptest.NewRecorder()
	s.HandleList(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetListBadID(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/lists/abc", nil)
	w := httptest.NewRecorder()
	s.HandleList(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSetSchedule(t *testing.T) {
	s, db := newTestServer(t)
	listID := createList(t, s, "watch", []string{"alpha"})

	w := postSchedule(t, s, listID, `{"mode":"WeekDays","days":[1,5],"hours":9,"minutes":30}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// The durable registration exists and is bound to the acting account
	var payload string
	err := db.QueryRow(`SELECT payload FROM scheduler_jobs`).Scan(&payload)
	require.NoError(t, err)
	assert.Contains(t, payload, `"account_id":"acct_1"`)
}

func TestSetScheduleInvalidSpec(t *testing.T) {
	s, _ := newTestServer(t)
	listID := createList(t, s, "watch", nil)

	w := postSchedule(t, s, listID, `{"mode":"WeekDays","days":[8],"hours":9,"minutes":0}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestSetScheduleUnknownList(t *testing.T) {
	s, _ := newTestServer(t)

	w := postSchedule(t, s, 999, `{"mode":"WeekDays","days":[1],"hours":9,"minutes":0}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSetScheduleMalformedBody(t *testing.T) {
	s, _ := newTestServer(t)
	listID := createList(t, s, "watch", nil)

	w := postSchedule(t, s, listID, `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetScheduleNullWhenAbsent(t *testing.T) {
	s, _ := newTestServer(t)
	listID := createList(t, s, "watch", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/lists/"+itoa(listID)+"/schedule", nil)
	w := httptest.NewRecorder()
	s.HandleList(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null\n", w.Body.String())
}

func TestGetScheduleRoundTrip(t *testing.T) {
	s, _ := newTestServer(t)
	listID := createList(t, s, "watch", nil)

	w := postSchedule(t, s, listID, `{"mode":"MonthDays","days":[1,15],"hours":6,"minutes":0}`)
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/lists/"+itoa(listID)+"/schedule", nil)
	rec := httptest.NewRecorder()
	s.HandleList(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var got schedule.Schedule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, schedule.ModeMonthDays, got.Mode)
	assert.Equal(t, []int{1, 15}, got.Days)
	assert.Equal(t, 6, *got.Hours)
}

func TestDeleteList(t *testing.T) {
	s, _ := newTestServer(t)
	listID := createList(t, s, "watch", nil)

	w := postSchedule(t, s, listID, `{"mode":"WeekDays","days":[1],"hours":9,"minutes":0}`)
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodDelete, "/api/lists/"+itoa(listID), nil)
	rec := httptest.NewRecorder()
	s.HandleList(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// List and its scheduler registration are both gone
	getReq := httptest.NewRequest(http.MethodGet, "/api/lists/"+itoa(listID), nil)
	getRec := httptest.NewRecorder()
	s.HandleList(getRec, getReq)
	assert.Equal(t, http.StatusNotFound, getRec.Code)

	regs, err := s.scheduler.List()
	require.NoError(t, err)
	assert.Empty(t, regs)
}

func TestQuotaReset(t *testing.T) {
	s, db := newTestServer(t)

	_, err := db.Exec(`INSERT INTO accounts (id, email, role, is_active) VALUES
		('acct_search', 's@example.com', 'Search', 1),
		('acct_viewer', 'v@example.com', 'Viewer', 1)`)
	require.NoError(t, err)
	require.NoError(t, s.ledger.EnsureCounter("acct_search", 5))
	require.NoError(t, s.ledger.EnsureCounter("acct_viewer", 5))

	req := httptest.NewRequest(http.MethodPut, "/api/quota/reset", nil)
	w := httptest.NewRecorder()
	s.HandleQuotaReset(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	remaining, err := s.ledger.Remaining("acct_search")
	require.NoError(t, err)
	assert.Equal(t, 100, remaining)

	remaining, err = s.ledger.Remaining("acct_viewer")
	require.NoError(t, err)
	assert.Equal(t, 5, remaining)
}

func TestQuotaResetMethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/quota/reset", nil)
	w := httptest.NewRecorder()
	s.HandleQuotaReset(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestSchedulerJobsListing(t *testing.T) {
	s, _ := newTestServer(t)
	listID := createList(t, s, "watch", nil)

	w := postSchedule(t, s, listID, `{"mode":"WeekDays","days":[1],"hours":9,"minutes":0}`)
	require.Equal(t, http.StatusOK, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/scheduler/jobs", nil)
	rec := httptest.NewRecorder()
	s.HandleSchedulerJobs(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Jobs  []scheduler.Registration `json:"jobs"`
		Count int                      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, "0 9 * * 1", resp.Jobs[0].CronSpec)
}
