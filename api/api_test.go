package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"taskbot/db"
)

func newTestServer(t *testing.T) (http.Handler, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewRouter(db.NewWithPool(mock), zap.NewNop().Sugar()), mock
}

func TestHealth(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	router := NewRouter(db.NewWithPool(mock), zap.NewNop().Sugar())
	mock.ExpectPing()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestGetTask(t *testing.T) {
	router, mock := newTestServer(t)

	due := time.Date(2025, 1, 10, 14, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM tasks WHERE task_code").
		WithArgs("TK0007").
		WillReturnRows(pgxmock.NewRows([]string{
			"task_id", "task_code", "task_name", "chat_id", "due_at", "status", "created_at",
		}).AddRow(int64(7), "TK0007", "Prepare presentation", int64(-100), due, "NEW", due.Add(-time.Hour)))
	mock.ExpectQuery("FROM task_assignments a JOIN users u").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{
			"user_id", "username", "first_name", "last_name", "receive_reminders", "created_at",
		}).AddRow(int64(1), "alice", "Alice", "", true, due.Add(-time.Hour)))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasks/TK0007", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "TK0007")
	assert.Contains(t, rec.Body.String(), "alice")
}

func TestGetTaskNotFound(t *testing.T) {
	router, mock := newTestServer(t)

	mock.ExpectQuery("FROM tasks WHERE task_code").
		WithArgs("TK9999").
		WillReturnRows(pgxmock.NewRows([]string{
			"task_id", "task_code", "task_name", "chat_id", "due_at", "status", "created_at",
		}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasks/TK9999", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateTaskStatusRejectsUnknownStatus(t *testing.T) {
	router, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPatch, "/tasks/TK0007/status",
		strings.NewReader(`{"status":"finished"}`))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUserBadID(t *testing.T) {
	router, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/abc", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
