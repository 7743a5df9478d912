package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 1, 16, 0, 0, 0, time.UTC)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func lastRunAt(t time.Time) func() (time.Time, bool) {
	return func() (time.Time, bool) { return t, true }
}

func noRunYet() (time.Time, bool) { return time.Time{}, false }

func fixedNow() time.Time { return testNow }

func TestHealthyWhenAllChecksPass(t *testing.T) {
	m := NewManager("test", lastRunAt(testNow.Add(-30*time.Second)), fixedNow)
	m.RegisterChecker(NewDatabaseChecker(fakePinger{}))
	m.RegisterChecker(NewCleanupChecker(lastRunAt(testNow.Add(-30*time.Second)), fixedNow, 5*time.Minute))

	resp := m.Check(context.Background())

	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, testNow, resp.ServerTime)
	require.NotNil(t, resp.LastCleanupRunAt)
	assert.Equal(t, testNow.Add(-30*time.Second), *resp.LastCleanupRunAt)
	assert.Equal(t, StatusHealthy, resp.Checks["database"].Status)
	assert.Equal(t, StatusHealthy, resp.Checks["cleanup"].Status)
}

func TestUnreachableDatabaseReports503(t *testing.T) {
	m := NewManager("test", noRunYet, fixedNow)
	m.RegisterChecker(NewDatabaseChecker(fakePinger{err: errors.New("connection refused")}))

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/system/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Nil(t, resp.LastCleanupRunAt)
	assert.Contains(t, resp.Checks["database"].Error, "connection refused")
}

func TestStaleCleanupDegradesButStillServes(t *testing.T) {
	m := NewManager("test", lastRunAt(testNow.Add(-time.Hour)), fixedNow)
	m.RegisterChecker(NewDatabaseChecker(fakePinger{}))
	m.RegisterChecker(NewCleanupChecker(lastRunAt(testNow.Add(-time.Hour)), fixedNow, 5*time.Minute))

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/system/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Equal(t, StatusDegraded, resp.Checks["cleanup"].Status)
}

func TestNoCleanupCycleYetIsDegraded(t *testing.T) {
	c := NewCleanupChecker(noRunYet, fixedNow, 5*time.Minute)
	result := c.Check(context.Background())
	assert.Equal(t, StatusDegraded, result.Status)
	assert.Equal(t, "no cleanup cycle yet", result.Message)
}
