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

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(context.Context) error {
	return f.err
}

type fakeSchedule struct {
	dates map[string]time.Time
	err   error
}

func (f *fakeSchedule) GetNextRecalibrationDate(_ context.Context, stream string) (time.Time, error) {
	if f.err != nil {
		return time.Time{}, f.err
	}
	return f.dates[stream], nil
}

func newTestServer(cfg Config) *Server {
	cfg.ServiceName = "fightpulse-calibration"
	cfg.Port = "0"
	return NewServer(cfg)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(Config{Version: "1.4.0", Commit: "abc1234"})

	rec := httptest.NewRecorder()
	s.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "fightpulse-calibration", resp.Service)
	assert.Equal(t, "1.4.0", resp.Version)
	assert.Equal(t, "abc1234", resp.Commit)
}

func TestHandleLive(t *testing.T) {
	s := newTestServer(Config{})

	rec := httptest.NewRecorder()
	s.handleLive(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleReadyBeforeStartup(t *testing.T) {
	s := newTestServer(Config{})

	rec := httptest.NewRecorder()
	s.handleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp ReadyResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "not_ready", resp.Status)
	assert.Equal(t, "not_ready", resp.Checks["service"])
}

func TestHandleReadyHealthy(t *testing.T) {
	s := newTestServer(Config{DB: &fakePinger{}})
	s.SetReady(true)

	rec := httptest.NewRecorder()
	s.handleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ReadyResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "ok", resp.Checks["service"])
	assert.Equal(t, "ok", resp.Checks["database"])
}

func TestHandleReadyDatabaseDown(t *testing.T) {
	s := newTestServer(Config{DB: &fakePinger{err: errors.New("connection refused")}})
	s.SetReady(true)

	rec := httptest.NewRecorder()
	s.handleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp ReadyResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Contains(t, resp.Checks["database"], "connection refused")
}

func TestHandleStatus(t *testing.T) {
	due := time.Date(2026, 10, 8, 6, 0, 0, 0, time.UTC)
	s := newTestServer(Config{
		Streams:  []string{"ufc", "regional"},
		Schedule: &fakeSchedule{dates: map[string]time.Time{"ufc": due}},
	})

	rec := httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Streams, 2)
	assert.Equal(t, "ufc", resp.Streams[0].Stream)
	assert.True(t, due.Equal(resp.Streams[0].NextRecalibration))

	// Zero value for the stream the schedule does not know.
	assert.True(t, resp.Streams[1].NextRecalibration.IsZero())
}

func TestHandleStatusLookupFailure(t *testing.T) {
	s := newTestServer(Config{
		Streams:  []string{"ufc"},
		Schedule: &fakeSchedule{err: errors.New("store down")},
	})

	rec := httptest.NewRecorder()
	s.handleStatus(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Streams, 1)
	assert.Equal(t, "store down", resp.Streams[0].Error)
}

func TestDefaultPort(t *testing.T) {
	t.Setenv("HEALTH_PORT", "")
	s := NewServer(Config{})
	assert.Equal(t, "8080", s.port)

	t.Setenv("HEALTH_PORT", "9191")
	s = NewServer(Config{})
	assert.Equal(t, "9191", s.port)
}
