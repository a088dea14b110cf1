package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/papertrail/internal/config"
	"github.com/aristath/papertrail/internal/di"
	"github.com/aristath/papertrail/internal/domain"
	"github.com/aristath/papertrail/internal/scheduler"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := &config.Config{
		DataDir:              t.TempDir(),
		InitialCapital:       100_000,
		MaxHoldings:          10,
		InceptionDate:        time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		BenchmarkTickers:     []string{"SPY"},
		ModelName:            "test-model",
		DecisionServiceURL:   "http://localhost:9000",
		AccuracyLookbackDays: 5,
	}
	log := zerolog.New(nil).Level(zerolog.Disabled)
	clock := domain.NewFixedClock(time.Date(2026, 1, 9, 12, 0, 0, 0, time.UTC))

	container, jobs, err := di.WireWithClock(cfg, clock, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close() })

	return New(Config{
		Log:       log,
		Container: container,
		Jobs:      jobs,
		Scheduler: scheduler.New(log),
		Port:      0,
		DevMode:   true,
	})
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "papertrail", body["service"])
}

func TestServer_SystemStatus(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/system/status", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var status SystemStatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, 0, status.LedgerEvents)
	assert.Equal(t, 0, status.OpenPositions)
	assert.Contains(t, status.Jobs, "daily_decision")
	assert.Contains(t, status.Jobs, "backup")
}

func TestServer_DatabaseStats(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/system/database/stats", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var stats DatabaseStatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	require.Len(t, stats.Databases, 3)
	assert.Equal(t, "cache", stats.Databases[0].Name)
	assert.Equal(t, "ledger", stats.Databases[1].Name)
	assert.Equal(t, "portfolio", stats.Databases[2].Name)
}

func TestServer_ModuleRoutesMounted(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{
		"/api/ledger/positions",
		"/api/ledger/events",
		"/api/snapshots",
		"/api/decisions",
		"/api/portfolio/summary",
	} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			w := httptest.NewRecorder()
			s.Router().ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
		})
	}
}

func TestServer_TriggerUnknownJob(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/system/jobs/nope", nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
