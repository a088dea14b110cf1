package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/aristath/papertrail/internal/modules/benchmark"
	testingpkg "github.com/aristath/papertrail/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSnapshots struct {
	series []domain.Snapshot
	err    error
	starts []string
}

func (f *fakeSnapshots) List(_ context.Context, start *time.Time) ([]domain.Snapshot, error) {
	if start != nil {
		f.starts = append(f.starts, domain.FormatDate(*start))
	}
	return f.series, f.err
}

func setupRouter(t *testing.T, snapshots *fakeSnapshots) *chi.Mux {
	t.Helper()
	log := zerolog.New(nil).Level(zerolog.Disabled)
	clock := domain.NewFixedClock(time.Date(2026, 1, 6, 12, 0, 0, 0, time.UTC))
	source := testingpkg.NewFakePriceSource().
		SetClose("SPY", "2026-01-05", 100).
		SetClose("SPY", "2026-01-06", 110)
	inception := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	aligner := benchmark.NewAligner(source, snapshots, []string{"SPY"}, inception, clock, log)
	handler := NewHandler(aligner, log)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})
	return r
}

func serve(router http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestCompare(t *testing.T) {
	snapshots := &fakeSnapshots{series: []domain.Snapshot{
		{Date: time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC), TotalReturnPct: 1.5},
	}}
	router := setupRouter(t, snapshots)

	w := serve(router, http.MethodGet, "/api/benchmark?start=2026-01-05")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body struct {
		Data benchmark.Comparison `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "2026-01-05", body.Data.Inception)
	assert.Equal(t, []string{"2026-01-05", "2026-01-06"}, body.Data.Dates)

	require.Len(t, body.Data.Portfolio, 2)
	assert.Nil(t, body.Data.Portfolio[0])
	require.NotNil(t, body.Data.Portfolio[1])
	assert.Equal(t, 1.5, *body.Data.Portfolio[1])

	spy := body.Data.Benchmarks["SPY"]
	require.Len(t, spy, 2)
	require.NotNil(t, spy[0])
	require.NotNil(t, spy[1])
	assert.Equal(t, 0.0, *spy[0])
	assert.Equal(t, 10.0, *spy[1])

	assert.Equal(t, []string{"2026-01-05"}, snapshots.starts)
}

func TestCompare_DefaultsToInception(t *testing.T) {
	snapshots := &fakeSnapshots{}
	router := setupRouter(t, snapshots)

	w := serve(router, http.MethodGet, "/api/benchmark")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"2026-01-02"}, snapshots.starts)
}

func TestCompare_BadStart(t *testing.T) {
	snapshots := &fakeSnapshots{}
	router := setupRouter(t, snapshots)

	w := serve(router, http.MethodGet, "/api/benchmark?start=bad")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])
	assert.Empty(t, snapshots.starts)
}

func TestCompare_SnapshotFailure(t *testing.T) {
	router := setupRouter(t, &fakeSnapshots{err: errors.New("database is locked")})

	w := serve(router, http.MethodGet, "/api/benchmark")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
