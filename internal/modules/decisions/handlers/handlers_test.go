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
	"github.com/aristath/papertrail/internal/modules/decisions"
	"github.com/aristath/papertrail/internal/modules/ledger"
	"github.com/aristath/papertrail/internal/modules/pricing"
	"github.com/aristath/papertrail/internal/modules/replay"
	testingpkg "github.com/aristath/papertrail/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type proposerFunc func(ctx context.Context, dc domain.DecisionContext) (*domain.Proposal, error)

func (f proposerFunc) Propose(ctx context.Context, dc domain.DecisionContext) (*domain.Proposal, error) {
	return f(ctx, dc)
}

func setupRouter(t *testing.T, proposer domain.Proposer) *chi.Mux {
	t.Helper()
	ledgerDB, cleanup := testingpkg.NewTestDB(t, "ledger")
	t.Cleanup(cleanup)

	log := zerolog.New(nil).Level(zerolog.Disabled)
	clock := domain.NewFixedClock(time.Date(2026, 1, 9, 12, 0, 0, 0, time.UTC))
	capital := domain.Capital{InitialCapital: 100_000, MaxHoldings: 10}
	events := ledger.NewEventRepository(ledgerDB.Conn(), log)
	positions := ledger.NewPositionRepository(ledgerDB.Conn(), log)
	store := ledger.NewStore(ledgerDB.Conn(), events, positions, capital.MaxHoldings, clock, log)
	engine := replay.NewEngine(events, positions, capital.InitialCapital, false, log)
	source := testingpkg.NewFakePriceSource().SetClose("AAPL", "2026-01-08", 100)

	executor := decisions.NewExecutor(
		decisions.NewRepository(ledgerDB.Conn(), log),
		store,
		decisions.NewContextBuilder(positions, events, engine, source, capital, log),
		engine,
		pricing.NewLookup(source, positions, clock, log),
		capital,
		"test-model",
		clock,
		log,
	)
	executor.SetProposer(proposer)

	handler := NewHandler(executor, clock, log)
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

func TestRunAndGet(t *testing.T) {
	router := setupRouter(t, proposerFunc(func(context.Context, domain.DecisionContext) (*domain.Proposal, error) {
		return &domain.Proposal{
			Summary: "Buy Apple",
			Actions: []domain.ProposedAction{{Action: domain.ActionBuy, Symbol: "AAPL", Reason: "momentum"}},
		}, nil
	}))

	w := serve(router, http.MethodPost, "/api/decisions/run?date=2026-01-08")
	require.Equal(t, http.StatusOK, w.Code)

	var run struct {
		Data decisions.RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
	assert.Equal(t, decisions.StatusCompleted, run.Data.Status)
	require.NotNil(t, run.Data.Record)
	assert.True(t, run.Data.Record.HasChanges)

	w = serve(router, http.MethodPost, "/api/decisions/run?date=2026-01-08")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
	assert.Equal(t, decisions.StatusSkipped, run.Data.Status)

	w = serve(router, http.MethodGet, "/api/decisions/2026-01-08")
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		Data domain.DecisionRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Buy Apple", got.Data.Summary)

	w = serve(router, http.MethodGet, "/api/decisions")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Data struct {
			Count int `json:"count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Data.Count)

	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/api/decisions/2026-01-07").Code)
}

func TestRun_BadDates(t *testing.T) {
	router := setupRouter(t, nil)

	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodPost, "/api/decisions/run?date=yesterday").Code)
	assert.Equal(t, http.StatusBadRequest, serve(router, http.MethodPost, "/api/decisions/run?date=2026-02-01").Code)
}

func TestRun_BackdatedIsConflict(t *testing.T) {
	router := setupRouter(t, proposerFunc(func(context.Context, domain.DecisionContext) (*domain.Proposal, error) {
		return &domain.Proposal{Summary: "hold"}, nil
	}))

	require.Equal(t, http.StatusOK, serve(router, http.MethodPost, "/api/decisions/run?date=2026-01-08").Code)
	assert.Equal(t, http.StatusConflict, serve(router, http.MethodPost, "/api/decisions/run?date=2026-01-07").Code)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/api/decisions/2026-01-07").Code)
}

func TestDeleteFailed(t *testing.T) {
	router := setupRouter(t, proposerFunc(func(context.Context, domain.DecisionContext) (*domain.Proposal, error) {
		return nil, errors.New("upstream timeout")
	}))

	w := serve(router, http.MethodPost, "/api/decisions/run?date=2026-01-08")
	require.Equal(t, http.StatusOK, w.Code)
	var run struct {
		Data decisions.RunResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
	assert.Equal(t, decisions.StatusFailed, run.Data.Status)

	assert.Equal(t, http.StatusOK, serve(router, http.MethodDelete, "/api/decisions/2026-01-08/failed").Code)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodDelete, "/api/decisions/2026-01-08/failed").Code)
	assert.Equal(t, http.StatusNotFound, serve(router, http.MethodGet, "/api/decisions/2026-01-08").Code)
}
