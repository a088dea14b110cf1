package decisions

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aristath/papertrail/internal/domain"
	testingpkg "github.com/aristath/papertrail/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	ledgerDB, cleanup := testingpkg.NewTestDB(t, "ledger")
	t.Cleanup(cleanup)
	return NewRepository(ledgerDB.Conn(), zerolog.New(nil).Level(zerolog.Disabled))
}

func record(date string, status domain.DecisionStatus) *domain.DecisionRecord {
	return &domain.DecisionRecord{
		Date:      day(date),
		RunID:     "run-" + date,
		Status:    status,
		ModelName: "test-model",
		CreatedAt: time.Date(2026, 1, 9, 22, 0, 0, 0, time.UTC),
	}
}

func TestRepository_CreateAndGet(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	rec := record("2026-01-05", domain.DecisionCompleted)
	rec.Summary = "Bought one"
	rec.HasChanges = true
	rec.Report = json.RawMessage(`{"outlook":"neutral"}`)
	rec.Actions = []domain.ExecutedAction{{Action: domain.ActionBuy, Symbol: "AAPL", Price: 100, CostAmount: 10_000}}
	rec.Rejected = []domain.RejectedAction{{Action: domain.ActionBuy, Symbol: "XYZ", Reason: "price unavailable"}}
	require.NoError(t, repo.Create(ctx, rec))
	assert.NotZero(t, rec.ID)

	got, err := repo.GetByDate(ctx, day("2026-01-05"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "Bought one", got.Summary)
	assert.True(t, got.HasChanges)
	assert.JSONEq(t, `{"outlook":"neutral"}`, string(got.Report))
	require.Len(t, got.Actions, 1)
	assert.Equal(t, "AAPL", got.Actions[0].Symbol)
	require.Len(t, got.Rejected, 1)
	assert.Nil(t, got.AccuracyScore)

	missing, err := repo.GetByDate(ctx, day("2026-01-06"))
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepository_CreateDuplicateDate(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, record("2026-01-05", domain.DecisionCompleted)))

	dup := record("2026-01-05", domain.DecisionCompleted)
	dup.RunID = "another-run"
	err := repo.Create(ctx, dup)
	assert.ErrorIs(t, err, ErrDuplicateDecision)
}

func TestRepository_SetAccuracyOnce(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	rec := record("2026-01-05", domain.DecisionCompleted)
	require.NoError(t, repo.Create(ctx, rec))
	require.NoError(t, repo.Create(ctx, record("2026-01-06", domain.DecisionFailed)))
	require.NoError(t, repo.Create(ctx, record("2026-01-08", domain.DecisionCompleted)))

	pending, err := repo.ListPendingAccuracy(ctx, day("2026-01-07"))
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, rec.ID, pending[0].ID)

	details := domain.AccuracyDetails{Method: "hold", LookbackDays: 5, EndDate: day("2026-01-12")}
	at := time.Date(2026, 1, 13, 0, 0, 0, 0, time.UTC)
	updated, err := repo.SetAccuracy(ctx, rec.ID, 70, details, at)
	require.NoError(t, err)
	assert.True(t, updated)

	updated, err = repo.SetAccuracy(ctx, rec.ID, 15, details, at)
	require.NoError(t, err)
	assert.False(t, updated)

	got, err := repo.GetByDate(ctx, day("2026-01-05"))
	require.NoError(t, err)
	require.NotNil(t, got.AccuracyScore)
	assert.InDelta(t, 70, *got.AccuracyScore, 1e-9)
	require.NotNil(t, got.AccuracyDetails)
	assert.Equal(t, "hold", got.AccuracyDetails.Method)
	require.NotNil(t, got.AccuracyEvaluatedAt)
	assert.True(t, got.AccuracyEvaluatedAt.Equal(at))

	pending, err = repo.ListPendingAccuracy(ctx, day("2026-01-07"))
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRepository_DeleteFailedKeepsCompleted(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, record("2026-01-05", domain.DecisionCompleted)))
	require.NoError(t, repo.Create(ctx, record("2026-01-06", domain.DecisionFailed)))

	deleted, err := repo.DeleteFailed(ctx, day("2026-01-05"))
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = repo.DeleteFailed(ctx, day("2026-01-06"))
	require.NoError(t, err)
	assert.True(t, deleted)

	list, err := repo.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "2026-01-05", domain.FormatDate(list[0].Date))

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "2026-01-05", domain.FormatDate(latest.Date))
}
