package evaluation

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/aristath/papertrail/internal/modules/pricing"
	"github.com/aristath/papertrail/pkg/formulas"
	"github.com/rs/zerolog"
)

// DefaultLookbackDays is the evaluation window in trading days
const DefaultLookbackDays = 5

// UnpriceableGraceDays is how many trading days past the window end a
// record with no priceable action keeps being retried before it is closed
// with a neutral score
const UnpriceableGraceDays = 5

// DecisionStore reads unscored decisions and stores their scores
type DecisionStore interface {
	ListPendingAccuracy(ctx context.Context, cutoff time.Time) ([]domain.DecisionRecord, error)
	SetAccuracy(ctx context.Context, id int64, score float64, details domain.AccuracyDetails, at time.Time) (bool, error)
}

// SnapshotReader finds equity curve rows around a date
type SnapshotReader interface {
	NearestOnOrBefore(ctx context.Context, date time.Time) (*domain.Snapshot, error)
	NearestOnOrAfter(ctx context.Context, date time.Time) (*domain.Snapshot, error)
}

// EvaluationResult summarizes one evaluation pass
type EvaluationResult struct {
	Errors    []string `json:"errors,omitempty"`
	Evaluated int      `json:"evaluated"`
	Skipped   int      `json:"skipped"`
}

// Evaluator scores decisions once their lookback window has passed
type Evaluator struct {
	decisions DecisionStore
	snapshots SnapshotReader
	prices    pricing.PriceLookup
	lookback  int
	clock     domain.Clock
	log       zerolog.Logger
}

// NewEvaluator creates a new accuracy evaluator
func NewEvaluator(
	decisions DecisionStore,
	snapshots SnapshotReader,
	prices pricing.PriceLookup,
	lookbackDays int,
	clock domain.Clock,
	log zerolog.Logger,
) *Evaluator {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	return &Evaluator{
		decisions: decisions,
		snapshots: snapshots,
		prices:    prices,
		lookback:  lookbackDays,
		clock:     clock,
		log:       log.With().Str("service", "accuracy_evaluator").Logger(),
	}
}

// WindowEnd is the date a decision made on date is judged at
func (e *Evaluator) WindowEnd(date time.Time) time.Time {
	return domain.NextWeekday(domain.AddTradingDays(date, e.lookback))
}

// EvaluatePending scores every completed, unscored decision whose window has closed
func (e *Evaluator) EvaluatePending(ctx context.Context) (*EvaluationResult, error) {
	today := domain.Today(e.clock)
	cutoff := domain.AddTradingDays(today, -e.lookback)

	pending, err := e.decisions.ListPendingAccuracy(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending decisions: %w", err)
	}

	result := &EvaluationResult{}
	for _, rec := range pending {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		end := e.WindowEnd(rec.Date)
		if end.After(today) {
			result.Skipped++
			continue
		}

		score, details, ok, err := e.Evaluate(ctx, rec, end)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", domain.FormatDate(rec.Date), err))
			continue
		}
		if !ok {
			if domain.AddTradingDays(end, UnpriceableGraceDays).After(today) {
				e.log.Info().Str("date", domain.FormatDate(rec.Date)).Msg("No prices for evaluated actions, retrying later")
				result.Skipped++
				continue
			}
			score = HoldNeutralScore
			details.Method = "unpriceable"
			e.log.Warn().
				Str("date", domain.FormatDate(rec.Date)).
				Strs("symbols", details.Skipped).
				Msg("No prices after grace period, closing with neutral score")
		}

		updated, err := e.decisions.SetAccuracy(ctx, rec.ID, score, details, e.clock.Now())
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", domain.FormatDate(rec.Date), err))
			continue
		}
		if !updated {
			result.Skipped++
			continue
		}

		e.log.Info().
			Str("date", domain.FormatDate(rec.Date)).
			Str("method", details.Method).
			Float64("score", score).
			Msg("Decision accuracy evaluated")
		result.Evaluated++
	}

	return result, nil
}

// Evaluate scores one record over [rec.Date, end]. ok is false when the
// record has actions but none of them could be priced.
func (e *Evaluator) Evaluate(ctx context.Context, rec domain.DecisionRecord, end time.Time) (float64, domain.AccuracyDetails, bool, error) {
	details := domain.AccuracyDetails{
		EndDate:      end,
		LookbackDays: e.lookback,
	}

	if rec.IsHold() {
		details.Method = "hold"
		drift, err := e.drift(ctx, rec.Date, end)
		if err != nil {
			return 0, details, false, err
		}
		details.DriftPct = drift
		return formulas.Round(ScoreHold(drift), 2), details, true, nil
	}

	details.Method = "actions"
	var scores []float64
	for _, a := range rec.Actions {
		start := a.Price
		if q, ok := e.prices.Price(ctx, a.Symbol, rec.Date); ok {
			start = q.Price
		}
		q, ok := e.prices.Price(ctx, a.Symbol, end)
		if !ok || start <= 0 {
			details.Skipped = append(details.Skipped, a.Symbol)
			continue
		}

		change := formulas.Round(formulas.PercentChange(start, q.Price), 2)
		score := ScoreAction(a.Action, change)
		scores = append(scores, score)
		details.Actions = append(details.Actions, domain.ActionScore{
			Action:     a.Action,
			Symbol:     a.Symbol,
			PriceStart: start,
			PriceEnd:   q.Price,
			ChangePct:  change,
			Score:      score,
		})
	}

	if len(scores) == 0 {
		return 0, details, false, nil
	}
	return formulas.Round(formulas.Mean(scores), 2), details, true, nil
}

// drift is the percent change of portfolio value from the snapshot on or
// before start to the snapshot on or after end
func (e *Evaluator) drift(ctx context.Context, start, end time.Time) (*float64, error) {
	before, err := e.snapshots.NearestOnOrBefore(ctx, start)
	if err != nil {
		return nil, err
	}
	after, err := e.snapshots.NearestOnOrAfter(ctx, end)
	if err != nil {
		return nil, err
	}
	if before == nil || after == nil || before.PortfolioValue <= 0 {
		return nil, nil
	}

	drift := formulas.Round(formulas.PercentChange(before.PortfolioValue, after.PortfolioValue), 4)
	return &drift, nil
}
