package decisions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/aristath/papertrail/internal/modules/ledger"
	"github.com/aristath/papertrail/internal/modules/pricing"
	"github.com/aristath/papertrail/pkg/formulas"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MinBuyAmount is the smallest cash commitment a BUY may make
const MinBuyAmount = 1.0

var (
	// ErrNoProposer is recorded when no decision proposer is configured
	ErrNoProposer = errors.New("no decision proposer configured")
	// ErrFutureDate is returned when asked to decide a date after today
	ErrFutureDate = errors.New("cannot run a decision for a future date")
	// ErrBackdated is returned when the ledger or the decision log already holds a later date
	ErrBackdated = errors.New("cannot run a decision before the latest recorded date")
)

// RunStatus is the terminal state of one executor run
type RunStatus string

const (
	StatusSkipped   RunStatus = "skipped"
	StatusFailed    RunStatus = "failed"
	StatusCompleted RunStatus = "completed"
)

// RunResult is the outcome of Executor.Run
type RunResult struct {
	Record   *domain.DecisionRecord `json:"record"`
	Refresh  *pricing.RefreshResult `json:"refresh,omitempty"`
	Snapshot *domain.Snapshot       `json:"snapshot,omitempty"`
	Status   RunStatus              `json:"status"`
	Warnings []string               `json:"warnings,omitempty"`
}

// Refresher updates current prices of open positions
type Refresher interface {
	Refresh(ctx context.Context) (*pricing.RefreshResult, error)
}

// Snapshotter materializes the equity curve row for a date
type Snapshotter interface {
	Materialize(ctx context.Context, date time.Time) (*domain.Snapshot, error)
}

// Executor applies the proposer's actions to the ledger once per date
type Executor struct {
	repo      *Repository
	store     *ledger.Store
	builder   *ContextBuilder
	cash      CashReplayer
	prices    pricing.PriceLookup
	proposer  domain.Proposer
	refresher Refresher
	snapshots Snapshotter
	capital   domain.Capital
	modelName string
	clock     domain.Clock
	log       zerolog.Logger
}

// NewExecutor creates a new decision executor
func NewExecutor(
	repo *Repository,
	store *ledger.Store,
	builder *ContextBuilder,
	cash CashReplayer,
	prices pricing.PriceLookup,
	capital domain.Capital,
	modelName string,
	clock domain.Clock,
	log zerolog.Logger,
) *Executor {
	return &Executor{
		repo:      repo,
		store:     store,
		builder:   builder,
		cash:      cash,
		prices:    prices,
		capital:   capital,
		modelName: modelName,
		clock:     clock,
		log:       log.With().Str("service", "decision_executor").Logger(),
	}
}

// SetProposer sets the default decision proposer
func (e *Executor) SetProposer(p domain.Proposer) {
	e.proposer = p
}

// SetFollowUp sets the price refresh and snapshot run after a completed decision.
// Either may be nil.
func (e *Executor) SetFollowUp(refresher Refresher, snapshots Snapshotter) {
	e.refresher = refresher
	e.snapshots = snapshots
}

// Repository returns the decision record repository
func (e *Executor) Repository() *Repository {
	return e.repo
}

// Run executes the decision cycle for date with the default proposer
func (e *Executor) Run(ctx context.Context, date time.Time) (*RunResult, error) {
	return e.RunWith(ctx, date, e.proposer)
}

// RunWith executes the decision cycle for date. An existing record for the
// date, completed or failed, is returned unchanged.
func (e *Executor) RunWith(ctx context.Context, date time.Time, proposer domain.Proposer) (*RunResult, error) {
	date = domain.Day(date)
	if date.After(domain.Today(e.clock)) {
		return nil, fmt.Errorf("%w: %s", ErrFutureDate, domain.FormatDate(date))
	}

	existing, err := e.repo.GetByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		e.log.Info().
			Str("date", domain.FormatDate(date)).
			Str("status", string(existing.Status)).
			Msg("Decision already recorded, skipping")
		return &RunResult{Record: existing, Status: StatusSkipped}, nil
	}

	if err := e.checkNotBackdated(ctx, date); err != nil {
		return nil, err
	}

	start := time.Now()
	run := &run{
		executor: e,
		record: &domain.DecisionRecord{
			Date:      date,
			RunID:     uuid.New().String(),
			ModelName: e.modelName,
			Actions:   []domain.ExecutedAction{},
		},
	}

	if err := run.execute(ctx, proposer); err != nil {
		return e.persistFailed(ctx, run.record, err, start)
	}

	rec := run.record
	rec.Status = domain.DecisionCompleted
	rec.HasChanges = len(rec.Actions) > 0
	rec.ElapsedSeconds = formulas.Round(time.Since(start).Seconds(), 2)
	rec.CreatedAt = e.clock.Now()
	if err := e.repo.Create(ctx, rec); err != nil {
		return e.duplicateOrError(ctx, rec, err)
	}

	e.log.Info().
		Str("date", domain.FormatDate(date)).
		Str("run_id", rec.RunID).
		Int("executed", len(rec.Actions)).
		Int("rejected", len(rec.Rejected)).
		Msg("Decision completed")

	result := &RunResult{Record: rec, Status: StatusCompleted}
	e.followUp(ctx, date, result)
	return result, nil
}

// checkNotBackdated rejects a date earlier than the newest ledger event or
// decision record. Same-day events are allowed.
func (e *Executor) checkNotBackdated(ctx context.Context, date time.Time) error {
	latestEvent, err := e.store.Events().LatestDate(ctx)
	if err != nil {
		return err
	}
	if latestEvent != nil && date.Before(*latestEvent) {
		return fmt.Errorf("%w: %s is before ledger event on %s",
			ErrBackdated, domain.FormatDate(date), domain.FormatDate(*latestEvent))
	}

	latestDecision, err := e.repo.Latest(ctx)
	if err != nil {
		return err
	}
	if latestDecision != nil && date.Before(latestDecision.Date) {
		return fmt.Errorf("%w: %s is before decision on %s",
			ErrBackdated, domain.FormatDate(date), domain.FormatDate(latestDecision.Date))
	}
	return nil
}

// followUp refreshes prices and materializes the snapshot. Failures are
// reported as warnings; the decision record stands.
func (e *Executor) followUp(ctx context.Context, date time.Time, result *RunResult) {
	if e.refresher != nil {
		refresh, err := e.refresher.Refresh(ctx)
		if err != nil {
			e.log.Warn().Err(err).Msg("Post-decision price refresh failed")
			result.Warnings = append(result.Warnings, fmt.Sprintf("price refresh: %v", err))
		}
		result.Refresh = refresh
	}
	if e.snapshots != nil {
		snap, err := e.snapshots.Materialize(ctx, date)
		if err != nil {
			e.log.Warn().Err(err).Msg("Post-decision snapshot failed")
			result.Warnings = append(result.Warnings, fmt.Sprintf("snapshot: %v", err))
		}
		result.Snapshot = snap
	}
}

func (e *Executor) persistFailed(ctx context.Context, rec *domain.DecisionRecord, cause error, start time.Time) (*RunResult, error) {
	rec.Status = domain.DecisionFailed
	rec.HasChanges = false
	rec.ErrorMessage = cause.Error()
	rec.ElapsedSeconds = formulas.Round(time.Since(start).Seconds(), 2)
	rec.CreatedAt = e.clock.Now()

	e.log.Error().
		Err(cause).
		Str("date", domain.FormatDate(rec.Date)).
		Str("run_id", rec.RunID).
		Msg("Decision failed")

	if err := e.repo.Create(ctx, rec); err != nil {
		return e.duplicateOrError(ctx, rec, err)
	}
	return &RunResult{Record: rec, Status: StatusFailed}, nil
}

// duplicateOrError resolves a lost race on the date's record by returning the winner
func (e *Executor) duplicateOrError(ctx context.Context, rec *domain.DecisionRecord, err error) (*RunResult, error) {
	if !errors.Is(err, ErrDuplicateDecision) {
		return nil, err
	}
	existing, getErr := e.repo.GetByDate(ctx, rec.Date)
	if getErr != nil || existing == nil {
		return nil, err
	}
	e.log.Warn().
		Str("date", domain.FormatDate(rec.Date)).
		Str("run_id", rec.RunID).
		Msg("Concurrent decision run detected, keeping existing record")
	return &RunResult{Record: existing, Status: StatusSkipped}, nil
}

// run holds the state of one decision cycle
type run struct {
	executor *Executor
	record   *domain.DecisionRecord
	// pool holds same-cycle sale proceeds, one entry per SELL, consumed in order by BUYs
	pool []float64
}

func (r *run) execute(ctx context.Context, proposer domain.Proposer) error {
	e := r.executor
	if proposer == nil {
		return ErrNoProposer
	}

	dc, err := e.builder.Build(ctx, r.record.Date)
	if err != nil {
		return fmt.Errorf("failed to build decision context: %w", err)
	}

	proposal, err := proposer.Propose(ctx, dc)
	if err != nil {
		return fmt.Errorf("proposer failed: %w", err)
	}
	if proposal == nil {
		return errors.New("proposer returned no proposal")
	}

	r.record.Summary = proposal.Summary
	r.record.MarketRegime = proposal.MarketRegime
	r.record.ConfidenceLevel = proposal.ConfidenceLevel
	r.record.Report = proposal.Report
	r.record.RawResponse = proposal.RawResponse

	var sells, buys []domain.ProposedAction
	for _, a := range proposal.Actions {
		action, err := domain.ParseAction(string(a.Action))
		if err != nil {
			r.reject(a, err.Error())
			continue
		}
		a.Action = action
		a.Symbol = strings.ToUpper(strings.TrimSpace(a.Symbol))
		if a.Symbol == "" {
			r.reject(a, "missing symbol")
			continue
		}
		if a.Name == "" {
			a.Name = a.Symbol
		}
		if action == domain.ActionSell {
			sells = append(sells, a)
		} else {
			buys = append(buys, a)
		}
	}

	for _, a := range sells {
		r.sell(ctx, a)
	}

	if len(buys) == 0 {
		return nil
	}

	balance, err := e.cash.CashAsOf(ctx, &r.record.Date)
	if err != nil {
		return fmt.Errorf("failed to replay cash: %w", err)
	}
	cash := balance.Cash
	for _, a := range buys {
		cash -= r.buy(ctx, a, cash)
	}
	return nil
}

func (r *run) sell(ctx context.Context, a domain.ProposedAction) {
	e := r.executor
	date := r.record.Date

	position, err := e.store.Positions().GetBySymbol(ctx, a.Symbol)
	if err != nil {
		r.reject(a, fmt.Sprintf("position lookup failed: %v", err))
		return
	}
	if position == nil {
		r.reject(a, "not held")
		return
	}

	price := position.LastKnownPrice()
	if q, ok := e.prices.Price(ctx, a.Symbol, date); ok {
		price = q.Price
	} else {
		e.log.Warn().Str("symbol", a.Symbol).Float64("price", price).Msg("No quote for SELL, using last known price")
	}

	event, err := e.store.RecordSell(ctx, ledger.SellRequest{
		Date:       date,
		Symbol:     a.Symbol,
		Reason:     a.Reason,
		DecisionID: r.record.RunID,
		Price:      price,
	})
	if err != nil {
		r.reject(a, err.Error())
		return
	}

	proceeds := event.Proceeds()
	r.pool = append(r.pool, proceeds)
	r.record.Actions = append(r.record.Actions, domain.ExecutedAction{
		Action:      domain.ActionSell,
		Symbol:      event.Symbol,
		Name:        event.Name,
		Reason:      event.Reason,
		Price:       event.Price,
		Shares:      position.Shares(),
		CostAmount:  event.CostAmount,
		Proceeds:    formulas.RoundMoney(proceeds),
		RealizedPct: event.RealizedPct,
		EventID:     event.EventID,
	})
}

// buy applies one BUY and returns the cash it committed
func (r *run) buy(ctx context.Context, a domain.ProposedAction, cash float64) float64 {
	e := r.executor
	date := r.record.Date

	held, err := e.store.Positions().GetBySymbol(ctx, a.Symbol)
	if err != nil {
		r.reject(a, fmt.Sprintf("position lookup failed: %v", err))
		return 0
	}
	if held != nil {
		r.reject(a, "already held")
		return 0
	}

	count, err := e.store.Positions().Count(ctx)
	if err != nil {
		r.reject(a, fmt.Sprintf("position count failed: %v", err))
		return 0
	}
	if e.capital.MaxHoldings > 0 && count >= e.capital.MaxHoldings {
		r.reject(a, fmt.Sprintf("max holdings reached (%d)", e.capital.MaxHoldings))
		return 0
	}

	q, ok := e.prices.Price(ctx, a.Symbol, date)
	if !ok || q.Price <= 0 {
		r.reject(a, "price unavailable")
		return 0
	}

	amount, fromPool := r.size(cash)
	if amount < MinBuyAmount {
		r.reject(a, "no capital available")
		return 0
	}

	event, err := e.store.RecordBuy(ctx, ledger.BuyRequest{
		Date:       date,
		Symbol:     a.Symbol,
		Name:       a.Name,
		Reason:     a.Reason,
		Sector:     a.Sector,
		Industry:   a.Industry,
		DecisionID: r.record.RunID,
		Price:      q.Price,
		CostAmount: amount,
	})
	if err != nil {
		r.reject(a, err.Error())
		return 0
	}
	if fromPool {
		r.pool = r.pool[1:]
	}

	executed := domain.ExecutedAction{
		Action:     domain.ActionBuy,
		Symbol:     event.Symbol,
		Name:       event.Name,
		Reason:     event.Reason,
		Price:      event.Price,
		Shares:     event.CostAmount / event.Price,
		CostAmount: event.CostAmount,
		EventID:    event.EventID,
	}
	if fromPool {
		executed.FundedFromProceeds = event.CostAmount
	}
	r.record.Actions = append(r.record.Actions, executed)
	return event.CostAmount
}

// size picks the BUY amount: the next unspent sale's proceeds when there is
// one, else a fresh per-stock allocation. Both are capped by cash.
func (r *run) size(cash float64) (float64, bool) {
	if len(r.pool) > 0 {
		return formulas.RoundMoney(minFloat(r.pool[0], cash)), true
	}
	return formulas.RoundMoney(minFloat(r.executor.capital.PerStockAllocation(), cash)), false
}

func (r *run) reject(a domain.ProposedAction, reason string) {
	r.executor.log.Warn().
		Str("action", string(a.Action)).
		Str("symbol", a.Symbol).
		Str("reason", reason).
		Str("date", domain.FormatDate(r.record.Date)).
		Msg("Proposed action rejected")
	r.record.Rejected = append(r.record.Rejected, domain.RejectedAction{
		Action: a.Action,
		Symbol: a.Symbol,
		Reason: reason,
	})
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
