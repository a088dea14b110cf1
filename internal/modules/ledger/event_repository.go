package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/aristath/papertrail/pkg/id"
	"github.com/rs/zerolog"
)

const eventColumns = `seq, event_id, symbol, name, action, price, event_date, reason,
	cost_amount, buy_price, realized_pct, decision_id, created_at`

// EventRepository reads and appends ledger_events. There is no update or delete.
type EventRepository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewEventRepository creates a new ledger event repository
func NewEventRepository(ledgerDB *sql.DB, log zerolog.Logger) *EventRepository {
	return &EventRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "ledger_events").Logger(),
	}
}

// Validate checks the invariants every stored event must satisfy
func Validate(e domain.LedgerEvent) error {
	if strings.TrimSpace(e.Symbol) == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidEvent)
	}
	if e.Action != domain.ActionBuy && e.Action != domain.ActionSell {
		return fmt.Errorf("%w: unknown action %q", ErrInvalidEvent, e.Action)
	}
	if e.Price <= 0 {
		return fmt.Errorf("%w: %s %s price must be positive", ErrInvalidEvent, e.Action, e.Symbol)
	}
	if e.CostAmount <= 0 {
		return fmt.Errorf("%w: %s %s cost amount must be positive", ErrInvalidEvent, e.Action, e.Symbol)
	}
	if e.Date.IsZero() {
		return fmt.Errorf("%w: %s %s has no date", ErrInvalidEvent, e.Action, e.Symbol)
	}
	if e.Action == domain.ActionSell && (e.BuyPrice == nil || *e.BuyPrice <= 0) {
		return fmt.Errorf("%w: SELL %s requires the original buy price", ErrInvalidEvent, e.Symbol)
	}
	return nil
}

// Append inserts an event inside tx, assigning its event id and sequence number
func (r *EventRepository) Append(ctx context.Context, tx *sql.Tx, e *domain.LedgerEvent) error {
	if err := Validate(*e); err != nil {
		return err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.EventID == "" {
		e.EventID = id.At(e.CreatedAt)
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO ledger_events
		(event_id, symbol, name, action, price, event_date, reason,
		 cost_amount, buy_price, realized_pct, decision_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EventID, e.Symbol, e.Name, string(e.Action), e.Price, domain.FormatDate(e.Date), e.Reason,
		e.CostAmount, nullFloat(e.BuyPrice), nullFloat(e.RealizedPct), nullString(e.DecisionID),
		e.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert %s %s event: %w", e.Action, e.Symbol, err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read event sequence: %w", err)
	}
	e.Seq = seq

	r.log.Debug().
		Str("event_id", e.EventID).
		Str("symbol", e.Symbol).
		Str("action", string(e.Action)).
		Str("date", domain.FormatDate(e.Date)).
		Msg("Ledger event appended")

	return nil
}

// ListUpTo returns events dated on or before cutoff in replay order.
// A nil cutoff returns the whole ledger.
func (r *EventRepository) ListUpTo(ctx context.Context, cutoff *time.Time) ([]domain.LedgerEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM ledger_events`
	var args []interface{}
	if cutoff != nil {
		query += ` WHERE event_date <= ?`
		args = append(args, domain.FormatDate(*cutoff))
	}
	query += ` ORDER BY event_date ASC, seq ASC`

	return r.query(ctx, r.ledgerDB, query, args...)
}

// Recent returns the newest events first
func (r *EventRepository) Recent(ctx context.Context, limit int) ([]domain.LedgerEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	return r.query(ctx, r.ledgerDB,
		`SELECT `+eventColumns+` FROM ledger_events ORDER BY event_date DESC, seq DESC LIMIT ?`, limit)
}

// ListForSymbol returns every event for symbol in replay order
func (r *EventRepository) ListForSymbol(ctx context.Context, symbol string) ([]domain.LedgerEvent, error) {
	return r.query(ctx, r.ledgerDB,
		`SELECT `+eventColumns+` FROM ledger_events WHERE symbol = ? ORDER BY event_date ASC, seq ASC`,
		strings.ToUpper(symbol))
}

// ListForDecision returns the events written by one decision run
func (r *EventRepository) ListForDecision(ctx context.Context, decisionID string) ([]domain.LedgerEvent, error) {
	return r.query(ctx, r.ledgerDB,
		`SELECT `+eventColumns+` FROM ledger_events WHERE decision_id = ? ORDER BY event_date ASC, seq ASC`,
		decisionID)
}

// Count returns the number of events in the ledger
func (r *EventRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.ledgerDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM ledger_events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count ledger events: %w", err)
	}
	return n, nil
}

func (r *EventRepository) query(ctx context.Context, q querier, query string, args ...interface{}) ([]domain.LedgerEvent, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.LedgerEvent, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger events: %w", err)
	}
	return events, nil
}

func scanEvent(rows *sql.Rows) (domain.LedgerEvent, error) {
	var (
		e                     domain.LedgerEvent
		action, eventDate     string
		buyPrice, realizedPct sql.NullFloat64
		decisionID            sql.NullString
		createdAt             int64
	)

	err := rows.Scan(&e.Seq, &e.EventID, &e.Symbol, &e.Name, &action, &e.Price, &eventDate, &e.Reason,
		&e.CostAmount, &buyPrice, &realizedPct, &decisionID, &createdAt)
	if err != nil {
		return e, err
	}

	date, err := domain.ParseDate(eventDate)
	if err != nil {
		return e, err
	}
	e.Date = date
	e.Action = domain.Action(action)
	e.BuyPrice = floatPtr(buyPrice)
	e.RealizedPct = floatPtr(realizedPct)
	e.DecisionID = decisionID.String
	e.CreatedAt = time.Unix(createdAt, 0).UTC()

	return e, nil
}

// LatestDate returns the date of the newest event, or nil for an empty ledger
func (r *EventRepository) LatestDate(ctx context.Context) (*time.Time, error) {
	var latest sql.NullString
	if err := r.ledgerDB.QueryRowContext(ctx, `SELECT MAX(event_date) FROM ledger_events`).Scan(&latest); err != nil {
		return nil, fmt.Errorf("failed to read latest event date: %w", err)
	}
	if !latest.Valid || latest.String == "" {
		return nil, nil
	}
	t, err := domain.ParseDate(latest.String)
	if err != nil {
		return nil, fmt.Errorf("invalid event date %q: %w", latest.String, err)
	}
	return &t, nil
}
