package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/rs/zerolog"
)

const positionColumns = `symbol, name, buy_price, buy_date, current_price, cost_amount,
	sector, industry, reason, price_updated_at`

// PositionRepository handles the open_positions cache.
// Rows are only created and deleted together with the ledger event that justifies them.
type PositionRepository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewPositionRepository creates a new open position repository
func NewPositionRepository(ledgerDB *sql.DB, log zerolog.Logger) *PositionRepository {
	return &PositionRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "open_positions").Logger(),
	}
}

// GetAll returns all open positions ordered by buy date
func (r *PositionRepository) GetAll(ctx context.Context) ([]domain.OpenPosition, error) {
	return r.list(ctx, r.ledgerDB)
}

// GetBySymbol returns the open position for symbol, or nil when not held
func (r *PositionRepository) GetBySymbol(ctx context.Context, symbol string) (*domain.OpenPosition, error) {
	return r.getBySymbol(ctx, r.ledgerDB, symbol)
}

// Count returns the number of open positions
func (r *PositionRepository) Count(ctx context.Context) (int, error) {
	return r.count(ctx, r.ledgerDB)
}

// Insert adds a position inside tx
func (r *PositionRepository) Insert(ctx context.Context, tx *sql.Tx, p domain.OpenPosition) error {
	var priceUpdatedAt sql.NullInt64
	if p.PriceUpdatedAt != nil {
		priceUpdatedAt = sql.NullInt64{Int64: p.PriceUpdatedAt.Unix(), Valid: true}
	}

	_, err := tx.ExecContext(ctx, `INSERT INTO open_positions
		(`+positionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Symbol, p.Name, p.BuyPrice, domain.FormatDate(p.BuyDate), nullFloat(p.CurrentPrice), p.CostAmount,
		p.Sector, p.Industry, p.Reason, priceUpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert position %s: %w", p.Symbol, err)
	}
	return nil
}

// Delete removes the position for symbol inside tx
func (r *PositionRepository) Delete(ctx context.Context, tx *sql.Tx, symbol string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM open_positions WHERE symbol = ?`, symbol)
	if err != nil {
		return fmt.Errorf("failed to delete position %s: %w", symbol, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotHeld, symbol)
	}
	return nil
}

// UpdateCurrentPrice stores a refreshed quote for a held symbol.
// Returns false when the symbol is no longer held.
func (r *PositionRepository) UpdateCurrentPrice(ctx context.Context, symbol string, price float64, at time.Time) (bool, error) {
	res, err := r.ledgerDB.ExecContext(ctx,
		`UPDATE open_positions SET current_price = ?, price_updated_at = ? WHERE symbol = ?`,
		price, at.Unix(), symbol)
	if err != nil {
		return false, fmt.Errorf("failed to update price for %s: %w", symbol, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

// ReplaceAll swaps the whole table for positions inside tx
func (r *PositionRepository) ReplaceAll(ctx context.Context, tx *sql.Tx, positions []domain.OpenPosition) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM open_positions`); err != nil {
		return fmt.Errorf("failed to clear open positions: %w", err)
	}
	for _, p := range positions {
		if err := r.Insert(ctx, tx, p); err != nil {
			return err
		}
	}
	r.log.Info().Int("positions", len(positions)).Msg("Open positions replaced")
	return nil
}

func (r *PositionRepository) getBySymbol(ctx context.Context, q querier, symbol string) (*domain.OpenPosition, error) {
	row := q.QueryRowContext(ctx, `SELECT `+positionColumns+` FROM open_positions WHERE symbol = ?`,
		strings.ToUpper(symbol))
	p, err := scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position %s: %w", symbol, err)
	}
	return &p, nil
}

func (r *PositionRepository) count(ctx context.Context, q querier) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM open_positions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count positions: %w", err)
	}
	return n, nil
}

func (r *PositionRepository) list(ctx context.Context, q querier) ([]domain.OpenPosition, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+positionColumns+` FROM open_positions ORDER BY buy_date ASC, symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	positions := make([]domain.OpenPosition, 0)
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}
	return positions, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanPosition(s scanner) (domain.OpenPosition, error) {
	var (
		p              domain.OpenPosition
		buyDate        string
		currentPrice   sql.NullFloat64
		priceUpdatedAt sql.NullInt64
	)

	err := s.Scan(&p.Symbol, &p.Name, &p.BuyPrice, &buyDate, &currentPrice, &p.CostAmount,
		&p.Sector, &p.Industry, &p.Reason, &priceUpdatedAt)
	if err != nil {
		return p, err
	}

	if p.BuyDate, err = domain.ParseDate(buyDate); err != nil {
		return p, err
	}
	p.CurrentPrice = floatPtr(currentPrice)
	if priceUpdatedAt.Valid {
		t := time.Unix(priceUpdatedAt.Int64, 0).UTC()
		p.PriceUpdatedAt = &t
	}
	return p, nil
}
