// Package snapshots materializes the daily equity curve from ledger replay and prices.
package snapshots

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/rs/zerolog"
)

const snapshotColumns = `snapshot_date, portfolio_value, cash, holdings_value, total_return_pct,
	realized_pnl, holdings_json, materialized_at`

// Repository handles the snapshots table in portfolio.db
type Repository struct {
	portfolioDB *sql.DB
	log         zerolog.Logger
}

// NewRepository creates a new snapshot repository
func NewRepository(portfolioDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		portfolioDB: portfolioDB,
		log:         log.With().Str("repo", "snapshots").Logger(),
	}
}

// Upsert writes the snapshot for its date, overwriting every field
func (r *Repository) Upsert(ctx context.Context, s domain.Snapshot) error {
	holdings := s.Holdings
	if holdings == nil {
		holdings = []domain.HoldingSnapshot{}
	}
	holdingsJSON, err := json.Marshal(holdings)
	if err != nil {
		return fmt.Errorf("failed to marshal holdings: %w", err)
	}

	_, err = r.portfolioDB.ExecContext(ctx, `INSERT INTO snapshots (`+snapshotColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(snapshot_date) DO UPDATE SET
			portfolio_value = excluded.portfolio_value,
			cash = excluded.cash,
			holdings_value = excluded.holdings_value,
			total_return_pct = excluded.total_return_pct,
			realized_pnl = excluded.realized_pnl,
			holdings_json = excluded.holdings_json,
			materialized_at = excluded.materialized_at`,
		domain.FormatDate(s.Date), s.PortfolioValue, s.Cash, s.HoldingsValue, s.TotalReturnPct,
		s.RealizedPnL, string(holdingsJSON), s.MaterializedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot %s: %w", domain.FormatDate(s.Date), err)
	}
	return nil
}

// GetByDate returns the snapshot for date, or nil
func (r *Repository) GetByDate(ctx context.Context, date time.Time) (*domain.Snapshot, error) {
	return r.one(ctx, `SELECT `+snapshotColumns+` FROM snapshots WHERE snapshot_date = ?`, domain.FormatDate(date))
}

// Latest returns the most recent snapshot, or nil
func (r *Repository) Latest(ctx context.Context) (*domain.Snapshot, error) {
	return r.one(ctx, `SELECT `+snapshotColumns+` FROM snapshots ORDER BY snapshot_date DESC LIMIT 1`)
}

// NearestOnOrBefore returns the latest snapshot dated on or before date, or nil
func (r *Repository) NearestOnOrBefore(ctx context.Context, date time.Time) (*domain.Snapshot, error) {
	return r.one(ctx, `SELECT `+snapshotColumns+` FROM snapshots
		WHERE snapshot_date <= ? ORDER BY snapshot_date DESC LIMIT 1`, domain.FormatDate(date))
}

// NearestOnOrAfter returns the earliest snapshot dated on or after date, or nil
func (r *Repository) NearestOnOrAfter(ctx context.Context, date time.Time) (*domain.Snapshot, error) {
	return r.one(ctx, `SELECT `+snapshotColumns+` FROM snapshots
		WHERE snapshot_date >= ? ORDER BY snapshot_date ASC LIMIT 1`, domain.FormatDate(date))
}

// List returns snapshots in date order, optionally from start onwards
func (r *Repository) List(ctx context.Context, start *time.Time) ([]domain.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM snapshots`
	var args []interface{}
	if start != nil {
		query += ` WHERE snapshot_date >= ?`
		args = append(args, domain.FormatDate(*start))
	}
	query += ` ORDER BY snapshot_date ASC`

	rows, err := r.portfolioDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]domain.Snapshot, 0)
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return snapshots, nil
}

// ExistingDates returns the set of snapshot dates within [start, end]
func (r *Repository) ExistingDates(ctx context.Context, start, end time.Time) (map[string]bool, error) {
	rows, err := r.portfolioDB.QueryContext(ctx,
		`SELECT snapshot_date FROM snapshots WHERE snapshot_date >= ? AND snapshot_date <= ?`,
		domain.FormatDate(start), domain.FormatDate(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshot dates: %w", err)
	}
	defer rows.Close()

	dates := make(map[string]bool)
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates[d] = true
	}
	return dates, rows.Err()
}

func (r *Repository) one(ctx context.Context, query string, args ...interface{}) (*domain.Snapshot, error) {
	row := r.portfolioDB.QueryRowContext(ctx, query, args...)
	s, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return &s, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSnapshot(s scanner) (domain.Snapshot, error) {
	var (
		snap           domain.Snapshot
		date           string
		holdingsJSON   string
		materializedAt int64
	)
	err := s.Scan(&date, &snap.PortfolioValue, &snap.Cash, &snap.HoldingsValue, &snap.TotalReturnPct,
		&snap.RealizedPnL, &holdingsJSON, &materializedAt)
	if err != nil {
		return snap, err
	}

	if snap.Date, err = domain.ParseDate(date); err != nil {
		return snap, err
	}
	snap.MaterializedAt = time.Unix(materializedAt, 0).UTC()
	if err := json.Unmarshal([]byte(holdingsJSON), &snap.Holdings); err != nil {
		return snap, fmt.Errorf("failed to unmarshal holdings for %s: %w", date, err)
	}
	return snap, nil
}
