package pricing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/papertrail/internal/database"
	"github.com/aristath/papertrail/internal/domain"
	"github.com/rs/zerolog"
)

// CacheRepository stores historical closes in cache.db
type CacheRepository struct {
	cacheDB *sql.DB
	log     zerolog.Logger
}

// NewCacheRepository creates a new price cache repository
func NewCacheRepository(cacheDB *sql.DB, log zerolog.Logger) *CacheRepository {
	return &CacheRepository{
		cacheDB: cacheDB,
		log:     log.With().Str("repo", "price_cache").Logger(),
	}
}

// Get returns the cached close for symbol on date
func (r *CacheRepository) Get(ctx context.Context, symbol string, date time.Time) (float64, bool, error) {
	var price float64
	err := r.cacheDB.QueryRowContext(ctx,
		`SELECT close FROM price_cache WHERE symbol = ? AND price_date = ?`,
		symbol, domain.FormatDate(date)).Scan(&price)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read cached price %s: %w", symbol, err)
	}
	return price, true, nil
}

// Range returns cached closes for symbol over [start, end] keyed by date
func (r *CacheRepository) Range(ctx context.Context, symbol string, start, end time.Time) (map[string]float64, error) {
	rows, err := r.cacheDB.QueryContext(ctx,
		`SELECT price_date, close FROM price_cache
		 WHERE symbol = ? AND price_date >= ? AND price_date <= ?`,
		symbol, domain.FormatDate(start), domain.FormatDate(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query cached prices %s: %w", symbol, err)
	}
	defer rows.Close()

	closes := make(map[string]float64)
	for rows.Next() {
		var date string
		var price float64
		if err := rows.Scan(&date, &price); err != nil {
			return nil, fmt.Errorf("failed to scan cached price: %w", err)
		}
		closes[date] = price
	}
	return closes, rows.Err()
}

// PutMany upserts closes for symbol
func (r *CacheRepository) PutMany(ctx context.Context, symbol string, closes map[string]float64, fetchedAt time.Time) error {
	if len(closes) == 0 {
		return nil
	}
	return database.WithTransaction(r.cacheDB, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO price_cache (symbol, price_date, close, fetched_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(symbol, price_date) DO UPDATE SET close = excluded.close, fetched_at = excluded.fetched_at`)
		if err != nil {
			return fmt.Errorf("failed to prepare cache insert: %w", err)
		}
		defer stmt.Close()

		for date, price := range closes {
			if _, err := stmt.ExecContext(ctx, symbol, date, price, fetchedAt.Unix()); err != nil {
				return fmt.Errorf("failed to cache %s %s: %w", symbol, date, err)
			}
		}
		return nil
	})
}

// Prune deletes closes fetched before cutoff and returns the number removed
func (r *CacheRepository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.cacheDB.ExecContext(ctx, `DELETE FROM price_cache WHERE fetched_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune price cache: %w", err)
	}
	n, _ := res.RowsAffected()
	r.log.Info().Int64("removed", n).Time("cutoff", cutoff).Msg("Price cache pruned")
	return n, nil
}
