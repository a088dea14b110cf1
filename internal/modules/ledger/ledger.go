// Package ledger is the append-only store of paper trades and the
// open-position table materialized from it.
package ledger

import (
	"context"
	"database/sql"
	"errors"
)

var (
	// ErrInvalidEvent is returned when an event violates a ledger invariant
	ErrInvalidEvent = errors.New("invalid ledger event")
	// ErrAlreadyHeld is returned when buying a symbol that has an open position
	ErrAlreadyHeld = errors.New("symbol already held")
	// ErrNotHeld is returned when selling a symbol without an open position
	ErrNotHeld = errors.New("symbol not held")
	// ErrCapacity is returned when a buy would exceed the maximum number of holdings
	ErrCapacity = errors.New("max holdings reached")
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
