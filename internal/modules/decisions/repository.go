// Package decisions runs the daily decision cycle and keeps its audit trail.
package decisions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/papertrail/internal/domain"
	"github.com/rs/zerolog"
)

// ErrDuplicateDecision is returned by Create when the date already has a record
var ErrDuplicateDecision = errors.New("decision already recorded for date")

const decisionColumns = `id, run_id, decision_date, status, model_name, has_changes, summary,
	actions_json, rejected_json, raw_response, error_message, elapsed_seconds, report_json,
	market_regime, confidence_level, accuracy_score, accuracy_details_json,
	accuracy_evaluated_at, created_at`

// Repository handles decision_records in ledger.db
type Repository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewRepository creates a new decision repository
func NewRepository(ledgerDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "decisions").Logger(),
	}
}

// Create inserts a decision record and sets its ID.
// Returns ErrDuplicateDecision when the date is already taken.
func (r *Repository) Create(ctx context.Context, rec *domain.DecisionRecord) error {
	actions := rec.Actions
	if actions == nil {
		actions = []domain.ExecutedAction{}
	}
	actionsJSON, err := json.Marshal(actions)
	if err != nil {
		return fmt.Errorf("failed to marshal actions: %w", err)
	}

	rejected := rec.Rejected
	if rejected == nil {
		rejected = []domain.RejectedAction{}
	}
	rejectedJSON, err := json.Marshal(rejected)
	if err != nil {
		return fmt.Errorf("failed to marshal rejected actions: %w", err)
	}

	var report sql.NullString
	if len(rec.Report) > 0 {
		report = sql.NullString{String: string(rec.Report), Valid: true}
	}

	result, err := r.ledgerDB.ExecContext(ctx, `INSERT INTO decision_records
		(run_id, decision_date, status, model_name, has_changes, summary, actions_json, rejected_json,
		 raw_response, error_message, elapsed_seconds, report_json, market_regime, confidence_level,
		 created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID,
		domain.FormatDate(rec.Date),
		string(rec.Status),
		rec.ModelName,
		rec.HasChanges,
		rec.Summary,
		string(actionsJSON),
		string(rejectedJSON),
		nullString(rec.RawResponse),
		nullString(rec.ErrorMessage),
		rec.ElapsedSeconds,
		report,
		nullString(rec.MarketRegime),
		nullString(rec.ConfidenceLevel),
		rec.CreatedAt.Unix(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", ErrDuplicateDecision, domain.FormatDate(rec.Date))
		}
		return fmt.Errorf("failed to insert decision record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get decision record id: %w", err)
	}
	rec.ID = id
	return nil
}

// GetByDate returns the record for date, or nil
func (r *Repository) GetByDate(ctx context.Context, date time.Time) (*domain.DecisionRecord, error) {
	row := r.ledgerDB.QueryRowContext(ctx,
		`SELECT `+decisionColumns+` FROM decision_records WHERE decision_date = ?`,
		domain.FormatDate(date))
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get decision record: %w", err)
	}
	return &rec, nil
}

// Latest returns the most recent record, or nil
func (r *Repository) Latest(ctx context.Context) (*domain.DecisionRecord, error) {
	list, err := r.List(ctx, 1)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// List returns the newest records first
func (r *Repository) List(ctx context.Context, limit int) ([]domain.DecisionRecord, error) {
	if limit <= 0 {
		limit = 30
	}
	return r.query(ctx, `SELECT `+decisionColumns+` FROM decision_records
		ORDER BY decision_date DESC LIMIT ?`, limit)
}

// ListPendingAccuracy returns completed records dated on or before cutoff
// that have not been scored yet, oldest first
func (r *Repository) ListPendingAccuracy(ctx context.Context, cutoff time.Time) ([]domain.DecisionRecord, error) {
	return r.query(ctx, `SELECT `+decisionColumns+` FROM decision_records
		WHERE accuracy_score IS NULL AND status = ? AND decision_date <= ?
		ORDER BY decision_date ASC`,
		string(domain.DecisionCompleted), domain.FormatDate(cutoff))
}

// SetAccuracy stores the accuracy score of a record exactly once.
// Returns false when the record was already scored.
func (r *Repository) SetAccuracy(ctx context.Context, id int64, score float64, details domain.AccuracyDetails, at time.Time) (bool, error) {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return false, fmt.Errorf("failed to marshal accuracy details: %w", err)
	}

	result, err := r.ledgerDB.ExecContext(ctx, `UPDATE decision_records
		SET accuracy_score = ?, accuracy_details_json = ?, accuracy_evaluated_at = ?
		WHERE id = ? AND accuracy_score IS NULL`,
		score, string(detailsJSON), at.Unix(), id)
	if err != nil {
		return false, fmt.Errorf("failed to set accuracy: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// DeleteFailed removes a failed record so the date can be retried.
// Completed records are never deleted.
func (r *Repository) DeleteFailed(ctx context.Context, date time.Time) (bool, error) {
	result, err := r.ledgerDB.ExecContext(ctx,
		`DELETE FROM decision_records WHERE decision_date = ? AND status = ?`,
		domain.FormatDate(date), string(domain.DecisionFailed))
	if err != nil {
		return false, fmt.Errorf("failed to delete failed decision: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows > 0 {
		r.log.Info().Str("date", domain.FormatDate(date)).Msg("Cleared failed decision record")
	}
	return rows > 0, nil
}

func (r *Repository) query(ctx context.Context, query string, args ...interface{}) ([]domain.DecisionRecord, error) {
	rows, err := r.ledgerDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query decision records: %w", err)
	}
	defer rows.Close()

	records := make([]domain.DecisionRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan decision record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating decision records: %w", err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (domain.DecisionRecord, error) {
	var (
		rec             domain.DecisionRecord
		date            string
		status          string
		actionsJSON     string
		rejectedJSON    string
		rawResponse     sql.NullString
		errorMessage    sql.NullString
		reportJSON      sql.NullString
		marketRegime    sql.NullString
		confidenceLevel sql.NullString
		accuracyScore   sql.NullFloat64
		accuracyDetails sql.NullString
		evaluatedAt     sql.NullInt64
		createdAt       int64
	)
	err := s.Scan(&rec.ID, &rec.RunID, &date, &status, &rec.ModelName, &rec.HasChanges, &rec.Summary,
		&actionsJSON, &rejectedJSON, &rawResponse, &errorMessage, &rec.ElapsedSeconds, &reportJSON,
		&marketRegime, &confidenceLevel, &accuracyScore, &accuracyDetails, &evaluatedAt, &createdAt)
	if err != nil {
		return rec, err
	}

	if rec.Date, err = domain.ParseDate(date); err != nil {
		return rec, err
	}
	rec.Status = domain.DecisionStatus(status)
	rec.RawResponse = rawResponse.String
	rec.ErrorMessage = errorMessage.String
	rec.MarketRegime = marketRegime.String
	rec.ConfidenceLevel = confidenceLevel.String
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()

	if err := json.Unmarshal([]byte(actionsJSON), &rec.Actions); err != nil {
		return rec, fmt.Errorf("failed to unmarshal actions for %s: %w", date, err)
	}
	if err := json.Unmarshal([]byte(rejectedJSON), &rec.Rejected); err != nil {
		return rec, fmt.Errorf("failed to unmarshal rejected actions for %s: %w", date, err)
	}
	if reportJSON.Valid && reportJSON.String != "" {
		rec.Report = json.RawMessage(reportJSON.String)
	}

	if accuracyScore.Valid {
		score := accuracyScore.Float64
		rec.AccuracyScore = &score
	}
	if accuracyDetails.Valid && accuracyDetails.String != "" {
		var details domain.AccuracyDetails
		if err := json.Unmarshal([]byte(accuracyDetails.String), &details); err != nil {
			return rec, fmt.Errorf("failed to unmarshal accuracy details for %s: %w", date, err)
		}
		rec.AccuracyDetails = &details
	}
	if evaluatedAt.Valid {
		at := time.Unix(evaluatedAt.Int64, 0).UTC()
		rec.AccuracyEvaluatedAt = &at
	}
	return rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
