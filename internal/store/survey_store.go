package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SurveyRecord is an acknowledged survey answer.
type SurveyRecord struct {
	ScanID        string
	HasConfidence bool
	SubmittedAt   time.Time
}

// SurveyStore is the ledger of acknowledged survey answers. It never holds
// scan results.
type SurveyStore struct {
	db *sql.DB
}

func NewSurveyStore(db *sql.DB) *SurveyStore {
	return &SurveyStore{db: db}
}

func (s *SurveyStore) IsCompleted(ctx context.Context, scanID string) (bool, error) {
	rec, err := s.Get(ctx, scanID)
	if err != nil {
		return false, err
	}
	return rec != nil, nil
}

// MarkCompleted records an acknowledged answer. The first record for a scan
// wins; later calls are no-ops.
func (s *SurveyStore) MarkCompleted(ctx context.Context, scanID string, hasConfidence bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO survey_submissions (scan_id, has_confidence) VALUES (?, ?)
		ON CONFLICT(scan_id) DO NOTHING
	`, scanID, hasConfidence)
	if err != nil {
		return fmt.Errorf("failed to record survey: %w", err)
	}
	return nil
}

// Get returns the record for scanID, or nil if there is none.
func (s *SurveyStore) Get(ctx context.Context, scanID string) (*SurveyRecord, error) {
	rec := &SurveyRecord{}
	err := s.db.QueryRowContext(ctx, `
		SELECT scan_id, has_confidence, submitted_at FROM survey_submissions WHERE scan_id = ?
	`, scanID).Scan(&rec.ScanID, &rec.HasConfidence, &rec.SubmittedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get survey: %w", err)
	}
	return rec, nil
}

// List returns every record, newest first.
func (s *SurveyStore) List(ctx context.Context) ([]*SurveyRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scan_id, has_confidence, submitted_at FROM survey_submissions ORDER BY submitted_at DESC, scan_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list surveys: %w", err)
	}
	defer rows.Close()

	var records []*SurveyRecord
	for rows.Next() {
		rec := &SurveyRecord{}
		if err := rows.Scan(&rec.ScanID, &rec.HasConfidence, &rec.SubmittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan survey: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating surveys: %w", err)
	}

	return records, nil
}
