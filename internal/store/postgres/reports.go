package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/stockcount/internal/core"
)

const (
	// Republishing a report after a lost acknowledgement is a no-op.
	insertReportSQL = `
INSERT INTO stock_reports (
    id, session_id, user_email, branch, area, company_id, mode,
    total, matched, divergent, payload, started_at, finalized_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb, $12, $13)
ON CONFLICT (id) DO NOTHING`

	getReportSQL = `SELECT payload FROM stock_reports WHERE id = $1`
)

// SaveReport stores a finalized report.
func (s *Store) SaveReport(ctx context.Context, r core.Report) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report %s: %w", r.ID, err)
	}

	_, err = s.db.Exec(ctx, insertReportSQL,
		toPgUUID(r.ID),
		r.SessionID,
		r.Meta.OperatorEmail,
		r.Meta.Branch,
		toPgText(r.Meta.Area),
		toPgText(r.Meta.CompanyID),
		string(r.Mode),
		r.Summary.Total,
		r.Summary.Matched,
		r.Summary.Divergent,
		string(payload),
		r.StartedAt,
		r.FinalizedAt,
	)
	if err != nil {
		return fmt.Errorf("insert report %s: %w", r.ID, err)
	}
	return nil
}

// GetReport loads a stored report by id.
func (s *Store) GetReport(ctx context.Context, id string) (core.Report, error) {
	var payload []byte
	err := s.db.QueryRow(ctx, getReportSQL, toPgUUID(id)).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Report{}, core.ErrReportNotFound
	}
	if err != nil {
		return core.Report{}, err
	}

	var r core.Report
	if err := json.Unmarshal(payload, &r); err != nil {
		return core.Report{}, fmt.Errorf("decode report %s: %w", id, err)
	}
	return r, nil
}
