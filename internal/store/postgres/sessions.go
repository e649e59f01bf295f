package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/stockcount/internal/session"
)

const (
	getSessionSQL = `SELECT payload FROM stock_sessions WHERE user_email = $1`

	putSessionSQL = `
INSERT INTO stock_sessions (user_email, session_id, branch, payload, updated_at)
VALUES ($1, $2, $3, $4::jsonb, $5)
ON CONFLICT (user_email) DO UPDATE
SET session_id = EXCLUDED.session_id,
    branch     = EXCLUDED.branch,
    payload    = EXCLUDED.payload,
    updated_at = EXCLUDED.updated_at`

	deleteSessionSQL = `DELETE FROM stock_sessions WHERE user_email = $1`
)

// Get returns the checkpoint for an operator.
func (s *Store) Get(ctx context.Context, key string) (*session.Record, error) {
	var payload []byte
	err := s.db.QueryRow(ctx, getSessionSQL, key).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var rec session.Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("decode session %q: %w", key, err)
	}
	return &rec, nil
}

// Put upserts the checkpoint for rec's operator.
func (s *Store) Put(ctx context.Context, rec *session.Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session %q: %w", rec.Key(), err)
	}

	_, err = s.db.Exec(ctx, putSessionSQL, rec.Key(), rec.ID, rec.Branch, string(payload), s.now().UTC())
	return err
}

// Delete removes the checkpoint for an operator.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.Exec(ctx, deleteSessionSQL, key)
	return err
}
