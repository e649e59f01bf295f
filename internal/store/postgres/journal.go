package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/stockcount/internal/core"
)

const insertJournalSQL = `
INSERT INTO stock_journal (
    action, severity, session_id, user_email, user_name, ip_address, user_agent,
    branch, reduced_code, old_value, new_value, outcome, detail, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13::jsonb, $14)`

const selectJournalSQL = `
SELECT id, action, severity, session_id, user_email, user_name, ip_address, user_agent,
       branch, reduced_code, old_value, new_value, outcome, detail, created_at
FROM stock_journal`

// Append records one journal entry.
func (s *Store) Append(ctx context.Context, e core.JournalEntry) error {
	var detail *string
	if e.Detail != nil {
		b, err := json.Marshal(e.Detail)
		if err == nil {
			v := string(b)
			detail = &v
		}
	}

	_, err := s.db.Exec(ctx, insertJournalSQL,
		string(e.Action),
		string(e.Severity),
		toPgText(e.SessionID),
		toPgText(e.UserEmail),
		toPgText(e.UserName),
		toPgText(e.IPAddress),
		toPgText(e.UserAgent),
		toPgText(e.Branch),
		toPgText(e.ReducedCode),
		toPgText(e.OldValue),
		toPgText(e.NewValue),
		toPgText(e.Outcome),
		detail,
		e.CreatedAt,
	)
	return err
}

// List returns journal entries matching filter, newest first.
func (s *Store) List(ctx context.Context, filter core.JournalFilter) ([]core.JournalEntry, error) {
	query, args := buildJournalQuery(filter, s.now())

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	entries := make([]core.JournalEntry, 0)
	for rows.Next() {
		var (
			id                 pgtype.UUID
			action, severity   string
			sessionID, email   pgtype.Text
			name, ip, agent    pgtype.Text
			branch, code       pgtype.Text
			oldValue, newValue pgtype.Text
			outcome            pgtype.Text
			detail             []byte
			createdAt          pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &action, &severity, &sessionID, &email, &name, &ip, &agent,
			&branch, &code, &oldValue, &newValue, &outcome, &detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}

		e := core.JournalEntry{
			ID:          uuidToString(id),
			Action:      core.JournalAction(action),
			Severity:    core.JournalSeverity(severity),
			SessionID:   fromPgText(sessionID),
			UserEmail:   fromPgText(email),
			UserName:    fromPgText(name),
			IPAddress:   fromPgText(ip),
			UserAgent:   fromPgText(agent),
			Branch:      fromPgText(branch),
			ReducedCode: fromPgText(code),
			OldValue:    fromPgText(oldValue),
			NewValue:    fromPgText(newValue),
			Outcome:     fromPgText(outcome),
			CreatedAt:   createdAt.Time,
		}
		if len(detail) > 0 {
			_ = json.Unmarshal(detail, &e.Detail)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// buildJournalQuery renders the filtered journal query and its arguments.
func buildJournalQuery(filter core.JournalFilter, now time.Time) (string, []any) {
	if filter.Limit <= 0 {
		filter.Limit = core.DefaultJournalLimit
	}

	start := filter.StartTime
	if start.IsZero() {
		start = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	end := filter.EndTime
	if end.IsZero() {
		end = now.Add(24 * time.Hour)
	}

	args := []any{start, end}
	conds := []string{"created_at >= $1", "created_at < $2"}

	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("user_email", filter.UserEmail)
	add("session_id", filter.SessionID)
	add("action", string(filter.Action))

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf("%s\nWHERE %s\nORDER BY created_at DESC\nLIMIT $%d OFFSET $%d",
		selectJournalSQL, strings.Join(conds, " AND "), len(args)-1, len(args))
	return query, args
}
