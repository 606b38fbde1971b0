package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// AuditEntry records what happened to a staged action.
type AuditEntry struct {
	ID        int64     `json:"id"`
	ActionID  string    `json:"action_id"`
	Event     string    `json:"event"` // staged | applied | cancelled | expired | conflict
	Actor     string    `json:"actor,omitempty"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func appendAudit(ctx context.Context, db execer, actionID, event, actor, details string, now time.Time) error {
	_, err := db.ExecContext(ctx, `
	INSERT INTO audit_log (action_id, event, actor, details, created_at) VALUES (?, ?, ?, ?, ?)`,
		actionID, event, actor, sql.NullString{String: details, Valid: details != ""}, now.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", classify(err))
	}
	return nil
}

// RecordAudit appends one entry outside of an apply.
func (s *Store) RecordAudit(ctx context.Context, actionID, event, actor, details string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendAudit(ctx, s.db, actionID, event, actor, details, now)
}

// ListAudit returns the newest entries first.
func (s *Store) ListAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
	SELECT id, action_id, event, actor, details, created_at
	FROM audit_log ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit log: %w", classify(err))
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var (
			e       AuditEntry
			details sql.NullString
			created int64
		)
		if err := rows.Scan(&e.ID, &e.ActionID, &e.Event, &e.Actor, &details, &created); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Details = details.String
		e.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log: %w", err)
	}
	return out, nil
}
