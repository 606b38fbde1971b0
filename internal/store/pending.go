package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/p-blackswan/studio-agent/internal/assistant"
	perrors "github.com/p-blackswan/studio-agent/internal/errors"
)

// SavePendingAction stores a staged action until expiresAt.
func (s *Store) SavePendingAction(ctx context.Context, conversationID string, a assistant.PendingAction, expiresAt time.Time) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode pending action: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
	INSERT OR REPLACE INTO pending_actions (id, conversation_id, payload, created_at, expires_at)
	VALUES (?, ?, ?, ?, ?)`,
		a.ID, conversationID, string(payload), a.CreatedAt.UnixNano(), expiresAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save pending action: %w", classify(err))
	}
	return nil
}

// TakePendingAction removes and returns the action in one step, so a second
// take of the same id reports ErrNotFound. An action past its expiry is still
// removed but reported as ErrExpired.
func (s *Store) TakePendingAction(ctx context.Context, id string, now time.Time) (assistant.PendingAction, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		payload, conversationID string
		expiresAt               int64
	)
	err := s.db.QueryRowContext(ctx, `
	DELETE FROM pending_actions WHERE id = ?
	RETURNING payload, conversation_id, expires_at`, id,
	).Scan(&payload, &conversationID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return assistant.PendingAction{}, "", fmt.Errorf("action %s: %w", id, perrors.ErrNotFound)
	}
	if err != nil {
		return assistant.PendingAction{}, "", fmt.Errorf("failed to take pending action: %w", classify(err))
	}
	if now.UnixNano() >= expiresAt {
		return assistant.PendingAction{}, conversationID, fmt.Errorf("action %s: %w", id, perrors.ErrExpired)
	}

	var a assistant.PendingAction
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		return assistant.PendingAction{}, conversationID, fmt.Errorf("failed to decode pending action: %w", err)
	}
	return a, conversationID, nil
}

// DeletePendingAction drops an action. It reports whether one existed.
func (s *Store) DeletePendingAction(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM pending_actions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete pending action: %w", classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// PurgeExpiredPendingActions removes every action past its expiry and
// returns their ids.
func (s *Store) PurgeExpiredPendingActions(ctx context.Context, now time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `DELETE FROM pending_actions WHERE expires_at <= ? RETURNING id`, now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to purge pending actions: %w", classify(err))
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan pending action id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating purged actions: %w", err)
	}
	return ids, nil
}
