package store

import (
	"context"
	"fmt"
	"time"
)

// Retention windows.
const (
	conversationRetention = 30 * 24 * time.Hour
	auditRetention        = 90 * 24 * time.Hour
)

// RunRetention cleans up old data according to retention policies and
// returns the number of pending actions that expired. Expired actions are
// logged in the audit trail before they go.
func (s *Store) RunRetention(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.PurgeExpiredPendingActions(ctx, now)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range expired {
		if err := appendAudit(ctx, s.db, id, "expired", "", "", now); err != nil {
			return 0, err
		}
	}

	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM conversations WHERE updated_at < ?",
		now.Add(-conversationRetention).UnixNano(),
	); err != nil {
		return 0, fmt.Errorf("failed to delete old conversations: %w", classify(err))
	}

	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM audit_log WHERE created_at < ?",
		now.Add(-auditRetention).UnixNano(),
	); err != nil {
		return 0, fmt.Errorf("failed to delete old audit entries: %w", classify(err))
	}

	if len(expired) > 0 {
		s.logger.Info().Int("expired_actions", len(expired)).Msg("retention pass")
	}
	return len(expired), nil
}

// DBSizeBytes returns the database size in bytes
func (s *Store) DBSizeBytes() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pageCount, pageSize int64
	if err := s.db.QueryRow("PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	if err := s.db.QueryRow("PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0, fmt.Errorf("failed to get page size: %w", err)
	}
	return pageCount * pageSize, nil
}
