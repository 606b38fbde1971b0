package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/p-blackswan/studio-agent/internal/assistant"
	"github.com/p-blackswan/studio-agent/internal/project"
)

// Conversation is the persisted state of one conversation.
type Conversation struct {
	ID     string
	Memory assistant.WorkingMemory
	// PendingScope is the mutation of an unanswered "apply to all projects?"
	// prompt.
	PendingScope *project.Mutation
	History      []assistant.Turn
	UpdatedAt    time.Time
}

// SaveConversation writes c, replacing any previous state.
func (s *Store) SaveConversation(ctx context.Context, c Conversation) error {
	memory, err := json.Marshal(c.Memory)
	if err != nil {
		return fmt.Errorf("failed to encode memory: %w", err)
	}
	history, err := json.Marshal(c.History)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	var scope sql.NullString
	if c.PendingScope != nil {
		raw, err := json.Marshal(c.PendingScope)
		if err != nil {
			return fmt.Errorf("failed to encode pending scope: %w", err)
		}
		scope = sql.NullString{String: string(raw), Valid: true}
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
	INSERT OR REPLACE INTO conversations (id, memory, pending_scope, history, updated_at)
	VALUES (?, ?, ?, ?, ?)`,
		c.ID, string(memory), scope, string(history), c.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save conversation: %w", classify(err))
	}
	return nil
}

// LoadConversation returns the stored state, or false when none exists.
func (s *Store) LoadConversation(ctx context.Context, id string) (Conversation, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		memory, history string
		scope           sql.NullString
		updatedAt       int64
	)
	err := s.db.QueryRowContext(ctx, `
	SELECT memory, pending_scope, history, updated_at FROM conversations WHERE id = ?`, id,
	).Scan(&memory, &scope, &history, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Conversation{}, false, nil
	}
	if err != nil {
		return Conversation{}, false, fmt.Errorf("failed to load conversation: %w", classify(err))
	}

	c := Conversation{ID: id, UpdatedAt: time.Unix(0, updatedAt).UTC()}
	if err := json.Unmarshal([]byte(memory), &c.Memory); err != nil {
		return Conversation{}, false, fmt.Errorf("failed to decode memory: %w", err)
	}
	if err := json.Unmarshal([]byte(history), &c.History); err != nil {
		return Conversation{}, false, fmt.Errorf("failed to decode history: %w", err)
	}
	if scope.Valid {
		var m project.Mutation
		if err := json.Unmarshal([]byte(scope.String), &m); err != nil {
			return Conversation{}, false, fmt.Errorf("failed to decode pending scope: %w", err)
		}
		c.PendingScope = &m
	}
	return c, true, nil
}
