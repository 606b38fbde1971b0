package store

import (
	"fmt"
)

const schemaVersion = "1"

func (s *Store) migrate() error {
	return s.migrateV1()
}

func (s *Store) migrateV1() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		status       TEXT NOT NULL DEFAULT 'in_progress',
		progress     INTEGER CHECK (progress IS NULL OR progress BETWEEN 0 AND 100),
		deadline     TEXT,
		collaborator TEXT NOT NULL DEFAULT '',
		style        TEXT NOT NULL DEFAULT '',
		label        TEXT NOT NULL DEFAULT '',
		note         TEXT NOT NULL DEFAULT '',
		created_at   INTEGER NOT NULL,
		updated_at   INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_projects_status ON projects(status);
	CREATE INDEX IF NOT EXISTS idx_projects_name ON projects(name COLLATE NOCASE);

	CREATE TABLE IF NOT EXISTS pending_actions (
		id              TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL DEFAULT '',
		payload         TEXT NOT NULL,
		created_at      INTEGER NOT NULL,
		expires_at      INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_pending_expires ON pending_actions(expires_at);

	CREATE TABLE IF NOT EXISTS conversations (
		id            TEXT PRIMARY KEY,
		memory        TEXT NOT NULL DEFAULT '{}',
		pending_scope TEXT,
		history       TEXT NOT NULL DEFAULT '[]',
		updated_at    INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at);

	CREATE TABLE IF NOT EXISTS audit_log (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		action_id  TEXT NOT NULL,
		event      TEXT NOT NULL,
		actor      TEXT NOT NULL DEFAULT '',
		details    TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_log(created_at);

	CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute migration v1: %w", err)
	}
	if _, err := s.db.Exec(`INSERT OR REPLACE INTO meta(key, value) VALUES ('schema_version', ?)`, schemaVersion); err != nil {
		return fmt.Errorf("failed to update schema version: %w", err)
	}
	return nil
}
