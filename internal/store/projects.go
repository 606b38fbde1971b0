package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/p-blackswan/studio-agent/internal/assistant"
	perrors "github.com/p-blackswan/studio-agent/internal/errors"
	"github.com/p-blackswan/studio-agent/internal/project"
	"github.com/p-blackswan/studio-agent/internal/retry"
)

const dateLayout = "2006-01-02"

const projectColumns = `id, name, status, progress, deadline, collaborator, style, label, note, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (project.Project, error) {
	var (
		p                    project.Project
		status               string
		progress             sql.NullInt64
		deadline             sql.NullString
		createdAt, updatedAt int64
	)
	if err := row.Scan(&p.ID, &p.Name, &status, &progress, &deadline,
		&p.Collaborator, &p.Style, &p.Label, &p.Note, &createdAt, &updatedAt); err != nil {
		return project.Project{}, err
	}
	p.Status = project.Status(status)
	if progress.Valid {
		v := int(progress.Int64)
		p.Progress = &v
	}
	if deadline.Valid {
		d, err := time.Parse(dateLayout, deadline.String)
		if err != nil {
			return project.Project{}, fmt.Errorf("project %s: bad deadline %q: %w", p.ID, deadline.String, err)
		}
		p.Deadline = &d
	}
	p.CreatedAt = time.Unix(0, createdAt).UTC()
	p.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return p, nil
}

func progressArg(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func deadlineArg(d *time.Time) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.UTC().Format(dateLayout), Valid: true}
}

// ListProjects returns the whole catalog ordered by name.
func (s *Store) ListProjects(ctx context.Context) ([]project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY name COLLATE NOCASE, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", classify(err))
	}
	defer rows.Close()

	var out []project.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return out, nil
}

// GetProject returns one project or ErrNotFound.
func (s *Store) GetProject(ctx context.Context, id string) (project.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, err := scanProject(s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return project.Project{}, fmt.Errorf("project %s: %w", id, perrors.ErrNotFound)
	}
	if err != nil {
		return project.Project{}, fmt.Errorf("failed to get project: %w", classify(err))
	}
	return p, nil
}

// CreateProject inserts a project from d. The status defaults to in progress.
func (s *Store) CreateProject(ctx context.Context, d project.Draft, now time.Time) (project.Project, error) {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return project.Project{}, fmt.Errorf("project name is required: %w", perrors.ErrInvalidInput)
	}
	if d.Status == "" {
		d.Status = project.StatusInProgress
	}
	if !d.Status.Valid() {
		return project.Project{}, fmt.Errorf("unknown status %q: %w", d.Status, perrors.ErrInvalidInput)
	}
	if d.Progress != nil && (*d.Progress < 0 || *d.Progress > 100) {
		return project.Project{}, fmt.Errorf("progress %d out of range: %w", *d.Progress, perrors.ErrInvalidInput)
	}

	now = now.UTC()
	p := project.Project{
		ID:           uuid.NewString(),
		Name:         name,
		Status:       d.Status,
		Progress:     d.Progress,
		Deadline:     d.Deadline,
		Collaborator: d.Collaborator,
		Style:        d.Style,
		Label:        d.Label,
		Note:         d.Note,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if p.Deadline != nil {
		day := project.DateOf(*p.Deadline)
		p.Deadline = &day
	}

	err := retry.Do(ctx, retry.StoreConfig(), func(ctx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (`+projectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Name, string(p.Status), progressArg(p.Progress), deadlineArg(p.Deadline),
			p.Collaborator, p.Style, p.Label, p.Note, p.CreatedAt.UnixNano(), p.UpdatedAt.UnixNano(),
		)
		return classify(err)
	})
	if err != nil {
		return project.Project{}, fmt.Errorf("failed to create project: %w", err)
	}
	s.logger.Info().Str("project_id", p.ID).Str("name", p.Name).Msg("project created")
	return p, nil
}

// Vocabulary returns the distinct collaborators, styles and labels in use.
func (s *Store) Vocabulary(ctx context.Context) (project.Vocabulary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var v project.Vocabulary
	for _, col := range []struct {
		name string
		dst  *[]string
	}{
		{"collaborator", &v.Collaborators},
		{"style", &v.Styles},
		{"label", &v.Labels},
	} {
		rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT `+col.name+` FROM projects WHERE `+col.name+` <> ''`)
		if err != nil {
			return project.Vocabulary{}, fmt.Errorf("failed to load %s vocabulary: %w", col.name, classify(err))
		}
		for rows.Next() {
			var val string
			if err := rows.Scan(&val); err != nil {
				rows.Close()
				return project.Vocabulary{}, fmt.Errorf("failed to scan %s: %w", col.name, err)
			}
			*col.dst = append(*col.dst, val)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return project.Vocabulary{}, fmt.Errorf("error iterating %s: %w", col.name, err)
		}
		sort.Strings(*col.dst)
	}
	return v, nil
}

// ApplyAction writes a confirmed action in one transaction. Every affected
// project must still carry the last-modified instant recorded at staging
// time; a project that changed, vanished or has no recorded instant is a
// conflict, and any conflict aborts the whole apply with a
// *errors.ConflictError. A locked database is retried.
func (s *Store) ApplyAction(ctx context.Context, a assistant.PendingAction, actor string, now time.Time) ([]project.Project, error) {
	var updated []project.Project
	err := retry.Do(ctx, retry.StoreConfig(), func(ctx context.Context) error {
		var err error
		updated, err = s.applyOnce(ctx, a, actor, now.UTC())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("apply %s: %w", a.ID, err)
	}
	s.logger.Info().
		Str("action_id", a.ID).
		Int("updated", len(updated)).
		Msg("action applied")
	return updated, nil
}

func (s *Store) applyOnce(ctx context.Context, a assistant.PendingAction, actor string, now time.Time) ([]project.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify(err)
	}
	defer tx.Rollback() //nolint:errcheck

	current := make([]project.Project, 0, len(a.AffectedIDs))
	var conflicts []string
	for _, id := range a.AffectedIDs {
		p, err := scanProject(tx.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
		if errors.Is(err, sql.ErrNoRows) {
			conflicts = append(conflicts, id)
			continue
		}
		if err != nil {
			return nil, classify(err)
		}
		expected, ok := a.ExpectedUpdatedAt[id]
		if !ok || p.UpdatedAt.Format(time.RFC3339Nano) != expected {
			conflicts = append(conflicts, id)
			continue
		}
		current = append(current, p)
	}
	if len(conflicts) > 0 {
		return nil, &perrors.ConflictError{ActionID: a.ID, ProjectIDs: conflicts}
	}

	out := make([]project.Project, 0, len(current))
	for _, before := range current {
		after := a.Mutation.ApplyTo(before)
		after.UpdatedAt = now
		if !after.UpdatedAt.After(before.UpdatedAt) {
			// Keep the precondition strict even when clocks collide.
			after.UpdatedAt = before.UpdatedAt.Add(time.Nanosecond)
		}
		_, err := tx.ExecContext(ctx, `
		UPDATE projects SET status = ?, progress = ?, deadline = ?, collaborator = ?,
			style = ?, label = ?, note = ?, updated_at = ?
		WHERE id = ?`,
			string(after.Status), progressArg(after.Progress), deadlineArg(after.Deadline),
			after.Collaborator, after.Style, after.Label, after.Note, after.UpdatedAt.UnixNano(),
			after.ID,
		)
		if err != nil {
			return nil, classify(err)
		}
		out = append(out, after)
	}

	if err := appendAudit(ctx, tx, a.ID, "applied", actor, a.Description, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}
