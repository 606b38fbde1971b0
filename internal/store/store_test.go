package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/studio-agent/internal/assistant"
	perrors "github.com/p-blackswan/studio-agent/internal/errors"
	"github.com/p-blackswan/studio-agent/internal/project"
)

var t0 = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func deadline(m time.Month, d int) *time.Time {
	v := time.Date(2026, m, d, 0, 0, 0, 0, time.UTC)
	return &v
}

func seed(t *testing.T, s *Store) []project.Project {
	t.Helper()
	ctx := context.Background()
	var out []project.Project
	for _, d := range []project.Draft{
		{Name: "Brume", Progress: project.IntPtr(15), Deadline: deadline(10, 30), Collaborator: "Lina", Style: "techno", Label: "Nebula"},
		{Name: "Nuit Blanche", Status: project.StatusDone, Progress: project.IntPtr(100), Style: "house"},
		{Name: "Orage", Status: project.StatusNeedsRework, Deadline: deadline(11, 10), Collaborator: "Marco"},
	} {
		p, err := s.CreateProject(ctx, d, t0)
		require.NoError(t, err)
		out = append(out, p)
	}
	return out
}

func TestNew_CreatesSchema(t *testing.T) {
	s := newTestStore(t)
	for _, table := range []string{"projects", "pending_actions", "conversations", "audit_log", "meta"} {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s should exist", table)
	}
	var version string
	require.NoError(t, s.db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&version))
	assert.Equal(t, schemaVersion, version)
	require.NoError(t, s.Ping(context.Background()))
}

func TestNew_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studio.db")
	s, err := New(path, zerolog.Nop())
	require.NoError(t, err)
	_, err = s.CreateProject(context.Background(), project.Draft{Name: "Brume"}, t0)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = New(path, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()
	ps, err := s.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, ps, 1)

	size, err := s.DBSizeBytes()
	require.NoError(t, err)
	assert.Greater(t, size, int64(0))
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestProjects_CreateAndRead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := seed(t, s)

	ps, err := s.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, ps, 3)
	assert.Equal(t, "Brume", ps[0].Name)
	assert.Equal(t, project.StatusInProgress, ps[0].Status)
	require.NotNil(t, ps[0].Progress)
	assert.Equal(t, 15, *ps[0].Progress)
	require.NotNil(t, ps[0].Deadline)
	assert.True(t, deadline(10, 30).Equal(*ps[0].Deadline))
	assert.Equal(t, t0, ps[0].UpdatedAt)
	assert.Nil(t, ps[1].Deadline)

	got, err := s.GetProject(ctx, created[2].ID)
	require.NoError(t, err)
	assert.Equal(t, "Orage", got.Name)
	assert.Nil(t, got.Progress)

	_, err = s.GetProject(ctx, "missing")
	assert.ErrorIs(t, err, perrors.ErrNotFound)
}

func TestProjects_CreateValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, d := range []project.Draft{
		{Name: "  "},
		{Name: "X", Status: "lost"},
		{Name: "X", Progress: project.IntPtr(120)},
	} {
		_, err := s.CreateProject(ctx, d, t0)
		assert.ErrorIs(t, err, perrors.ErrInvalidInput, d.Name)
	}
}

func TestVocabulary(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	v, err := s.Vocabulary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Lina", "Marco"}, v.Collaborators)
	assert.Equal(t, []string{"house", "techno"}, v.Styles)
	assert.Equal(t, []string{"Nebula"}, v.Labels)
}

func stage(t *testing.T, m project.Mutation, ps []project.Project) assistant.PendingAction {
	t.Helper()
	return assistant.Stage(m, assistant.Scope{Provenance: assistant.ProvenanceLastListing, Projects: ps}, 0, t0)
}

func TestApplyAction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ps := seed(t, s)

	a := stage(t, project.Mutation{PushDeadlineBy: &project.DeadlineShift{Weeks: 1}}, []project.Project{ps[0], ps[2]})
	updated, err := s.ApplyAction(ctx, a, "U1", t0.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, updated, 2)

	got, err := s.GetProject(ctx, ps[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "06/11/2026", project.FormatDate(got.Deadline))
	assert.Equal(t, t0.Add(time.Minute), got.UpdatedAt)

	got, err = s.GetProject(ctx, ps[2].ID)
	require.NoError(t, err)
	assert.Equal(t, "17/11/2026", project.FormatDate(got.Deadline))

	entries, err := s.ListAudit(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, a.ID, entries[0].ActionID)
	assert.Equal(t, "applied", entries[0].Event)
	assert.Equal(t, "U1", entries[0].Actor)
}

func TestApplyAction_RemoveDeadlineAndStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ps := seed(t, s)

	archived := project.StatusArchived
	a := stage(t, project.Mutation{RemoveDeadline: true, NewStatus: &archived}, ps[:1])
	_, err := s.ApplyAction(ctx, a, "", t0.Add(time.Minute))
	require.NoError(t, err)

	got, err := s.GetProject(ctx, ps[0].ID)
	require.NoError(t, err)
	assert.Nil(t, got.Deadline)
	assert.Equal(t, project.StatusArchived, got.Status)
}

func TestApplyAction_ConflictAbortsEverything(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ps := seed(t, s)

	a := stage(t, project.Mutation{NewProgress: project.IntPtr(90)}, ps)

	// Someone else edits Orage between staging and confirmation.
	other := stage(t, project.Mutation{NewLabel: "Nebula"}, ps[2:])
	_, err := s.ApplyAction(ctx, other, "", t0.Add(time.Second))
	require.NoError(t, err)

	_, err = s.ApplyAction(ctx, a, "", t0.Add(time.Minute))
	require.Error(t, err)
	assert.ErrorIs(t, err, perrors.ErrConflict)
	var conflict *perrors.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, []string{ps[2].ID}, conflict.ProjectIDs)

	// Nothing was written for the other projects either.
	got, err := s.GetProject(ctx, ps[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 15, *got.Progress)
}

func TestApplyAction_MissingPreconditionIsConflict(t *testing.T) {
	s := newTestStore(t)
	ps := seed(t, s)

	a := stage(t, project.Mutation{NewProgress: project.IntPtr(50)}, ps[:2])
	delete(a.ExpectedUpdatedAt, ps[1].ID)

	_, err := s.ApplyAction(context.Background(), a, "", t0.Add(time.Minute))
	var conflict *perrors.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, []string{ps[1].ID}, conflict.ProjectIDs)
}

func TestApplyAction_DeletedProjectIsConflict(t *testing.T) {
	s := newTestStore(t)
	ps := seed(t, s)
	a := stage(t, project.Mutation{NewProgress: project.IntPtr(50)}, ps[:1])

	_, err := s.db.Exec(`DELETE FROM projects WHERE id = ?`, ps[0].ID)
	require.NoError(t, err)

	_, err = s.ApplyAction(context.Background(), a, "", t0.Add(time.Minute))
	assert.ErrorIs(t, err, perrors.ErrConflict)
}

func TestApplyAction_SameInstantStillAdvances(t *testing.T) {
	s := newTestStore(t)
	ps := seed(t, s)
	a := stage(t, project.Mutation{NewStyle: "house"}, ps[:1])

	updated, err := s.ApplyAction(context.Background(), a, "", t0)
	require.NoError(t, err)
	assert.True(t, updated[0].UpdatedAt.After(ps[0].UpdatedAt))
}

func TestPendingActions_TakeOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ps := seed(t, s)

	a := stage(t, project.Mutation{RemoveDeadline: true}, ps[:1])
	require.NoError(t, s.SavePendingAction(ctx, "conv-1", a, t0.Add(30*time.Minute)))

	got, conv, err := s.TakePendingAction(ctx, a.ID, t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "conv-1", conv)
	assert.Equal(t, a.ID, got.ID)
	assert.True(t, got.Mutation.RemoveDeadline)
	assert.Equal(t, a.AffectedIDs, got.AffectedIDs)
	assert.Equal(t, a.ExpectedUpdatedAt, got.ExpectedUpdatedAt)

	_, _, err = s.TakePendingAction(ctx, a.ID, t0.Add(time.Minute))
	assert.ErrorIs(t, err, perrors.ErrNotFound)
}

func TestPendingActions_Expired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ps := seed(t, s)

	a := stage(t, project.Mutation{NewLabel: "x"}, ps[:1])
	require.NoError(t, s.SavePendingAction(ctx, "", a, t0.Add(time.Minute)))

	_, _, err := s.TakePendingAction(ctx, a.ID, t0.Add(2*time.Minute))
	assert.ErrorIs(t, err, perrors.ErrExpired)
	_, _, err = s.TakePendingAction(ctx, a.ID, t0.Add(2*time.Minute))
	assert.ErrorIs(t, err, perrors.ErrNotFound)
}

func TestPendingActions_DeleteAndPurge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ps := seed(t, s)

	a := stage(t, project.Mutation{NewLabel: "x"}, ps[:1])
	b := stage(t, project.Mutation{NewLabel: "y"}, ps[1:2])
	require.NoError(t, s.SavePendingAction(ctx, "", a, t0.Add(time.Minute)))
	require.NoError(t, s.SavePendingAction(ctx, "", b, t0.Add(time.Hour)))

	ok, err := s.DeletePendingAction(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.DeletePendingAction(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ids, err := s.PurgeExpiredPendingActions(ctx, t0.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, ids)
}

func TestConversation_SaveLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.LoadConversation(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, ok)

	done := project.StatusDone
	c := Conversation{
		ID: "c1",
		Memory: assistant.WorkingMemory{
			LastListedProjectIDs: []string{"p1", "p2"},
			LastAppliedFilter:    &project.Filter{Status: &done},
		},
		PendingScope: &project.Mutation{PushDeadlineBy: &project.DeadlineShift{Weeks: 1}},
		History: []assistant.Turn{
			{Role: assistant.RoleUser, Text: "liste les projets terminés"},
			{Role: assistant.RoleAssistant, Text: "2 projets"},
		},
		UpdatedAt: t0,
	}
	require.NoError(t, s.SaveConversation(ctx, c))

	got, ok, err := s.LoadConversation(ctx, "c1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, c.Memory.LastListedProjectIDs, got.Memory.LastListedProjectIDs)
	require.NotNil(t, got.Memory.LastAppliedFilter)
	assert.Equal(t, project.StatusDone, *got.Memory.LastAppliedFilter.Status)
	require.NotNil(t, got.PendingScope)
	assert.Equal(t, project.DeadlineShift{Weeks: 1}, *got.PendingScope.PushDeadlineBy)
	assert.Equal(t, c.History, got.History)
	assert.Equal(t, t0, got.UpdatedAt)

	c.PendingScope = nil
	require.NoError(t, s.SaveConversation(ctx, c))
	got, _, err = s.LoadConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, got.PendingScope)
}

func TestRunRetention(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ps := seed(t, s)

	a := stage(t, project.Mutation{NewLabel: "x"}, ps[:1])
	require.NoError(t, s.SavePendingAction(ctx, "", a, t0.Add(time.Minute)))
	require.NoError(t, s.SaveConversation(ctx, Conversation{ID: "old", UpdatedAt: t0.Add(-60 * 24 * time.Hour)}))
	require.NoError(t, s.SaveConversation(ctx, Conversation{ID: "fresh", UpdatedAt: t0}))

	expired, err := s.RunRetention(ctx, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	_, _, err = s.TakePendingAction(ctx, a.ID, t0.Add(time.Hour))
	assert.ErrorIs(t, err, perrors.ErrNotFound)
	_, ok, err := s.LoadConversation(ctx, "old")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = s.LoadConversation(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, ok)

	entries, err := s.ListAudit(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "expired", entries[0].Event)
}
