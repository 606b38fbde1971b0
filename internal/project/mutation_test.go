package project

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutation_MarshalRemoveDeadline(t *testing.T) {
	raw, err := json.Marshal(Mutation{RemoveDeadline: true})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	v, ok := m["newDeadline"]
	assert.True(t, ok, "newDeadline must be present")
	assert.Nil(t, v)

	raw, err = json.Marshal(Mutation{NewProgress: IntPtr(80)})
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "newDeadline")
}

func TestMutation_UnmarshalKeepsRemoval(t *testing.T) {
	raw, err := json.Marshal(Mutation{RemoveDeadline: true, Note: "mix"})
	require.NoError(t, err)

	var back Mutation
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.RemoveDeadline)
	assert.Nil(t, back.NewDeadline)
	assert.Equal(t, "mix", back.Note)
}

func TestMutation_ApplyTo(t *testing.T) {
	p := Project{ID: "p1", Status: StatusInProgress, Deadline: date(2026, 1, 31), Note: "kick"}

	got := Mutation{PushDeadlineBy: &DeadlineShift{Weeks: 1}}.ApplyTo(p)
	assert.Equal(t, *date(2026, 2, 7), *got.Deadline)
	assert.Equal(t, *date(2026, 1, 31), *p.Deadline, "input untouched")

	got = Mutation{PushDeadlineBy: &DeadlineShift{Days: -3}}.ApplyTo(p)
	assert.Equal(t, *date(2026, 1, 28), *got.Deadline)

	got = Mutation{RemoveDeadline: true}.ApplyTo(p)
	assert.Nil(t, got.Deadline)

	// The shift wins over an absolute date.
	got = Mutation{NewDeadline: date(2030, 1, 1), PushDeadlineBy: &DeadlineShift{Days: 1}}.ApplyTo(p)
	assert.Equal(t, *date(2026, 2, 1), *got.Deadline)

	got = Mutation{Note: "basse à refaire"}.ApplyTo(p)
	assert.Equal(t, "kick\nbasse à refaire", got.Note)
}

func TestMutation_Predicates(t *testing.T) {
	assert.True(t, Mutation{}.IsEmpty())
	assert.False(t, Mutation{}.TouchesDeadline())
	assert.True(t, Mutation{RemoveDeadline: true}.TouchesDeadline())
	assert.False(t, Mutation{PushDeadlineBy: &DeadlineShift{}}.TouchesDeadline())

	assert.True(t, Mutation{Note: "x", NoteProject: "Brume"}.IsSingleProjectNote())
	assert.False(t, Mutation{Note: "x", NoteProject: "Brume", NewProgress: IntPtr(1)}.IsSingleProjectNote())
	assert.False(t, Mutation{Note: "x"}.IsSingleProjectNote())
}

func TestDiff(t *testing.T) {
	before := Project{Status: StatusInProgress, Progress: IntPtr(10), Deadline: date(2026, 3, 1)}
	after := Mutation{NewProgress: IntPtr(80), PushDeadlineBy: &DeadlineShift{Weeks: 2}}.ApplyTo(before)

	changes := Diff(before, after)
	require.Len(t, changes, 2)
	assert.Equal(t, "progression : 10% → 80%", changes[0].String())
	assert.Equal(t, "deadline : 01/03/2026 → 15/03/2026", changes[1].String())
}

func TestDeadlineShift_Describe(t *testing.T) {
	assert.Equal(t, "+1 semaine", DeadlineShift{Weeks: 1}.Describe())
	assert.Equal(t, "-3 jours", DeadlineShift{Days: -3}.Describe())
}

func TestSummarize(t *testing.T) {
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	s := Summarize(catalog(), now)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 3, s.WithDeadline)
	assert.Equal(t, 1, s.Overdue)
	assert.Equal(t, 1, s.ByStatus[StatusDone])
}
