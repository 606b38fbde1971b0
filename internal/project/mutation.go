package project

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DeadlineShift is a signed calendar delta. Negative values pull the
// deadline earlier.
type DeadlineShift struct {
	Days   int `json:"days,omitempty"`
	Weeks  int `json:"weeks,omitempty"`
	Months int `json:"months,omitempty"`
	Years  int `json:"years,omitempty"`
}

// IsZero reports whether the shift moves nothing.
func (s DeadlineShift) IsZero() bool {
	return s.Days == 0 && s.Weeks == 0 && s.Months == 0 && s.Years == 0
}

// From returns t moved by the shift.
func (s DeadlineShift) From(t time.Time) time.Time {
	return t.AddDate(s.Years, s.Months, s.Days+7*s.Weeks)
}

// Describe renders the shift in French, e.g. "+1 semaine" or "-3 jours".
func (s DeadlineShift) Describe() string {
	var parts []string
	add := func(n int, one, many string) {
		if n == 0 {
			return
		}
		unit := many
		if n == 1 || n == -1 {
			unit = one
		}
		parts = append(parts, fmt.Sprintf("%+d %s", n, unit))
	}
	add(s.Years, "an", "ans")
	add(s.Months, "mois", "mois")
	add(s.Weeks, "semaine", "semaines")
	add(s.Days, "jour", "jours")
	if len(parts) == 0 {
		return "0 jour"
	}
	return strings.Join(parts, " ")
}

// Mutation is a proposed change set. NewDeadline and PushDeadlineBy are
// both representable; the shift wins when both are present.
type Mutation struct {
	NewStatus       *Status        `json:"new_status,omitempty"`
	NewProgress     *int           `json:"new_progress,omitempty"`
	NewDeadline     *time.Time     `json:"new_deadline,omitempty"`
	RemoveDeadline  bool           `json:"remove_deadline,omitempty"`
	PushDeadlineBy  *DeadlineShift `json:"push_deadline_by,omitempty"`
	NewCollaborator string         `json:"new_collaborator,omitempty"`
	NewStyle        string         `json:"new_style,omitempty"`
	NewLabel        string         `json:"new_label,omitempty"`
	Note            string         `json:"note,omitempty"`
	NoteProject     string         `json:"note_project,omitempty"`
}

// MarshalJSON writes "newDeadline": null for a deadline removal so that
// consumers see the deletion explicitly.
func (m Mutation) MarshalJSON() ([]byte, error) {
	type alias Mutation
	out := struct {
		alias
		NewDeadline json.RawMessage `json:"new_deadline,omitempty"`
	}{alias: alias(m)}
	switch {
	case m.RemoveDeadline:
		out.NewDeadline = json.RawMessage("null")
	case m.NewDeadline != nil:
		raw, err := json.Marshal(m.NewDeadline)
		if err != nil {
			return nil, err
		}
		out.NewDeadline = raw
	}
	return json.Marshal(out)
}

// IsEmpty reports whether the mutation changes nothing.
func (m Mutation) IsEmpty() bool {
	return m.NewStatus == nil && m.NewProgress == nil && !m.TouchesDeadline() &&
		m.NewCollaborator == "" && m.NewStyle == "" && m.NewLabel == "" && m.Note == ""
}

// TouchesDeadline reports whether the deadline is set, shifted or removed.
func (m Mutation) TouchesDeadline() bool {
	return m.NewDeadline != nil || m.RemoveDeadline || (m.PushDeadlineBy != nil && !m.PushDeadlineBy.IsZero())
}

// IsSingleProjectNote reports whether the mutation only attaches a note to
// one named project.
func (m Mutation) IsSingleProjectNote() bool {
	if m.NoteProject == "" || m.Note == "" {
		return false
	}
	rest := m
	rest.Note, rest.NoteProject = "", ""
	return rest.IsEmpty()
}

// ApplyTo returns p with the mutation applied. UpdatedAt is left to the
// caller.
func (m Mutation) ApplyTo(p Project) Project {
	out := p
	if m.NewStatus != nil {
		out.Status = *m.NewStatus
	}
	if m.NewProgress != nil {
		v := *m.NewProgress
		out.Progress = &v
	}
	switch {
	case m.RemoveDeadline:
		out.Deadline = nil
	case m.PushDeadlineBy != nil && !m.PushDeadlineBy.IsZero():
		if p.Deadline != nil {
			d := m.PushDeadlineBy.From(*p.Deadline)
			out.Deadline = &d
		}
	case m.NewDeadline != nil:
		d := *m.NewDeadline
		out.Deadline = &d
	}
	if m.NewCollaborator != "" {
		out.Collaborator = m.NewCollaborator
	}
	if m.NewStyle != "" {
		out.Style = m.NewStyle
	}
	if m.NewLabel != "" {
		out.Label = m.NewLabel
	}
	if m.Note != "" {
		if strings.TrimSpace(p.Note) == "" {
			out.Note = m.Note
		} else {
			out.Note = p.Note + "\n" + m.Note
		}
	}
	return out
}

// Describe renders the change set as a short French clause.
func (m Mutation) Describe() string {
	var parts []string
	if m.NewStatus != nil {
		parts = append(parts, "statut → "+m.NewStatus.Label())
	}
	if m.NewProgress != nil {
		parts = append(parts, fmt.Sprintf("progression → %d%%", *m.NewProgress))
	}
	switch {
	case m.RemoveDeadline:
		parts = append(parts, "suppression de la deadline")
	case m.PushDeadlineBy != nil && !m.PushDeadlineBy.IsZero():
		parts = append(parts, "deadline "+m.PushDeadlineBy.Describe())
	case m.NewDeadline != nil:
		parts = append(parts, "deadline → "+FormatDate(m.NewDeadline))
	}
	if m.NewCollaborator != "" {
		parts = append(parts, "collaborateur → "+m.NewCollaborator)
	}
	if m.NewStyle != "" {
		parts = append(parts, "style → "+m.NewStyle)
	}
	if m.NewLabel != "" {
		parts = append(parts, "label → "+m.NewLabel)
	}
	if m.Note != "" {
		parts = append(parts, "ajout d'une note")
	}
	return strings.Join(parts, ", ")
}

// FieldChange is one "before → after" line of a preview.
type FieldChange struct {
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
}

func (c FieldChange) String() string {
	return fmt.Sprintf("%s : %s → %s", c.Field, c.Before, c.After)
}

// Diff lists the fields that differ between before and after.
func Diff(before, after Project) []FieldChange {
	var out []FieldChange
	add := func(field, b, a string) {
		if b != a {
			out = append(out, FieldChange{Field: field, Before: b, After: a})
		}
	}
	add("statut", before.Status.Label(), after.Status.Label())
	add("progression", formatProgress(before.Progress), formatProgress(after.Progress))
	add("deadline", FormatDate(before.Deadline), FormatDate(after.Deadline))
	add("collaborateur", orDash(before.Collaborator), orDash(after.Collaborator))
	add("style", orDash(before.Style), orDash(after.Style))
	add("label", orDash(before.Label), orDash(after.Label))
	add("note", orDash(before.Note), orDash(after.Note))
	return out
}

func formatProgress(p *int) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%d%%", *p)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
