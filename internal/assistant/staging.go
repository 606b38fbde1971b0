package assistant

import (
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/p-blackswan/studio-agent/internal/project"
)

// previewLimit bounds the number of projects rendered in a preview.
const previewLimit = 3

// ProjectPreview is the before → after diff of one affected project.
type ProjectPreview struct {
	ProjectID string                `json:"project_id"`
	Name      string                `json:"name"`
	Changes   []project.FieldChange `json:"changes"`
}

// PendingAction is a staged, inert mutation proposal. Nothing is written
// until the store applies it, at most once.
type PendingAction struct {
	ID               string            `json:"id"`
	Mutation         project.Mutation  `json:"mutation"`
	Filter           project.Filter    `json:"filter"`
	AffectedProjects []project.Project `json:"affected_projects"`
	AffectedIDs      []string          `json:"affected_ids"`
	Provenance       Provenance        `json:"provenance"`
	Description      string            `json:"description"`
	Preview          []ProjectPreview  `json:"preview"`
	// ExpectedUpdatedAt maps a project id to its last-modified instant at
	// staging time (RFC 3339, UTC). A project absent from the map has no
	// usable precondition and must be treated as a conflict on apply.
	ExpectedUpdatedAt map[string]string `json:"expected_updated_at,omitempty"`
	SkippedNoDeadline int               `json:"skipped_no_deadline,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

// NewActionID returns a fresh, time-sortable action id.
func NewActionID(now time.Time) string {
	return "act_" + strings.ToLower(ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String())
}

// Stage builds the pending action for m over scope. It is pure computation
// over the projects already in scope: no store access, no side effect.
func Stage(m project.Mutation, scope Scope, skippedNoDeadline int, now time.Time) PendingAction {
	seen := make(map[string]bool, len(scope.Projects))
	affected := make([]project.Project, 0, len(scope.Projects))
	for _, p := range scope.Projects {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		affected = append(affected, p)
	}

	ids := make([]string, len(affected))
	expected := make(map[string]string, len(affected))
	for i, p := range affected {
		ids[i] = p.ID
		if !p.UpdatedAt.IsZero() {
			expected[p.ID] = p.UpdatedAt.UTC().Format(time.RFC3339Nano)
		}
	}

	preview := make([]ProjectPreview, 0, min(len(affected), previewLimit))
	for _, p := range affected[:min(len(affected), previewLimit)] {
		preview = append(preview, ProjectPreview{
			ProjectID: p.ID,
			Name:      p.Name,
			Changes:   project.Diff(p, m.ApplyTo(p)),
		})
	}

	return PendingAction{
		ID:                NewActionID(now),
		Mutation:          m,
		Filter:            scope.Filter,
		AffectedProjects:  affected,
		AffectedIDs:       ids,
		Provenance:        scope.Provenance,
		Description:       describeAction(m, scope, len(affected), skippedNoDeadline),
		Preview:           preview,
		ExpectedUpdatedAt: expected,
		SkippedNoDeadline: skippedNoDeadline,
		CreatedAt:         now,
	}
}

func describeAction(m project.Mutation, scope Scope, count, skipped int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Modifier %s : %s (%s", pluralProjects(count), m.Describe(), scope.Provenance.Label())
	if scope.Provenance == ProvenanceExplicitFilter || scope.Provenance == ProvenanceLastFilter {
		fmt.Fprintf(&b, " : %s", scope.Filter.Describe())
	}
	b.WriteString(").")
	if skipped > 0 {
		fmt.Fprintf(&b, " %d projet(s) ignoré(s) : pas de deadline.", skipped)
	}
	return b.String()
}

func pluralProjects(n int) string {
	if n == 1 {
		return "1 projet"
	}
	return fmt.Sprintf("%d projets", n)
}

// RenderPreview formats the preview as French text lines.
func RenderPreview(a PendingAction) string {
	var b strings.Builder
	b.WriteString(a.Description)
	for _, p := range a.Preview {
		fmt.Fprintf(&b, "\n• %s", p.Name)
		for _, c := range p.Changes {
			fmt.Fprintf(&b, "\n   %s", c.String())
		}
	}
	if extra := len(a.AffectedIDs) - len(a.Preview); extra > 0 {
		fmt.Fprintf(&b, "\n… et %d autre(s).", extra)
	}
	b.WriteString("\nConfirmer ?")
	return b.String()
}
