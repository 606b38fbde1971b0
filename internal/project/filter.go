package project

import (
	"fmt"
	"sort"
	"strings"
)

// SortField names a sort directive.
type SortField string

const (
	SortNone     SortField = ""
	SortDeadline SortField = "deadline"
	SortProgress SortField = "progress"
	SortName     SortField = "name"
	SortUpdated  SortField = "updated"
)

// Filter is a set of optional scoping predicates plus sort directives.
//
// HasDeadline is only a scoping predicate when HasDeadlineExplicit is set,
// meaning the user asked for it in the current utterance. A deadline mutation
// never writes into the filter.
type Filter struct {
	Status              *Status   `json:"status,omitempty"`
	MinProgress         *int      `json:"min_progress,omitempty"`
	MaxProgress         *int      `json:"max_progress,omitempty"`
	Collaborator        string    `json:"collaborator,omitempty"`
	Style               string    `json:"style,omitempty"`
	Label               string    `json:"label,omitempty"`
	HasDeadline         *bool     `json:"has_deadline,omitempty"`
	HasDeadlineExplicit bool      `json:"has_deadline_explicit,omitempty"`
	Name                string    `json:"name,omitempty"`
	Year                *int      `json:"year,omitempty"`
	SortBy              SortField `json:"sort_by,omitempty"`
	SortDesc            bool      `json:"sort_desc,omitempty"`
}

// IsScoping reports whether the filter restricts a real subset of the
// catalog. Sort directives alone never scope.
func (f Filter) IsScoping() bool {
	if f.Status != nil || f.MinProgress != nil || f.MaxProgress != nil {
		return true
	}
	if f.Collaborator != "" || f.Style != "" || f.Label != "" || f.Name != "" || f.Year != nil {
		return true
	}
	return f.HasDeadline != nil && f.HasDeadlineExplicit
}

// IsZero reports whether no predicate and no sort is set.
func (f Filter) IsZero() bool {
	return !f.IsScoping() && f.HasDeadline == nil && f.SortBy == SortNone
}

// Match reports whether p satisfies every predicate. String predicates are
// compared case-insensitively; Name is a substring match.
func (f Filter) Match(p Project) bool {
	if f.Status != nil && p.Status != *f.Status {
		return false
	}
	if f.MinProgress != nil || f.MaxProgress != nil {
		if p.Progress == nil {
			return false
		}
		if f.MinProgress != nil && *p.Progress < *f.MinProgress {
			return false
		}
		if f.MaxProgress != nil && *p.Progress > *f.MaxProgress {
			return false
		}
	}
	if f.Collaborator != "" && !strings.EqualFold(p.Collaborator, f.Collaborator) {
		return false
	}
	if f.Style != "" && !strings.EqualFold(p.Style, f.Style) {
		return false
	}
	if f.Label != "" && !strings.EqualFold(p.Label, f.Label) {
		return false
	}
	if f.HasDeadline != nil && p.HasDeadline() != *f.HasDeadline {
		return false
	}
	if f.Name != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Name)) {
		return false
	}
	if f.Year != nil {
		year := p.CreatedAt.Year()
		if p.Deadline != nil {
			year = p.Deadline.Year()
		}
		if year != *f.Year {
			return false
		}
	}
	return true
}

// Apply returns the matching projects in filter sort order. The input slice
// is not modified.
func (f Filter) Apply(projects []Project) []Project {
	out := make([]Project, 0, len(projects))
	for _, p := range projects {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	f.sort(out)
	return out
}

func (f Filter) sort(ps []Project) {
	var less func(a, b Project) bool
	switch f.SortBy {
	case SortDeadline:
		// Projects without a deadline always go last.
		less = func(a, b Project) bool {
			if a.Deadline == nil || b.Deadline == nil {
				return a.Deadline != nil && b.Deadline == nil
			}
			if f.SortDesc {
				return a.Deadline.After(*b.Deadline)
			}
			return a.Deadline.Before(*b.Deadline)
		}
	case SortProgress:
		less = func(a, b Project) bool {
			pa, pb := progressOr(a, -1), progressOr(b, -1)
			if f.SortDesc {
				return pa > pb
			}
			return pa < pb
		}
	case SortName:
		less = func(a, b Project) bool {
			if f.SortDesc {
				return strings.ToLower(a.Name) > strings.ToLower(b.Name)
			}
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	case SortUpdated:
		less = func(a, b Project) bool {
			if f.SortDesc {
				return a.UpdatedAt.After(b.UpdatedAt)
			}
			return a.UpdatedAt.Before(b.UpdatedAt)
		}
	default:
		return
	}
	sort.SliceStable(ps, func(i, j int) bool { return less(ps[i], ps[j]) })
}

func progressOr(p Project, def int) int {
	if p.Progress == nil {
		return def
	}
	return *p.Progress
}

// Describe renders the predicates as a short French clause, used in
// descriptions and debug breakdowns.
func (f Filter) Describe() string {
	var parts []string
	if f.Status != nil {
		parts = append(parts, "statut "+f.Status.Label())
	}
	switch {
	case f.MinProgress != nil && f.MaxProgress != nil && *f.MinProgress == *f.MaxProgress:
		parts = append(parts, fmt.Sprintf("à %d%%", *f.MinProgress))
	case f.MinProgress != nil && f.MaxProgress != nil:
		parts = append(parts, fmt.Sprintf("entre %d%% et %d%%", *f.MinProgress, *f.MaxProgress))
	case f.MinProgress != nil:
		parts = append(parts, fmt.Sprintf("au moins %d%%", *f.MinProgress))
	case f.MaxProgress != nil:
		parts = append(parts, fmt.Sprintf("au plus %d%%", *f.MaxProgress))
	}
	if f.Collaborator != "" {
		parts = append(parts, "avec "+f.Collaborator)
	}
	if f.Style != "" {
		parts = append(parts, "style "+f.Style)
	}
	if f.Label != "" {
		parts = append(parts, "chez "+f.Label)
	}
	if f.HasDeadline != nil {
		if *f.HasDeadline {
			parts = append(parts, "avec deadline")
		} else {
			parts = append(parts, "sans deadline")
		}
	}
	if f.Name != "" {
		parts = append(parts, fmt.Sprintf("nom contenant %q", f.Name))
	}
	if f.Year != nil {
		parts = append(parts, fmt.Sprintf("année %d", *f.Year))
	}
	if len(parts) == 0 {
		return "tous les projets"
	}
	return strings.Join(parts, ", ")
}
