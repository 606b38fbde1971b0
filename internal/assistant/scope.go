package assistant

import (
	"github.com/p-blackswan/studio-agent/internal/project"
)

// Provenance tells where the affected set of a pending action came from.
type Provenance string

const (
	ProvenanceExplicitFilter Provenance = "explicit_filter"
	ProvenanceLastListing    Provenance = "last_listing"
	ProvenanceLastFilter     Provenance = "last_filter"
	ProvenanceAllProjects    Provenance = "all_projects"
	ProvenanceNamedProject   Provenance = "named_project"
)

// Label is the French wording used in descriptions.
func (p Provenance) Label() string {
	switch p {
	case ProvenanceExplicitFilter:
		return "filtre de la demande"
	case ProvenanceLastListing:
		return "dernière liste affichée"
	case ProvenanceLastFilter:
		return "dernier filtre utilisé"
	case ProvenanceAllProjects:
		return "tous les projets"
	case ProvenanceNamedProject:
		return "projet nommé"
	default:
		return string(p)
	}
}

// Scope is the outcome of ResolveScope. When Missing is set no projects were
// chosen and the caller must ask the user; Stale additionally marks a
// remembered listing whose projects no longer exist.
type Scope struct {
	Provenance Provenance
	Filter     project.Filter
	Projects   []project.Project
	Missing    bool
	Stale      bool
}

// ResolveScope picks the projects an update applies to. States are tried in
// order and the first that applies wins: the utterance's own scoping filter,
// the ids of the last listing, the filter of the last listing, then a missing
// scope. It never falls back to every project on its own.
func ResolveScope(filter project.Filter, memory WorkingMemory, all []project.Project) Scope {
	if filter.IsScoping() {
		return Scope{
			Provenance: ProvenanceExplicitFilter,
			Filter:     filter,
			Projects:   filter.Apply(all),
		}
	}

	if len(memory.LastListedProjectIDs) > 0 {
		byID := make(map[string]project.Project, len(all))
		for _, p := range all {
			byID[p.ID] = p
		}
		var picked []project.Project
		for _, id := range memory.LastListedProjectIDs {
			if p, ok := byID[id]; ok {
				picked = append(picked, p)
			}
		}
		if len(picked) == 0 {
			// An empty intersection means the memory is stale, not that the
			// user wants a no-op.
			return Scope{Missing: true, Stale: true}
		}
		var f project.Filter
		if memory.LastAppliedFilter != nil {
			f = *memory.LastAppliedFilter
		}
		return Scope{Provenance: ProvenanceLastListing, Filter: f, Projects: picked}
	}

	if memory.hasFilter() {
		f := *memory.LastAppliedFilter
		return Scope{Provenance: ProvenanceLastFilter, Filter: f, Projects: f.Apply(all)}
	}

	return Scope{Missing: true}
}

// AllProjectsScope is the scope of a confirmed "apply to all" follow-up.
func AllProjectsScope(all []project.Project) Scope {
	return Scope{Provenance: ProvenanceAllProjects, Projects: all}
}

// RefineForDeadline keeps only the projects that currently have a deadline
// and reports how many were dropped.
func RefineForDeadline(projects []project.Project) ([]project.Project, int) {
	kept := make([]project.Project, 0, len(projects))
	for _, p := range projects {
		if p.HasDeadline() {
			kept = append(kept, p)
		}
	}
	return kept, len(projects) - len(kept)
}
