// Package project holds the studio catalog model shared by the assistant, the
// store and the outer surfaces: projects, scoping filters and mutations.
package project

import (
	"time"
)

// Status is the lifecycle state of a track or release.
type Status string

const (
	StatusInProgress      Status = "in_progress"
	StatusDone            Status = "done"
	StatusCancelled       Status = "cancelled"
	StatusNeedsRework     Status = "needs_rework"
	StatusGhostProduction Status = "ghost_production"
	StatusArchived        Status = "archived"
)

// AllStatuses lists every status in display order.
func AllStatuses() []Status {
	return []Status{
		StatusInProgress,
		StatusDone,
		StatusCancelled,
		StatusNeedsRework,
		StatusGhostProduction,
		StatusArchived,
	}
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, known := range AllStatuses() {
		if s == known {
			return true
		}
	}
	return false
}

// Label is the French display name.
func (s Status) Label() string {
	switch s {
	case StatusInProgress:
		return "en cours"
	case StatusDone:
		return "terminé"
	case StatusCancelled:
		return "annulé"
	case StatusNeedsRework:
		return "à retravailler"
	case StatusGhostProduction:
		return "ghost production"
	case StatusArchived:
		return "archivé"
	default:
		return string(s)
	}
}

// Project is one track or release in the catalog.
type Project struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Status       Status     `json:"status"`
	Progress     *int       `json:"progress,omitempty"` // 0..100
	Deadline     *time.Time `json:"deadline,omitempty"` // date only, UTC midnight
	Collaborator string     `json:"collaborator,omitempty"`
	Style        string     `json:"style,omitempty"`
	Label        string     `json:"label,omitempty"`
	Note         string     `json:"note,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// HasDeadline reports whether a deadline is set.
func (p Project) HasDeadline() bool { return p.Deadline != nil }

// Draft holds the fields of a project about to be created.
type Draft struct {
	Name         string     `json:"name"`
	Status       Status     `json:"status,omitempty"`
	Progress     *int       `json:"progress,omitempty"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	Collaborator string     `json:"collaborator,omitempty"`
	Style        string     `json:"style,omitempty"`
	Label        string     `json:"label,omitempty"`
	Note         string     `json:"note,omitempty"`
}

// Vocabulary holds the distinct tag values currently used in the catalog.
type Vocabulary struct {
	Collaborators []string `json:"collaborators"`
	Styles        []string `json:"styles"`
	Labels        []string `json:"labels"`
}

// Summary is the read-only aggregate handed to the conversational oracle.
type Summary struct {
	Total        int            `json:"total"`
	ByStatus     map[Status]int `json:"by_status"`
	WithDeadline int            `json:"with_deadline"`
	Overdue      int            `json:"overdue"`
}

// Summarize counts projects by status and deadline.
func Summarize(projects []Project, now time.Time) Summary {
	s := Summary{Total: len(projects), ByStatus: make(map[Status]int)}
	today := DateOf(now)
	for _, p := range projects {
		s.ByStatus[p.Status]++
		if p.Deadline != nil {
			s.WithDeadline++
			if p.Deadline.Before(today) && p.Status != StatusDone && p.Status != StatusArchived && p.Status != StatusCancelled {
				s.Overdue++
			}
		}
	}
	return s
}

// DateOf truncates t to its calendar date in t's location and returns that
// date at midnight UTC, the canonical deadline representation.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a deadline the way the studio writes dates.
func FormatDate(t *time.Time) string {
	if t == nil {
		return "aucune"
	}
	return t.Format("02/01/2006")
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool { return &v }
