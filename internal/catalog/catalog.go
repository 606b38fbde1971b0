// Package catalog reads and writes project catalogs in YAML, the format used
// to seed a studio database and to export it.
package catalog

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/p-blackswan/studio-agent/internal/lexicon"
	"github.com/p-blackswan/studio-agent/internal/project"
)

const dateLayout = "2006-01-02"

// File is the top-level shape of a catalog file.
type File struct {
	Projects []Entry `yaml:"projects"`
}

// Entry is one project in a catalog file.
type Entry struct {
	Name string `yaml:"name"`
	// Status is a status code ("in_progress") or its French wording
	// ("en cours", "à retravailler"). Defaults to in progress.
	Status       string `yaml:"status,omitempty"`
	Progress     *int   `yaml:"progress,omitempty"`
	Deadline     string `yaml:"deadline,omitempty"` // YYYY-MM-DD
	Collaborator string `yaml:"collaborator,omitempty"`
	Style        string `yaml:"style,omitempty"`
	Label        string `yaml:"label,omitempty"`
	Note         string `yaml:"note,omitempty"`
}

// Load reads and validates a catalog file.
func Load(path string) ([]project.Draft, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	drafts, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return drafts, nil
}

// Parse decodes catalog YAML into drafts ready for the store. Names must be
// unique, case-insensitively.
func Parse(data []byte) ([]project.Draft, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	seen := make(map[string]bool, len(f.Projects))
	drafts := make([]project.Draft, 0, len(f.Projects))
	for i, e := range f.Projects {
		d, err := e.draft()
		if err != nil {
			return nil, fmt.Errorf("project #%d: %w", i+1, err)
		}
		key := lexicon.Fold(d.Name)
		if seen[key] {
			return nil, fmt.Errorf("project #%d: duplicate name %q", i+1, d.Name)
		}
		seen[key] = true
		drafts = append(drafts, d)
	}
	return drafts, nil
}

func (e Entry) draft() (project.Draft, error) {
	d := project.Draft{
		Name:         strings.TrimSpace(e.Name),
		Progress:     e.Progress,
		Collaborator: strings.TrimSpace(e.Collaborator),
		Style:        strings.TrimSpace(e.Style),
		Label:        strings.TrimSpace(e.Label),
		Note:         strings.TrimSpace(e.Note),
	}
	if d.Name == "" {
		return project.Draft{}, fmt.Errorf("name is required")
	}

	status, err := parseStatus(e.Status)
	if err != nil {
		return project.Draft{}, fmt.Errorf("%s: %w", d.Name, err)
	}
	d.Status = status

	if d.Progress != nil && (*d.Progress < 0 || *d.Progress > 100) {
		return project.Draft{}, fmt.Errorf("%s: progress %d out of range", d.Name, *d.Progress)
	}
	if e.Deadline != "" {
		t, err := time.Parse(dateLayout, strings.TrimSpace(e.Deadline))
		if err != nil {
			return project.Draft{}, fmt.Errorf("%s: deadline %q is not YYYY-MM-DD", d.Name, e.Deadline)
		}
		d.Deadline = &t
	}
	return d, nil
}

func parseStatus(raw string) (project.Status, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return project.StatusInProgress, nil
	}
	if s := project.Status(raw); s.Valid() {
		return s, nil
	}
	if m, ok := lexicon.DetectStatus(raw); ok {
		return m.Status, nil
	}
	return "", fmt.Errorf("unknown status %q", raw)
}

// Encode renders projects as a catalog file that Parse accepts.
func Encode(projects []project.Project) ([]byte, error) {
	f := File{Projects: make([]Entry, 0, len(projects))}
	for _, p := range projects {
		e := Entry{
			Name:         p.Name,
			Status:       string(p.Status),
			Progress:     p.Progress,
			Collaborator: p.Collaborator,
			Style:        p.Style,
			Label:        p.Label,
			Note:         p.Note,
		}
		if p.Deadline != nil {
			e.Deadline = p.Deadline.Format(dateLayout)
		}
		f.Projects = append(f.Projects, e)
	}
	out, err := yaml.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("catalog: encode: %w", err)
	}
	return out, nil
}
