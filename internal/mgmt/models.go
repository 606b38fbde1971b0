// Package mgmt serves the studio assistant over HTTP.
package mgmt

import (
	"time"

	"github.com/p-blackswan/studio-agent/internal/assistant"
	"github.com/p-blackswan/studio-agent/internal/project"
	"github.com/p-blackswan/studio-agent/internal/store"
)

// MessageRequest is the body of POST /api/v1/conversations/:id/messages.
type MessageRequest struct {
	Text string `json:"text"`
}

// MessageResponse wraps the routing result. Result carries the typed payload
// named by Kind.
type MessageResponse struct {
	ConversationID string           `json:"conversation_id"`
	Kind           assistant.Kind   `json:"kind"`
	Text           string           `json:"text"`
	Result         assistant.Result `json:"result"`
}

// ConfirmResponse is returned once an action was applied.
type ConfirmResponse struct {
	ActionID string            `json:"action_id"`
	Message  string            `json:"message"`
	Updated  []project.Project `json:"updated"`
}

// CreateProjectRequest is the body of POST /api/v1/projects.
type CreateProjectRequest struct {
	Name         string         `json:"name"`
	Status       project.Status `json:"status,omitempty"`
	Progress     *int           `json:"progress,omitempty"`
	Deadline     string         `json:"deadline,omitempty"` // 2006-01-02
	Collaborator string         `json:"collaborator,omitempty"`
	Style        string         `json:"style,omitempty"`
	Label        string         `json:"label,omitempty"`
	Note         string         `json:"note,omitempty"`
}

// ProjectListResponse is returned by GET /api/v1/projects.
type ProjectListResponse struct {
	Projects []project.Project `json:"projects"`
	Total    int               `json:"total"`
}

// AuditListResponse is returned by GET /api/v1/audit.
type AuditListResponse struct {
	Entries []store.AuditEntry `json:"entries"`
}

// ReadinessResponse is returned by GET /readyz.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
	Uptime string            `json:"uptime"`
}

// ProblemDetail follows RFC 7807 for error responses.
type ProblemDetail struct {
	Type       string   `json:"type"`
	Title      string   `json:"title"`
	Status     int      `json:"status"`
	Detail     string   `json:"detail,omitempty"`
	Instance   string   `json:"instance,omitempty"`
	RequestID  string   `json:"request_id,omitempty"`
	ProjectIDs []string `json:"project_ids,omitempty"`
}

const dateLayout = "2006-01-02"

func (r CreateProjectRequest) draft() (project.Draft, error) {
	d := project.Draft{
		Name:         r.Name,
		Status:       r.Status,
		Progress:     r.Progress,
		Collaborator: r.Collaborator,
		Style:        r.Style,
		Label:        r.Label,
		Note:         r.Note,
	}
	if r.Deadline != "" {
		t, err := time.Parse(dateLayout, r.Deadline)
		if err != nil {
			return project.Draft{}, err
		}
		d.Deadline = &t
	}
	return d, nil
}
