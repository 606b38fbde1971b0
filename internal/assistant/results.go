package assistant

import (
	"github.com/p-blackswan/studio-agent/internal/project"
)

// Kind tags a Result variant on the wire.
type Kind string

const (
	KindList              Kind = "list"
	KindCount             Kind = "count"
	KindCreate            Kind = "create"
	KindPendingAction     Kind = "pending_action"
	KindScopeConfirmation Kind = "scope_confirmation"
	KindGeneral           Kind = "general"
)

// ConfirmationScopeMissing is the confirmationType of a scope prompt.
const ConfirmationScopeMissing = "scope_missing"

// Result is what Route returns. Every exit of the router yields exactly one
// of ListResult, CreateResult, PendingActionResult, ScopeConfirmationResult or
// GeneralResult.
type Result interface {
	Kind() Kind
	// Text is the French message shown to the user.
	Text() string
}

// ListResult is a read-only listing or count.
type ListResult struct {
	Filter    project.Filter    `json:"filter"`
	Projects  []project.Project `json:"projects"`
	CountOnly bool              `json:"count_only,omitempty"`
	Detailed  bool              `json:"detailed,omitempty"`
	Message   string            `json:"message"`
}

func (r *ListResult) Kind() Kind {
	if r.CountOnly {
		return KindCount
	}
	return KindList
}
func (r *ListResult) Text() string { return r.Message }

// IDs returns the ids of the listed projects in order.
func (r *ListResult) IDs() []string {
	ids := make([]string, len(r.Projects))
	for i, p := range r.Projects {
		ids[i] = p.ID
	}
	return ids
}

// CreateResult asks the caller to create a project from Draft.
type CreateResult struct {
	Draft   project.Draft `json:"draft"`
	Message string        `json:"message"`
}

func (r *CreateResult) Kind() Kind   { return KindCreate }
func (r *CreateResult) Text() string { return r.Message }

// PendingActionResult carries a staged mutation waiting for confirmation.
type PendingActionResult struct {
	Action  PendingAction `json:"action"`
	Message string        `json:"message"`
}

func (r *PendingActionResult) Kind() Kind   { return KindPendingAction }
func (r *PendingActionResult) Text() string { return r.Message }

// ScopeConfirmationResult asks whether a mutation with no resolvable scope
// should apply to every project. Mutation is carried as-is so the follow-up
// does not need to re-parse the utterance.
type ScopeConfirmationResult struct {
	ConfirmationType string           `json:"confirmation_type"`
	Mutation         project.Mutation `json:"mutation"`
	Message          string           `json:"message"`
}

func (r *ScopeConfirmationResult) Kind() Kind   { return KindScopeConfirmation }
func (r *ScopeConfirmationResult) Text() string { return r.Message }

// Source of a GeneralResult.
const (
	SourceAssistant    = "assistant"
	SourceCapabilities = "capabilities"
	SourceOracle       = "oracle"
	SourceFallback     = "fallback"
)

// GeneralResult is plain text. It is the only variant the oracle path can
// produce.
type GeneralResult struct {
	Message string `json:"message"`
	Source  string `json:"source"`
}

func (r *GeneralResult) Kind() Kind   { return KindGeneral }
func (r *GeneralResult) Text() string { return r.Message }
