package assistant

import (
	"github.com/p-blackswan/studio-agent/internal/project"
)

// WorkingMemory is the per-conversation outcome of the latest listing. The
// router only reads it; callers replace it with Remember after each call.
type WorkingMemory struct {
	LastListedProjectIDs []string        `json:"last_listed_project_ids,omitempty"`
	LastAppliedFilter    *project.Filter `json:"last_applied_filter,omitempty"`
}

// IsEmpty reports whether nothing has been listed yet.
func (m WorkingMemory) IsEmpty() bool {
	return len(m.LastListedProjectIDs) == 0 && !m.hasFilter()
}

func (m WorkingMemory) hasFilter() bool {
	return m.LastAppliedFilter != nil && !m.LastAppliedFilter.IsZero()
}

// Remember returns the memory to keep after res. Only a listing replaces it;
// any other result leaves prev untouched.
func Remember(prev WorkingMemory, res Result) WorkingMemory {
	list, ok := res.(*ListResult)
	if !ok {
		return prev
	}
	f := list.Filter
	return WorkingMemory{
		LastListedProjectIDs: list.IDs(),
		LastAppliedFilter:    &f,
	}
}

// Role of a conversation turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message of the conversation history.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}
