// Package llm defines the language model provider interface used by the
// conversational oracle. Providers only produce text: there is no tool use, so
// nothing reached through this package can act on the catalog.
package llm

import (
	"context"
)

// Role constants for Message.Role.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// StopReason describes why the model stopped generating.
const (
	StopReasonEndTurn   = "end_turn"
	StopReasonMaxTokens = "max_tokens"
)

// Message is one prior turn sent as context.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the input to a provider's Complete call.
type CompletionRequest struct {
	Messages     []Message
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
	Model        string // override provider default if set
}

// CompletionResponse is returned by Complete.
type CompletionResponse struct {
	Text         string
	StopReason   string
	InputTokens  int
	OutputTokens int
}

// Truncated reports whether the reply was cut by the token budget.
func (r *CompletionResponse) Truncated() bool {
	return r.StopReason == StopReasonMaxTokens
}

// Provider is a text-only language model backend.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	ModelID() string
	// MaxTokens is the default output budget when a request sets none.
	MaxTokens() int
}
