package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/studio-agent/internal/llm"
	"github.com/p-blackswan/studio-agent/internal/project"
)

// OracleRequest is everything the conversational oracle may see: the user's
// words, aggregate counts and past turns. It never receives project records.
type OracleRequest struct {
	Message string
	Summary project.Summary
	History []Turn
	Complex bool
}

// Oracle produces free-form text. It has no access to the store and its
// output is only ever wrapped in a GeneralResult.
type Oracle interface {
	Reply(ctx context.Context, req OracleRequest) (string, error)
}

// OracleFunc adapts a function to Oracle.
type OracleFunc func(ctx context.Context, req OracleRequest) (string, error)

func (f OracleFunc) Reply(ctx context.Context, req OracleRequest) (string, error) {
	return f(ctx, req)
}

const oracleSystemPrompt = `Tu es l'assistant d'un studio de production musicale.
Tu réponds en français, brièvement et avec bienveillance.
Tu n'as AUCUN accès en écriture : ne prétends jamais avoir modifié, créé ou supprimé un projet.
Pour modifier des projets, l'utilisateur doit formuler une commande (par exemple « passe les projets à 80% en terminé »), qui sera confirmée séparément.
Voici un résumé chiffré du catalogue, en lecture seule :
`

const maxOracleHistory = 10

// LLMOracle answers through a language model provider.
type LLMOracle struct {
	provider  llm.Provider
	timeout   time.Duration
	maxTokens int
	logger    zerolog.Logger
}

// NewLLMOracle wraps provider. A zero timeout disables the per-call deadline.
func NewLLMOracle(provider llm.Provider, timeout time.Duration, maxTokens int, logger zerolog.Logger) *LLMOracle {
	return &LLMOracle{
		provider:  provider,
		timeout:   timeout,
		maxTokens: maxTokens,
		logger:    logger.With().Str("component", "oracle").Logger(),
	}
}

// Reply sends one completion request. It is not retried.
func (o *LLMOracle) Reply(ctx context.Context, req OracleRequest) (string, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	history := req.History
	if len(history) > maxOracleHistory {
		history = history[len(history)-maxOracleHistory:]
	}
	msgs := make([]llm.Message, 0, len(history)+1)
	for _, t := range history {
		role := llm.RoleUser
		if t.Role == RoleAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: t.Text})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: req.Message})

	maxTokens := o.maxTokens
	if !req.Complex && maxTokens > 512 {
		maxTokens = 512
	}

	resp, err := o.provider.Complete(ctx, llm.CompletionRequest{
		Messages:     msgs,
		SystemPrompt: oracleSystemPrompt + describeSummary(req.Summary),
		MaxTokens:    maxTokens,
		Temperature:  0.4,
	})
	if err != nil {
		return "", fmt.Errorf("oracle completion: %w", err)
	}
	o.logger.Debug().
		Int("input_tokens", resp.InputTokens).
		Int("output_tokens", resp.OutputTokens).
		Bool("truncated", resp.Truncated()).
		Msg("oracle replied")
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("oracle completion: empty reply")
	}
	return text, nil
}

func describeSummary(s project.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "- %d projet(s) au total\n", s.Total)
	for _, st := range project.AllStatuses() {
		if n := s.ByStatus[st]; n > 0 {
			fmt.Fprintf(&b, "- %d %s\n", n, st.Label())
		}
	}
	fmt.Fprintf(&b, "- %d avec une deadline, dont %d en retard", s.WithDeadline, s.Overdue)
	return b.String()
}
