// Package conversation keeps per-conversation state around the router: the
// working memory, a bounded history and any unanswered scope prompt. It
// persists staged actions and applies them against the store once confirmed.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/studio-agent/internal/assistant"
	perrors "github.com/p-blackswan/studio-agent/internal/errors"
	"github.com/p-blackswan/studio-agent/internal/lru"
	"github.com/p-blackswan/studio-agent/internal/metrics"
	"github.com/p-blackswan/studio-agent/internal/project"
	"github.com/p-blackswan/studio-agent/internal/store"
)

// MaxHistory is the number of turns kept per conversation.
const MaxHistory = 20

// Store is the persistence the service needs.
type Store interface {
	ListProjects(ctx context.Context) ([]project.Project, error)
	Vocabulary(ctx context.Context) (project.Vocabulary, error)
	CreateProject(ctx context.Context, d project.Draft, now time.Time) (project.Project, error)
	ApplyAction(ctx context.Context, a assistant.PendingAction, actor string, now time.Time) ([]project.Project, error)
	SavePendingAction(ctx context.Context, conversationID string, a assistant.PendingAction, expiresAt time.Time) error
	TakePendingAction(ctx context.Context, id string, now time.Time) (assistant.PendingAction, string, error)
	DeletePendingAction(ctx context.Context, id string) (bool, error)
	SaveConversation(ctx context.Context, c store.Conversation) error
	LoadConversation(ctx context.Context, id string) (store.Conversation, bool, error)
	RecordAudit(ctx context.Context, actionID, event, actor, details string, now time.Time) error
}

// Options configures a Service.
type Options struct {
	ActionTTL       time.Duration
	SessionCapacity int
	SessionIdleTTL  time.Duration
	Now             func() time.Time
	Metrics         *metrics.Metrics
	Logger          zerolog.Logger
}

// Service handles messages and action decisions for every conversation.
type Service struct {
	store     Store
	router    *assistant.Router
	sessions  *lru.Cache[string, *session]
	actionTTL time.Duration
	now       func() time.Time
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	loadMu sync.Mutex
}

type session struct {
	mu    sync.Mutex
	state store.Conversation
}

// Applied is the outcome of a confirmed action.
type Applied struct {
	Action  assistant.PendingAction
	Updated []project.Project
	Message string
}

// NewService creates a Service.
func NewService(st Store, router *assistant.Router, opts Options) *Service {
	if opts.ActionTTL <= 0 {
		opts.ActionTTL = 30 * time.Minute
	}
	if opts.SessionCapacity <= 0 {
		opts.SessionCapacity = 256
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Service{
		store:     st,
		router:    router,
		actionTTL: opts.ActionTTL,
		now:       opts.Now,
		metrics:   opts.Metrics,
		logger:    opts.Logger.With().Str("component", "conversation").Logger(),
	}
	s.sessions = lru.New(lru.Options[string, *session]{
		Capacity: opts.SessionCapacity,
		IdleTTL:  opts.SessionIdleTTL,
		Now:      opts.Now,
		OnEvict: func(id string, _ *session, reason lru.EvictReason) {
			s.logger.Debug().Str("conversation_id", id).Stringer("reason", reason).Msg("session evicted")
			s.metrics.SetSessions(s.sessions.Len())
		},
	})
	return s
}

// Run sweeps idle sessions every interval until ctx is done.
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	s.sessions.StartJanitor(ctx, interval)
	<-ctx.Done()
	s.sessions.Wait()
}

// Sessions returns the number of sessions held in memory.
func (s *Service) Sessions() int {
	return s.sessions.Len()
}

func (s *Service) session(ctx context.Context, id string) (*session, error) {
	if sess, ok := s.sessions.Get(id); ok {
		return sess, nil
	}

	s.loadMu.Lock()
	defer s.loadMu.Unlock()
	if sess, ok := s.sessions.Get(id); ok {
		return sess, nil
	}
	state, found, err := s.store.LoadConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		state = store.Conversation{ID: id}
	}
	sess := &session{state: state}
	s.sessions.Put(id, sess)
	s.metrics.SetSessions(s.sessions.Len())
	return sess, nil
}

// Handle routes one message of a conversation. An affirmative answer to a
// pending scope prompt stages the carried mutation over every project
// without parsing the text again; a negative answer drops the prompt.
func (s *Service) Handle(ctx context.Context, conversationID, text string) (assistant.Result, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, fmt.Errorf("conversation id is required: %w", perrors.ErrInvalidInput)
	}
	sess, err := s.session(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", conversationID, err)
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	state := sess.state
	pending := state.PendingScope
	state.PendingScope = nil

	projects, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("load projects: %w", err)
	}

	var res assistant.Result
	switch {
	case pending != nil && assistant.IsAffirmative(text):
		res = s.router.StageForAll(*pending, projects)
	case pending != nil && assistant.IsNegative(text):
		res = &assistant.GeneralResult{Message: "D'accord, je ne modifie rien.", Source: assistant.SourceAssistant}
	default:
		vocab, err := s.store.Vocabulary(ctx)
		if err != nil {
			return nil, fmt.Errorf("load vocabulary: %w", err)
		}
		res, err = s.router.Route(ctx, &assistant.Request{
			Text:       text,
			Projects:   projects,
			Vocabulary: vocab,
			Memory:     state.Memory,
			History:    state.History,
		})
		if err != nil {
			return nil, err
		}
	}

	now := s.now()
	switch r := res.(type) {
	case *assistant.PendingActionResult:
		if err := s.store.SavePendingAction(ctx, conversationID, r.Action, now.Add(s.actionTTL)); err != nil {
			return nil, fmt.Errorf("save action: %w", err)
		}
		if err := s.store.RecordAudit(ctx, r.Action.ID, "staged", conversationID, r.Action.Description, now); err != nil {
			s.logger.Warn().Err(err).Str("action_id", r.Action.ID).Msg("failed to audit staged action")
		}
		s.metrics.RecordAction("staged")
	case *assistant.ScopeConfirmationResult:
		m := r.Mutation
		state.PendingScope = &m
	}

	state.Memory = assistant.Remember(state.Memory, res)
	state.History = appendTurns(state.History,
		assistant.Turn{Role: assistant.RoleUser, Text: text},
		assistant.Turn{Role: assistant.RoleAssistant, Text: res.Text()},
	)
	state.UpdatedAt = now
	if err := s.store.SaveConversation(ctx, state); err != nil {
		return nil, fmt.Errorf("save conversation: %w", err)
	}
	sess.state = state

	s.logger.Debug().
		Str("conversation_id", conversationID).
		Str("kind", string(res.Kind())).
		Msg("message handled")
	return res, nil
}

func appendTurns(history []assistant.Turn, turns ...assistant.Turn) []assistant.Turn {
	out := make([]assistant.Turn, 0, len(history)+len(turns))
	out = append(out, history...)
	out = append(out, turns...)
	if len(out) > MaxHistory {
		out = out[len(out)-MaxHistory:]
	}
	return out
}

// Confirm applies a staged action. The action is consumed whether or not the
// apply succeeds: an expired action yields ErrExpired, and a project changed
// since staging aborts everything with a *errors.ConflictError.
func (s *Service) Confirm(ctx context.Context, actionID, actor string) (*Applied, error) {
	now := s.now()
	a, _, err := s.store.TakePendingAction(ctx, actionID, now)
	if err != nil {
		if errors.Is(err, perrors.ErrExpired) {
			s.audit(ctx, actionID, "expired", actor, "", now)
			s.metrics.RecordAction("expired")
		}
		return nil, err
	}

	updated, err := s.store.ApplyAction(ctx, a, actor, now)
	var conflict *perrors.ConflictError
	if errors.As(err, &conflict) {
		s.audit(ctx, a.ID, "conflict", actor, strings.Join(conflict.ProjectIDs, ","), now)
		s.metrics.RecordAction("conflict")
		return nil, err
	}
	if err != nil {
		s.metrics.RecordError("conversation", "apply")
		return nil, err
	}

	s.metrics.RecordAction("applied")
	return &Applied{
		Action:  a,
		Updated: updated,
		Message: fmt.Sprintf("C'est fait : %s mis à jour.", countProjects(len(updated))),
	}, nil
}

// Cancel drops a staged action.
func (s *Service) Cancel(ctx context.Context, actionID, actor string) error {
	ok, err := s.store.DeletePendingAction(ctx, actionID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("action %s: %w", actionID, perrors.ErrNotFound)
	}
	s.audit(ctx, actionID, "cancelled", actor, "", s.now())
	s.metrics.RecordAction("cancelled")
	return nil
}

// Create persists a project described by a creation request.
func (s *Service) Create(ctx context.Context, d project.Draft) (project.Project, error) {
	return s.store.CreateProject(ctx, d, s.now())
}

func (s *Service) audit(ctx context.Context, actionID, event, actor, details string, now time.Time) {
	if err := s.store.RecordAudit(ctx, actionID, event, actor, details, now); err != nil {
		s.logger.Warn().Err(err).Str("action_id", actionID).Str("event", event).Msg("failed to write audit entry")
	}
}

func countProjects(n int) string {
	if n == 1 {
		return "1 projet"
	}
	return fmt.Sprintf("%d projets", n)
}

// UserMessage renders an error from Confirm or Cancel for the person who
// clicked.
func UserMessage(err error) string {
	var conflict *perrors.ConflictError
	switch {
	case errors.As(err, &conflict):
		return fmt.Sprintf("Rien n'a été modifié : %d projet(s) ont changé depuis la préparation. Relance ta demande.", len(conflict.ProjectIDs))
	case errors.Is(err, perrors.ErrExpired):
		return "Cette action a expiré. Relance ta demande."
	case errors.Is(err, perrors.ErrNotFound):
		return "Cette action n'existe plus (déjà appliquée ou annulée)."
	default:
		return "Une erreur est survenue, rien n'a été modifié."
	}
}
