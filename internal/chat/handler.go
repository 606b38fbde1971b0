package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"golang.org/x/time/rate"

	"github.com/p-blackswan/studio-agent/internal/assistant"
	"github.com/p-blackswan/studio-agent/internal/conversation"
	perrors "github.com/p-blackswan/studio-agent/internal/errors"
	"github.com/p-blackswan/studio-agent/internal/metrics"
	"github.com/p-blackswan/studio-agent/internal/project"
	"github.com/p-blackswan/studio-agent/internal/retry"
)

// Conversations is the part of the conversation service the bot drives.
type Conversations interface {
	Handle(ctx context.Context, conversationID, text string) (assistant.Result, error)
	Confirm(ctx context.Context, actionID, actor string) (*conversation.Applied, error)
	Cancel(ctx context.Context, actionID, actor string) error
	Create(ctx context.Context, d project.Draft) (project.Project, error)
}

// Acker acknowledges Socket Mode envelopes.
type Acker interface {
	Ack(req socketmode.Request, payload ...interface{})
}

// Options configures a Handler.
type Options struct {
	AllowedChannels []string
	// PerUserRate and PerUserBurst throttle each Slack user. Zero disables it.
	PerUserRate  rate.Limit
	PerUserBurst int
	Retry        retry.Config
	Now          func() time.Time
	Metrics      *metrics.Metrics
	Logger       zerolog.Logger
}

// Handler turns Slack events into conversation calls and posts the replies.
type Handler struct {
	api           BotAPI
	acker         Acker
	conversations Conversations
	allowed       map[string]bool
	retry         retry.Config
	now           func() time.Time
	metrics       *metrics.Metrics
	logger        zerolog.Logger

	limit    rate.Limit
	burst    int
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

var mentionRe = regexp.MustCompile(`<@[A-Z0-9]+>`)

// NewHandler creates an event handler.
func NewHandler(conversations Conversations, opts Options) *Handler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.DefaultConfig()
	}
	h := &Handler{
		conversations: conversations,
		allowed:       channelSet(opts.AllowedChannels),
		retry:         opts.Retry,
		now:           opts.Now,
		metrics:       opts.Metrics,
		logger:        opts.Logger.With().Str("component", "chat.handler").Logger(),
		limit:         opts.PerUserRate,
		burst:         opts.PerUserBurst,
		limiters:      make(map[string]*rate.Limiter),
	}
	h.retry.OnRetry = func(attempt int, err error, delay time.Duration) {
		h.logger.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("slack call failed, retrying")
	}
	return h
}

// HandleEvent routes Socket Mode events to the appropriate handler.
func (h *Handler) HandleEvent(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeEventsAPI:
		h.ack(evt)
		eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			h.logger.Warn().Str("type", string(evt.Type)).Msg("failed to cast events_api data")
			return
		}
		if eventsAPIEvent.Type == slackevents.CallbackEvent {
			h.handleCallbackEvent(ctx, eventsAPIEvent.InnerEvent)
		}
	case socketmode.EventTypeInteractive:
		h.ack(evt)
		callback, ok := evt.Data.(slack.InteractionCallback)
		if !ok {
			return
		}
		h.HandleInteraction(ctx, callback)
	default:
		h.logger.Debug().Str("type", string(evt.Type)).Msg("unhandled event type")
	}
}

func (h *Handler) ack(evt socketmode.Event) {
	if h.acker != nil && evt.Request != nil {
		h.acker.Ack(*evt.Request)
	}
}

func (h *Handler) handleCallbackEvent(ctx context.Context, inner slackevents.EventsAPIInnerEvent) {
	switch ev := inner.Data.(type) {
	case *slackevents.AppMentionEvent:
		thread := ev.ThreadTimeStamp
		if thread == "" {
			thread = ev.TimeStamp
		}
		h.HandleMessage(ctx, ev.Channel, ev.User, ev.Text, thread)
	case *slackevents.MessageEvent:
		// Bot echoes and edits carry a subtype or no user.
		if ev.User == "" || ev.SubType != "" || ev.ChannelType != "im" {
			return
		}
		h.HandleMessage(ctx, ev.Channel, ev.User, ev.Text, ev.ThreadTimeStamp)
	default:
		h.logger.Debug().Str("inner_type", inner.Type).Msg("unhandled callback event type")
	}
}

// ConversationID keys a Slack exchange: one per direct-message channel and
// one per thread elsewhere.
func ConversationID(channelID, threadTS string) string {
	if isDirect(channelID) || threadTS == "" {
		return "slack:" + channelID
	}
	return "slack:" + channelID + ":" + threadTS
}

func (h *Handler) permitted(channelID string) bool {
	return isDirect(channelID) || h.allowed[channelID]
}

func (h *Handler) allowUser(userID string) bool {
	if h.limit <= 0 {
		return true
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.limiters[userID]
	if !ok {
		l = rate.NewLimiter(h.limit, max(h.burst, 1))
		h.limiters[userID] = l
	}
	return l.Allow()
}

// HandleMessage runs one user message through the conversation service and
// replies in the same thread.
func (h *Handler) HandleMessage(ctx context.Context, channelID, userID, text, threadTS string) {
	if !h.permitted(channelID) {
		h.logger.Debug().Str("channel", channelID).Msg("ignoring message from non-allowlisted channel")
		return
	}
	text = strings.TrimSpace(mentionRe.ReplaceAllString(text, ""))
	if !h.allowUser(userID) {
		h.metrics.RecordError("chat", "rate_limited")
		h.reply(ctx, channelID, threadTS, nil, "Doucement ! Laisse-moi quelques secondes avant le prochain message.")
		return
	}

	convID := ConversationID(channelID, threadTS)
	h.logger.Info().Str("user", userID).Str("conversation_id", convID).Msg("message received")

	res, err := h.conversations.Handle(ctx, convID, text)
	if err != nil {
		h.logger.Error().Err(err).Str("conversation_id", convID).Msg("failed to handle message")
		h.metrics.RecordError("chat", "handle")
		h.reply(ctx, channelID, threadTS, nil, "Désolé, je n'ai pas pu traiter ta demande. Réessaie dans un instant.")
		return
	}
	h.reply(ctx, channelID, threadTS, BuildBlocks(res, convID, h.now()), res.Text())
}

// HandleInteraction processes button clicks.
func (h *Handler) HandleInteraction(ctx context.Context, callback slack.InteractionCallback) {
	channelID := callback.Channel.ID
	thread := callback.Message.ThreadTimestamp
	if thread == "" {
		thread = callback.Message.Timestamp
	}
	actor := "slack:" + callback.User.ID

	for _, action := range callback.ActionCallback.BlockActions {
		h.logger.Info().
			Str("action", action.ActionID).
			Str("user", callback.User.ID).
			Msg("interaction received")

		switch action.ActionID {
		case actionConfirm:
			var outcome string
			applied, err := h.conversations.Confirm(ctx, action.Value, actor)
			if err != nil {
				outcome = conversation.UserMessage(err)
				if !errors.Is(err, perrors.ErrConflict) && !errors.Is(err, perrors.ErrExpired) && !errors.Is(err, perrors.ErrNotFound) {
					h.logger.Error().Err(err).Str("action_id", action.Value).Msg("confirm failed")
				}
			} else {
				outcome = "✅ " + applied.Message
			}
			h.closeInteractive(ctx, callback, outcome)

		case actionCancel:
			outcome := "Action annulée."
			if err := h.conversations.Cancel(ctx, action.Value, actor); err != nil {
				outcome = conversation.UserMessage(err)
			}
			h.closeInteractive(ctx, callback, outcome)

		case actionApplyAll, actionDropAll:
			answer, outcome := "applique à tous", "Application à tous les projets demandée."
			if action.ActionID == actionDropAll {
				answer, outcome = "non", "Rien ne sera modifié."
			}
			h.closeInteractive(ctx, callback, outcome)
			res, err := h.conversations.Handle(ctx, action.Value, answer)
			if err != nil {
				h.logger.Error().Err(err).Str("conversation_id", action.Value).Msg("scope follow-up failed")
				continue
			}
			if action.ActionID == actionApplyAll {
				h.reply(ctx, channelID, thread, BuildBlocks(res, action.Value, h.now()), res.Text())
			}

		case actionCreate:
			var d project.Draft
			outcome := "Je n'ai pas pu lire ce projet."
			if err := json.Unmarshal([]byte(action.Value), &d); err == nil {
				if p, err := h.conversations.Create(ctx, d); err != nil {
					h.logger.Error().Err(err).Str("name", d.Name).Msg("create failed")
					outcome = "Création impossible : " + err.Error()
				} else {
					outcome = fmt.Sprintf("Projet « %s » créé.", p.Name)
				}
			}
			h.closeInteractive(ctx, callback, outcome)

		default:
			h.logger.Debug().Str("action", action.ActionID).Msg("unknown action")
		}
	}
}

// closeInteractive rewrites the clicked message without its buttons.
func (h *Handler) closeInteractive(ctx context.Context, callback slack.InteractionCallback, outcome string) {
	if h.api == nil {
		return
	}
	original := ""
	for _, block := range callback.Message.Msg.Blocks.BlockSet {
		if s, ok := block.(*slack.SectionBlock); ok && s.Text != nil {
			original = s.Text.Text
			break
		}
	}
	blocks := outcomeBlocks(original, outcome, callback.User.ID)
	err := retry.Do(ctx, h.retry, func(context.Context) error {
		_, _, _, err := h.api.UpdateMessage(callback.Channel.ID, callback.Message.Timestamp,
			slack.MsgOptionText(outcome, false),
			slack.MsgOptionBlocks(blocks...),
		)
		return classify(err)
	})
	if err != nil {
		h.logger.Warn().Err(err).Str("channel", callback.Channel.ID).Msg("failed to update interactive message")
	}
}

func (h *Handler) reply(ctx context.Context, channelID, threadTS string, blocks []slack.Block, text string) {
	if h.api == nil {
		return
	}
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if len(blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(blocks...))
	}
	if threadTS != "" && !isDirect(channelID) {
		opts = append(opts, slack.MsgOptionTS(threadTS))
	}
	err := retry.Do(ctx, h.retry, func(context.Context) error {
		_, _, err := h.api.PostMessage(channelID, opts...)
		return classify(err)
	})
	if err != nil {
		h.metrics.RecordError("chat", "post")
		h.logger.Error().Err(err).Str("channel", channelID).Msg("failed to post reply")
	}
}

// classify marks Slack rate limiting as retryable.
func classify(err error) error {
	var rl *slack.RateLimitedError
	if errors.As(err, &rl) {
		return fmt.Errorf("%w: %v", perrors.ErrRateLimit, err)
	}
	return err
}
