package chat

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/studio-agent/internal/assistant"
	"github.com/p-blackswan/studio-agent/internal/conversation"
	perrors "github.com/p-blackswan/studio-agent/internal/errors"
	"github.com/p-blackswan/studio-agent/internal/project"
	"github.com/p-blackswan/studio-agent/internal/retry"
)

var now = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

type sent struct {
	channel   string
	timestamp string
	values    url.Values
}

// mockSlackAPI implements BotAPI for testing.
type mockSlackAPI struct {
	mu        sync.Mutex
	posts     []sent
	updates   []sent
	failPosts int
}

func render(t *testing.T, channel string, options []slack.MsgOption) url.Values {
	t.Helper()
	_, values, err := slack.UnsafeApplyMsgOptions("xoxb-test", channel, "https://slack.test/api/", options...)
	require.NoError(t, err)
	return values
}

type recordingAPI struct {
	*mockSlackAPI
	t *testing.T
}

func (m recordingAPI) PostMessage(channelID string, options ...slack.MsgOption) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPosts > 0 {
		m.failPosts--
		return "", "", &slack.RateLimitedError{RetryAfter: time.Millisecond}
	}
	m.posts = append(m.posts, sent{channel: channelID, values: render(m.t, channelID, options)})
	return channelID, "1700000000.000100", nil
}

func (m recordingAPI) UpdateMessage(channelID, timestamp string, options ...slack.MsgOption) (string, string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, sent{channel: channelID, timestamp: timestamp, values: render(m.t, channelID, options)})
	return channelID, timestamp, "", nil
}

func (m recordingAPI) AuthTestContext(context.Context) (*slack.AuthTestResponse, error) {
	return &slack.AuthTestResponse{UserID: "U123BOT"}, nil
}

type call struct {
	conversationID string
	text           string
}

// fakeConversations records calls and answers with canned results.
type fakeConversations struct {
	mu         sync.Mutex
	handled    []call
	confirmed  []string
	cancelled  []string
	created    []project.Draft
	result     assistant.Result
	confirmErr error
}

func (f *fakeConversations) Handle(_ context.Context, conversationID, text string) (assistant.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handled = append(f.handled, call{conversationID, text})
	if f.result != nil {
		return f.result, nil
	}
	return &assistant.GeneralResult{Message: "ok", Source: assistant.SourceAssistant}, nil
}

func (f *fakeConversations) Confirm(_ context.Context, actionID, actor string) (*conversation.Applied, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmed = append(f.confirmed, actionID+"|"+actor)
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	return &conversation.Applied{Message: "C'est fait : 2 projets mis à jour."}, nil
}

func (f *fakeConversations) Cancel(_ context.Context, actionID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, actionID)
	return nil
}

func (f *fakeConversations) Create(_ context.Context, d project.Draft) (project.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, d)
	return project.Project{ID: "p9", Name: d.Name}, nil
}

type fakeAcker struct {
	acked []string
}

func (a *fakeAcker) Ack(req socketmode.Request, _ ...interface{}) {
	a.acked = append(a.acked, req.EnvelopeID)
}

func newTestHandler(t *testing.T, conv *fakeConversations, opts Options) (*Handler, *mockSlackAPI) {
	t.Helper()
	opts.Now = func() time.Time { return now }
	opts.Logger = zerolog.Nop()
	if opts.AllowedChannels == nil {
		opts.AllowedChannels = []string{"C1"}
	}
	opts.Retry = retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	h := NewHandler(conv, opts)
	mock := &mockSlackAPI{}
	h.api = recordingAPI{mockSlackAPI: mock, t: t}
	return h, mock
}

func TestHandleEvent_AppMention(t *testing.T) {
	conv := &fakeConversations{}
	h, mock := newTestHandler(t, conv, Options{})
	acker := &fakeAcker{}
	h.acker = acker

	h.HandleEvent(context.Background(), socketmode.Event{
		Type:    socketmode.EventTypeEventsAPI,
		Request: &socketmode.Request{EnvelopeID: "env-1"},
		Data: slackevents.EventsAPIEvent{
			Type: slackevents.CallbackEvent,
			InnerEvent: slackevents.EventsAPIInnerEvent{
				Type: "app_mention",
				Data: &slackevents.AppMentionEvent{
					User:      "U1",
					Channel:   "C1",
					Text:      "<@U123BOT> liste les projets en cours",
					TimeStamp: "1700000000.000001",
				},
			},
		},
	})

	assert.Equal(t, []string{"env-1"}, acker.acked)
	require.Len(t, conv.handled, 1)
	assert.Equal(t, call{"slack:C1:1700000000.000001", "liste les projets en cours"}, conv.handled[0])
	require.Len(t, mock.posts, 1)
	assert.Equal(t, "1700000000.000001", mock.posts[0].values.Get("thread_ts"))
	assert.Equal(t, "ok", mock.posts[0].values.Get("text"))
}

func TestHandleMessage_ChannelAllowlist(t *testing.T) {
	conv := &fakeConversations{}
	h, mock := newTestHandler(t, conv, Options{AllowedChannels: []string{}})

	h.HandleMessage(context.Background(), "C2", "U1", "liste", "1.1")
	assert.Empty(t, conv.handled)
	assert.Empty(t, mock.posts)

	h.HandleMessage(context.Background(), "D9", "U1", "liste", "")
	require.Len(t, conv.handled, 1)
	assert.Equal(t, "slack:D9", conv.handled[0].conversationID)
	assert.Empty(t, mock.posts[0].values.Get("thread_ts"))
}

func TestHandleEvent_IgnoresBotEcho(t *testing.T) {
	conv := &fakeConversations{}
	h, _ := newTestHandler(t, conv, Options{})
	h.HandleEvent(context.Background(), socketmode.Event{
		Type: socketmode.EventTypeEventsAPI,
		Data: slackevents.EventsAPIEvent{
			Type: slackevents.CallbackEvent,
			InnerEvent: slackevents.EventsAPIInnerEvent{
				Type: "message",
				Data: &slackevents.MessageEvent{Channel: "D1", ChannelType: "im", SubType: "bot_message", Text: "ok"},
			},
		},
	})
	assert.Empty(t, conv.handled)
}

func TestHandleMessage_PerUserRateLimit(t *testing.T) {
	conv := &fakeConversations{}
	h, mock := newTestHandler(t, conv, Options{PerUserRate: 0.001, PerUserBurst: 1})

	h.HandleMessage(context.Background(), "C1", "U1", "liste", "1.1")
	h.HandleMessage(context.Background(), "C1", "U1", "liste", "1.1")
	h.HandleMessage(context.Background(), "C1", "U2", "liste", "1.1")

	assert.Len(t, conv.handled, 2)
	require.Len(t, mock.posts, 3)
	assert.Contains(t, mock.posts[1].values.Get("text"), "Doucement")
}

func TestReply_RetriesSlackRateLimit(t *testing.T) {
	conv := &fakeConversations{}
	h, mock := newTestHandler(t, conv, Options{})
	mock.failPosts = 1

	h.HandleMessage(context.Background(), "C1", "U1", "liste", "1.1")
	assert.Len(t, mock.posts, 1)
}

func interaction(actionID, value string) slack.InteractionCallback {
	cb := slack.InteractionCallback{
		User:    slack.User{ID: "U7"},
		Channel: slack.Channel{GroupConversation: slack.GroupConversation{Conversation: slack.Conversation{ID: "C1"}}},
	}
	cb.Message.Timestamp = "1700000000.000200"
	cb.Message.ThreadTimestamp = "1700000000.000001"
	cb.Message.Blocks = slack.Blocks{BlockSet: []slack.Block{section("📝 *Pousser les deadlines*")}}
	cb.ActionCallback.BlockActions = []*slack.BlockAction{{ActionID: actionID, Value: value}}
	return cb
}

func TestHandleInteraction_Confirm(t *testing.T) {
	conv := &fakeConversations{}
	h, mock := newTestHandler(t, conv, Options{})

	h.HandleInteraction(context.Background(), interaction(actionConfirm, "act_1"))

	assert.Equal(t, []string{"act_1|slack:U7"}, conv.confirmed)
	require.Len(t, mock.updates, 1)
	assert.Equal(t, "1700000000.000200", mock.updates[0].timestamp)
	assert.Contains(t, mock.updates[0].values.Get("text"), "C'est fait")
	assert.NotContains(t, mock.updates[0].values.Get("blocks"), actionConfirm)
}

func TestHandleInteraction_ConfirmConflict(t *testing.T) {
	conv := &fakeConversations{confirmErr: &perrors.ConflictError{ActionID: "act_1", ProjectIDs: []string{"p1"}}}
	h, mock := newTestHandler(t, conv, Options{})

	h.HandleInteraction(context.Background(), interaction(actionConfirm, "act_1"))
	require.Len(t, mock.updates, 1)
	assert.Contains(t, mock.updates[0].values.Get("text"), "ont changé")
}

func TestHandleInteraction_Cancel(t *testing.T) {
	conv := &fakeConversations{}
	h, mock := newTestHandler(t, conv, Options{})

	h.HandleInteraction(context.Background(), interaction(actionCancel, "act_2"))
	assert.Equal(t, []string{"act_2"}, conv.cancelled)
	assert.Equal(t, "Action annulée.", mock.updates[0].values.Get("text"))
}

func TestHandleInteraction_ApplyAll(t *testing.T) {
	conv := &fakeConversations{result: &assistant.PendingActionResult{
		Action:  assistant.PendingAction{ID: "act_3", Description: "Pousser les deadlines de 1 semaine sur 2 projets", AffectedIDs: []string{"p1", "p3"}},
		Message: "preview",
	}}
	h, mock := newTestHandler(t, conv, Options{})

	h.HandleInteraction(context.Background(), interaction(actionApplyAll, "slack:C1:1700000000.000001"))

	require.Len(t, conv.handled, 1)
	assert.Equal(t, call{"slack:C1:1700000000.000001", "applique à tous"}, conv.handled[0])
	require.Len(t, mock.updates, 1)
	require.Len(t, mock.posts, 1)
	assert.Equal(t, "1700000000.000001", mock.posts[0].values.Get("thread_ts"))
	assert.Contains(t, mock.posts[0].values.Get("blocks"), "act_3")
}

func TestHandleInteraction_DropScope(t *testing.T) {
	conv := &fakeConversations{}
	h, mock := newTestHandler(t, conv, Options{})

	h.HandleInteraction(context.Background(), interaction(actionDropAll, "slack:C1:1"))
	assert.Equal(t, []call{{"slack:C1:1", "non"}}, conv.handled)
	assert.Empty(t, mock.posts)
	assert.Equal(t, "Rien ne sera modifié.", mock.updates[0].values.Get("text"))
}

func TestHandleInteraction_Create(t *testing.T) {
	conv := &fakeConversations{}
	h, mock := newTestHandler(t, conv, Options{})

	h.HandleInteraction(context.Background(), interaction(actionCreate, `{"name":"Aurore","collaborator":"Lina"}`))
	require.Len(t, conv.created, 1)
	assert.Equal(t, "Lina", conv.created[0].Collaborator)
	assert.Equal(t, "Projet « Aurore » créé.", mock.updates[0].values.Get("text"))
}

func TestConversationID(t *testing.T) {
	assert.Equal(t, "slack:D1", ConversationID("D1", "1.2"))
	assert.Equal(t, "slack:C1:1.2", ConversationID("C1", "1.2"))
	assert.Equal(t, "slack:C1", ConversationID("C1", ""))
}
