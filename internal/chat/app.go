// Package chat connects the assistant to Slack over Socket Mode.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
)

// BotAPI abstracts the Slack API client for testing.
type BotAPI interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
	UpdateMessage(channelID, timestamp string, options ...slack.MsgOption) (string, string, string, error)
	AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error)
}

// SafeClient wraps the Slack client so the bot only writes to allowlisted
// channels and direct messages. An empty allowlist denies every channel.
type SafeClient struct {
	inner           *slack.Client
	allowedChannels map[string]bool
	logger          zerolog.Logger
}

// NewSafeClient creates a restricted Slack client.
func NewSafeClient(client *slack.Client, allowedChannels []string, logger zerolog.Logger) *SafeClient {
	return &SafeClient{
		inner:           client,
		allowedChannels: channelSet(allowedChannels),
		logger:          logger.With().Str("component", "chat.safe_client").Logger(),
	}
}

func channelSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// isDirect reports whether a channel ID is a direct message.
func isDirect(channelID string) bool {
	return strings.HasPrefix(channelID, "D")
}

func (s *SafeClient) check(channelID string) error {
	if s.allowedChannels[channelID] || isDirect(channelID) {
		return nil
	}
	s.logger.Warn().Str("channel_id", channelID).Msg("blocked write to non-allowlisted channel")
	return fmt.Errorf("channel %s is not in the allowed channels list", channelID)
}

// PostMessage sends a message only if the channel is allowed.
func (s *SafeClient) PostMessage(channelID string, options ...slack.MsgOption) (string, string, error) {
	if err := s.check(channelID); err != nil {
		return "", "", err
	}
	return s.inner.PostMessage(channelID, options...)
}

// UpdateMessage edits a message only if the channel is allowed.
func (s *SafeClient) UpdateMessage(channelID, timestamp string, options ...slack.MsgOption) (string, string, string, error) {
	if err := s.check(channelID); err != nil {
		return "", "", "", err
	}
	return s.inner.UpdateMessage(channelID, timestamp, options...)
}

// AuthTestContext tests the bot token.
func (s *SafeClient) AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error) {
	return s.inner.AuthTestContext(ctx)
}

// App is the Slack bot application using Socket Mode.
type App struct {
	api     BotAPI
	socket  *socketmode.Client
	logger  zerolog.Logger
	handler *Handler
}

// NewApp creates the Slack app and binds handler to its client.
func NewApp(botToken, appToken string, allowedChannels []string, handler *Handler, logger zerolog.Logger) *App {
	rawAPI := slack.New(
		botToken,
		slack.OptionAppLevelToken(appToken),
	)
	api := NewSafeClient(rawAPI, allowedChannels, logger)
	socket := socketmode.New(rawAPI)
	handler.api = api
	handler.acker = socket

	return &App{
		api:     api,
		socket:  socket,
		logger:  logger.With().Str("component", "chat").Logger(),
		handler: handler,
	}
}

// Ping checks the bot token against Slack.
func (a *App) Ping(ctx context.Context) error {
	_, err := a.api.AuthTestContext(ctx)
	return err
}

// Run starts the Socket Mode event loop. Blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	resp, err := a.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack auth test: %w", err)
	}
	a.logger.Info().Str("bot_user", resp.UserID).Str("team", resp.Team).Msg("starting Slack Socket Mode connection")

	loopCtx, stop := context.WithCancel(ctx)
	defer stop()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-loopCtx.Done():
				return
			case evt := <-a.socket.Events:
				a.handler.HandleEvent(loopCtx, evt)
			}
		}
	}()

	err = a.socket.RunContext(ctx)
	stop()
	<-done
	a.logger.Info().Msg("Slack Socket Mode stopped")
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("socket mode error: %w", err)
	}
	return nil
}
