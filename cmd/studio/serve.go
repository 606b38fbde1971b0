package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/p-blackswan/studio-agent/internal/chat"
	"github.com/p-blackswan/studio-agent/internal/config"
	"github.com/p-blackswan/studio-agent/internal/conversation"
	"github.com/p-blackswan/studio-agent/internal/health"
	"github.com/p-blackswan/studio-agent/internal/metrics"
	"github.com/p-blackswan/studio-agent/internal/mgmt"
	"github.com/p-blackswan/studio-agent/internal/store"
)

const (
	sessionSweepInterval = time.Minute
	shutdownTimeout      = 15 * time.Second
	// Slack users get a burst of 5 messages, then one every 3 seconds.
	slackUserRate  = rate.Limit(1.0 / 3)
	slackUserBurst = 5
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when configured, the Slack bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(os.Stdout)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				logger.Error().Err(err).Msg("invalid configuration")
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger.Info().
		Str("environment", cfg.Environment).
		Str("listen_addr", cfg.ListenAddr).
		Str("auth_mode", cfg.APIAuthMode).
		Bool("slack_enabled", cfg.SlackEnabled()).
		Bool("oracle_enabled", cfg.OracleEnabled()).
		Msg("starting studio assistant")

	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	m := metrics.New()
	router := newRouter(cfg, m, logger)
	conversations := conversation.NewService(st, router, conversation.Options{
		ActionTTL:       cfg.PendingActionTTL,
		SessionCapacity: cfg.SessionCapacity,
		SessionIdleTTL:  cfg.SessionIdleTTL,
		Metrics:         m,
		Logger:          logger,
	})

	checker := health.NewChecker(3*time.Second, logger)
	checker.Register("store", true, health.Ping(st.Ping))
	checker.Register("oracle", false, health.Enabled(cfg.OracleEnabled()))

	var slackApp *chat.App
	if cfg.SlackEnabled() {
		handler := chat.NewHandler(conversations, chat.Options{
			AllowedChannels: cfg.SlackAllowedChannelList(),
			PerUserRate:     slackUserRate,
			PerUserBurst:    slackUserBurst,
			Metrics:         m,
			Logger:          logger,
		})
		slackApp = chat.NewApp(cfg.SlackBotToken, cfg.SlackAppToken, cfg.SlackAllowedChannelList(), handler, logger)
		checker.Register("slack", false, health.Ping(slackApp.Ping))
		if len(cfg.SlackAllowedChannelList()) == 0 {
			logger.Warn().Msg("SLACK_ALLOWED_CHANNELS is empty, only direct messages are answered")
		}
	} else {
		checker.Register("slack", false, health.Enabled(false))
		logger.Info().Msg("Slack not configured, running in API-only mode")
	}

	server := mgmt.NewServer(mgmt.ServerConfig{
		ListenAddr: cfg.ListenAddr,
		Auth: mgmt.AuthConfig{
			Mode:      cfg.APIAuthMode,
			APIKey:    cfg.APIKey,
			JWTSecret: []byte(cfg.APIJWTSecret),
		},
		RateLimit: mgmt.RateLimitConfig{
			RPS:   cfg.APIRateLimitRPS,
			Burst: cfg.APIRateLimitBurst,
		},
		CORSOrigins: cfg.CORSOriginList(),
	}, conversations, st, checker, m, logger)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		conversations.Run(ctx, sessionSweepInterval)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runRetention(ctx, st, cfg.RetentionEvery, m, logger)
	}()

	serverErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(); err != nil {
			serverErr <- err
		}
	}()

	if slackApp != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := slackApp.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("Slack Socket Mode error")
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down gracefully")
	case runErr = <-serverErr:
		logger.Error().Err(runErr).Msg("API server error")
	}

	cancel()
	if err := server.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("API server shutdown error")
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		logger.Info().Msg("all goroutines stopped")
	case <-time.After(shutdownTimeout):
		logger.Warn().Msg("forced shutdown after timeout")
	}

	logger.Info().Msg("studio assistant stopped")
	return runErr
}

// runRetention purges expired actions and old records every interval until
// ctx is done.
func runRetention(ctx context.Context, st *store.Store, interval time.Duration, m *metrics.Metrics, logger zerolog.Logger) {
	if interval <= 0 {
		return
	}
	logger = logger.With().Str("component", "retention").Logger()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			expired, err := st.RunRetention(ctx, now)
			if err != nil {
				logger.Error().Err(err).Msg("retention pass failed")
				m.RecordError("store", "retention")
				continue
			}
			for i := 0; i < expired; i++ {
				m.RecordAction("expired")
			}
		}
	}
}
