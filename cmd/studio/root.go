package main

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/p-blackswan/studio-agent/internal/assistant"
	"github.com/p-blackswan/studio-agent/internal/config"
	"github.com/p-blackswan/studio-agent/internal/llm"
	"github.com/p-blackswan/studio-agent/internal/metrics"
	"github.com/p-blackswan/studio-agent/internal/store"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "studio",
		Short:         "Studio project assistant",
		SilenceUsage: true,
	}
	root.AddCommand(
		newServeCmd(),
		newAskCmd(),
		newSeedCmd(),
		newProjectsCmd(),
	)
	return root
}

// loadConfig reads the environment and builds the root logger. Logs go to
// out; the console writer is used in development.
func loadConfig(out io.Writer) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(out).With().Timestamp().Caller().Logger()
	if cfg.IsDevelopment() {
		logger = logger.Output(zerolog.ConsoleWriter{Out: out})
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	log.Logger = logger
	return cfg, logger, nil
}

func openStore(cfg *config.Config, logger zerolog.Logger) (*store.Store, error) {
	st, err := store.New(cfg.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", cfg.DBPath, err)
	}
	return st, nil
}

// newRouter builds the router, backed by the Anthropic oracle when a key is
// configured.
func newRouter(cfg *config.Config, m *metrics.Metrics, logger zerolog.Logger) *assistant.Router {
	opts := assistant.Options{
		Debug:    cfg.Debug,
		Location: cfg.Location(),
		Metrics:  m,
		Logger:   logger,
	}
	if cfg.OracleEnabled() {
		provider := llm.NewAnthropicProvider(
			cfg.AnthropicAPIKey,
			llm.WithModel(cfg.AnthropicModel),
			llm.WithMaxTokens(cfg.OracleMaxTokens),
			llm.WithLogger(logger),
		)
		opts.Oracle = assistant.NewLLMOracle(provider, cfg.OracleTimeout, cfg.OracleMaxTokens, logger)
		logger.Info().Str("model", cfg.AnthropicModel).Msg("conversational oracle enabled")
	} else {
		logger.Info().Msg("ANTHROPIC_API_KEY not set, small talk uses the fixed greeting")
	}
	return assistant.NewRouter(opts)
}
