package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Auth modes accepted by the management API.
const (
	AuthModeAPIKey = "api-key"
	AuthModeJWT    = "jwt"
	AuthModeNone   = "none"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	Debug       bool   `envconfig:"DEBUG" default:"false"` // routing traces and empty-result breakdowns
	Timezone    string `envconfig:"TIMEZONE" default:"Europe/Paris"`

	// Store
	DBPath           string        `envconfig:"DB_PATH" default:"studio.db"`
	PendingActionTTL time.Duration `envconfig:"PENDING_ACTION_TTL" default:"30m"`
	RetentionEvery   time.Duration `envconfig:"RETENTION_INTERVAL" default:"10m"`

	// Management API
	ListenAddr        string `envconfig:"HTTP_LISTEN_ADDR" default:":8090"`
	APIAuthMode       string `envconfig:"API_AUTH_MODE" default:"api-key"`
	APIKey            string `envconfig:"API_KEY"`
	APIJWTSecret      string `envconfig:"API_JWT_SECRET"`
	APIRateLimitRPS   int    `envconfig:"API_RATE_LIMIT_RPS" default:"20"`
	APIRateLimitBurst int    `envconfig:"API_RATE_LIMIT_BURST" default:"40"`
	APICORSOrigins    string `envconfig:"API_CORS_ORIGINS"`

	// Conversational oracle (optional: without a key the assistant answers
	// small talk with a fixed greeting)
	AnthropicAPIKey string        `envconfig:"ANTHROPIC_API_KEY"`
	AnthropicModel  string        `envconfig:"ANTHROPIC_MODEL" default:"claude-sonnet-4-5"`
	OracleTimeout   time.Duration `envconfig:"ORACLE_TIMEOUT" default:"20s"`
	OracleMaxTokens int           `envconfig:"ORACLE_MAX_TOKENS" default:"1024"`

	// Sessions
	SessionCapacity int           `envconfig:"SESSION_CAPACITY" default:"256"`
	SessionIdleTTL  time.Duration `envconfig:"SESSION_IDLE_TTL" default:"2h"`

	// Slack (optional: the service starts API-only without it)
	SlackBotToken        string `envconfig:"SLACK_BOT_TOKEN"`
	SlackAppToken        string `envconfig:"SLACK_APP_TOKEN"`        // xapp- token for Socket Mode
	SlackAllowedChannels string `envconfig:"SLACK_ALLOWED_CHANNELS"` // Comma-separated channel IDs; direct messages are always answered
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	switch c.APIAuthMode {
	case AuthModeAPIKey:
		if c.APIKey == "" {
			return fmt.Errorf("API_AUTH_MODE=%s requires API_KEY", c.APIAuthMode)
		}
	case AuthModeJWT:
		if len(c.APIJWTSecret) < 32 {
			return fmt.Errorf("API_AUTH_MODE=%s requires API_JWT_SECRET of at least 32 bytes", c.APIAuthMode)
		}
	case AuthModeNone:
	default:
		return fmt.Errorf("unknown API_AUTH_MODE %q", c.APIAuthMode)
	}
	if c.SessionCapacity <= 0 {
		return fmt.Errorf("SESSION_CAPACITY must be positive, got %d", c.SessionCapacity)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	return nil
}

// OracleEnabled returns true if the conversational oracle has credentials.
func (c *Config) OracleEnabled() bool {
	return c.AnthropicAPIKey != ""
}

// SlackEnabled returns true if Slack tokens are configured.
func (c *Config) SlackEnabled() bool {
	return c.SlackBotToken != "" && c.SlackAppToken != ""
}

// SlackAllowedChannelList returns the parsed list of allowed Slack channel IDs,
// or nil when none is configured.
func (c *Config) SlackAllowedChannelList() []string {
	return splitList(c.SlackAllowedChannels)
}

// CORSOriginList returns the parsed list of allowed CORS origins.
func (c *Config) CORSOriginList() []string {
	return splitList(c.APICORSOrigins)
}

// Location resolves Timezone, falling back to UTC when it is unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsDevelopment reports whether logs should be human-readable.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// LoadWithPrefix reads configuration with a prefix.
func LoadWithPrefix(prefix string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("loading config with prefix %s: %w", prefix, err)
	}
	return &cfg, nil
}
