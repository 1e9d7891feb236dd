package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the complete service configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Completion CompletionConfig `mapstructure:"completion"`
	RateLimit  RateLimitConfig  `mapstructure:"ratelimit"`
	Validation ValidationConfig `mapstructure:"validation"`
	Prompts    PromptsConfig    `mapstructure:"prompts"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Health     HealthConfig     `mapstructure:"health"`
	Debug      DebugConfig      `mapstructure:"debug"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// CompletionConfig configures the upstream chat completion API.
//
// APIKey is a secret: it is never logged and Redacted masks it.
type CompletionConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	Model         string        `mapstructure:"model"`
	Temperature   float64       `mapstructure:"temperature"`
	MaxTokens     int           `mapstructure:"max_tokens"`
	Timeout       time.Duration `mapstructure:"timeout"`
	ThrottleRPS   float64       `mapstructure:"throttle_rps"`
	ThrottleBurst int           `mapstructure:"throttle_burst"`
}

// RateLimitConfig configures the per-client limiter on generation routes.
type RateLimitConfig struct {
	// Backend is "memory" (single instance) or "redis" (shared).
	Backend           string        `mapstructure:"backend"`
	MaxRequests       int           `mapstructure:"max_requests"`
	Window            time.Duration `mapstructure:"window"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
	TrustForwardedFor bool          `mapstructure:"trust_forwarded_for"`
	Redis             RedisConfig   `mapstructure:"redis"`
}

// RedisConfig is only read when RateLimit.Backend is "redis".
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// ValidationConfig bounds accepted topics.
type ValidationConfig struct {
	MinTopicLength int      `mapstructure:"min_topic_length"`
	MaxTopicLength int      `mapstructure:"max_topic_length"`
	ForbiddenWords []string `mapstructure:"forbidden_words"`
}

// PromptsConfig points at an optional directory of prompt overrides.
type PromptsConfig struct {
	Dir string `mapstructure:"dir"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level       string `mapstructure:"level"`
	Environment string `mapstructure:"environment"`
}

// MetricsConfig contains Prometheus exporter configuration.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Port      int    `mapstructure:"port"`
	Namespace string `mapstructure:"namespace"`
}

// HealthConfig contains health endpoint configuration.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig gates diagnostic endpoints.
type DebugConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Backend names.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Validate checks invariants that no default can repair.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		add("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if strings.TrimSpace(c.Completion.BaseURL) == "" {
		add("completion.base_url is required")
	}
	if strings.TrimSpace(c.Completion.Model) == "" {
		add("completion.model is required")
	}
	if c.Completion.Temperature < 0 || c.Completion.Temperature > 2 {
		add("completion.temperature must be between 0 and 2, got %g", c.Completion.Temperature)
	}
	if c.Completion.MaxTokens <= 0 {
		add("completion.max_tokens must be positive")
	}
	if c.Completion.Timeout <= 0 {
		add("completion.timeout must be positive")
	}
	if c.Completion.ThrottleRPS < 0 {
		add("completion.throttle_rps must not be negative")
	}

	switch c.RateLimit.Backend {
	case BackendMemory:
	case BackendRedis:
		if strings.TrimSpace(c.RateLimit.Redis.Addr) == "" {
			add("ratelimit.redis.addr is required when ratelimit.backend is redis")
		}
	default:
		add("ratelimit.backend must be %q or %q, got %q", BackendMemory, BackendRedis, c.RateLimit.Backend)
	}
	if c.RateLimit.MaxRequests <= 0 {
		add("ratelimit.max_requests must be positive")
	}
	if c.RateLimit.Window <= 0 {
		add("ratelimit.window must be positive")
	}
	if c.RateLimit.CleanupInterval <= 0 {
		add("ratelimit.cleanup_interval must be positive")
	}

	if c.Validation.MinTopicLength < 1 {
		add("validation.min_topic_length must be at least 1")
	}
	if c.Validation.MaxTopicLength < c.Validation.MinTopicLength {
		add("validation.max_topic_length must not be below min_topic_length")
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 0 || c.Metrics.Port > 65535) {
		add("metrics.port must be between 0 and 65535, got %d", c.Metrics.Port)
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ErrMissingAPIKey is returned by RequireAPIKey.
var ErrMissingAPIKey = errors.New("completion API key is not set (POSTSMITH_COMPLETION_API_KEY or GROQ_API_KEY)")

// RequireAPIKey reports a missing completion credential.
func (c *Config) RequireAPIKey() error {
	if strings.TrimSpace(c.Completion.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// Redacted returns a copy safe to log or serve.
func (c Config) Redacted() Config {
	if c.Completion.APIKey != "" {
		c.Completion.APIKey = "***"
	}
	if c.RateLimit.Redis.Password != "" {
		c.RateLimit.Redis.Password = "***"
	}
	return c
}
