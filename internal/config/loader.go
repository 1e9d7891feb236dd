// Package config loads service configuration in layers:
// defaults, an optional YAML file, POSTSMITH_* environment variables
// (after .env files are applied) and finally runtime overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment variable.
const EnvPrefix = "POSTSMITH"

// AppName names the config directory and default file.
const AppName = "postsmith"

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// ConfigFile is an explicit YAML path; it must exist when set.
	ConfigFile string
	// EnvFiles are loaded with godotenv before env lookup. Existing
	// variables win. nil means ".env" in the working directory.
	EnvFiles []string
	// Overrides are applied last, keyed by dotted config path.
	Overrides map[string]any
}

// Load builds a validated Config.
func Load(opts LoadOptions) (*Config, error) {
	if err := loadEnvFiles(opts.EnvFiles); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnvAliases(v); err != nil {
		return nil, err
	}

	if err := readConfigFile(v, opts.ConfigFile); err != nil {
		return nil, err
	}

	for key, value := range opts.Overrides {
		v.Set(key, value)
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns the built-in configuration, ignoring files and env.
func Defaults() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		secondsDurationHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	normalize(cfg)
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("completion.api_key", "")
	v.SetDefault("completion.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("completion.model", "llama-3.3-70b-versatile")
	v.SetDefault("completion.temperature", 0.7)
	v.SetDefault("completion.max_tokens", 300)
	v.SetDefault("completion.timeout", 30*time.Second)
	v.SetDefault("completion.throttle_rps", 0)
	v.SetDefault("completion.throttle_burst", 1)

	v.SetDefault("ratelimit.backend", BackendMemory)
	v.SetDefault("ratelimit.max_requests", 10)
	v.SetDefault("ratelimit.window", 60*time.Second)
	v.SetDefault("ratelimit.cleanup_interval", time.Minute)
	v.SetDefault("ratelimit.trust_forwarded_for", true)
	v.SetDefault("ratelimit.redis.addr", "")
	v.SetDefault("ratelimit.redis.password", "")
	v.SetDefault("ratelimit.redis.db", 0)
	v.SetDefault("ratelimit.redis.prefix", "postsmith:ratelimit:")

	v.SetDefault("validation.min_topic_length", 3)
	v.SetDefault("validation.max_topic_length", 1000)
	v.SetDefault("validation.forbidden_words", []string{"spam", "scam", "hack", "illegal"})

	v.SetDefault("prompts.dir", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.environment", "production")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.namespace", AppName)

	v.SetDefault("health.enabled", true)
	v.SetDefault("debug.enabled", false)
}

// bindEnvAliases adds short names next to the POSTSMITH_<SECTION>_<KEY> form.
func bindEnvAliases(v *viper.Viper) error {
	aliases := map[string][]string{
		"completion.api_key": {"POSTSMITH_COMPLETION_API_KEY", "GROQ_API_KEY"},
		"server.host":        {"POSTSMITH_SERVER_HOST", "POSTSMITH_HOST"},
		"server.port":        {"POSTSMITH_SERVER_PORT", "POSTSMITH_PORT"},
		"logging.level":      {"POSTSMITH_LOGGING_LEVEL", "POSTSMITH_LOG_LEVEL"},
	}
	for key, envs := range aliases {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

func readConfigFile(v *viper.Viper, explicit string) error {
	path := strings.TrimSpace(explicit)
	if path == "" {
		path = discoverConfigFile()
		if path == "" {
			return nil
		}
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	return nil
}

// discoverConfigFile returns the first existing default config file, or "".
func discoverConfigFile() string {
	candidates := []string{filepath.Join("config", AppName+".yaml")}
	if p := DefaultConfigPath(); p != "" {
		candidates = append(candidates, p)
	}
	for _, c := range candidates {
		if st, err := os.Stat(c); err == nil && !st.IsDir() {
			return c
		}
	}
	return ""
}

func loadEnvFiles(files []string) error {
	if files == nil {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}
	return nil
}

// DefaultConfigDir returns $XDG_CONFIG_HOME/postsmith or its platform equivalent.
func DefaultConfigDir() string {
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		return ""
	}
	return filepath.Join(base, AppName)
}

// DefaultConfigPath is the user config file searched when --config is unset.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

var durationType = reflect.TypeOf(time.Duration(0))

// secondsDurationHook reads a bare number as seconds so that
// POSTSMITH_RATELIMIT_WINDOW=60 means one minute.
func secondsDurationHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != durationType || from == durationType {
			return data, nil
		}

		switch value := data.(type) {
		case int:
			return time.Duration(value) * time.Second, nil
		case int64:
			return time.Duration(value) * time.Second, nil
		case float64:
			return time.Duration(value * float64(time.Second)), nil
		case string:
			trimmed := strings.TrimSpace(value)
			if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
				return time.Duration(n * float64(time.Second)), nil
			}
			return trimmed, nil
		default:
			return data, nil
		}
	}
}

func normalize(cfg *Config) {
	cfg.RateLimit.Backend = strings.ToLower(strings.TrimSpace(cfg.RateLimit.Backend))
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	cfg.Completion.APIKey = strings.TrimSpace(cfg.Completion.APIKey)
	cfg.Completion.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Completion.BaseURL), "/")

	words := cfg.Validation.ForbiddenWords[:0]
	for _, w := range cfg.Validation.ForbiddenWords {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			words = append(words, w)
		}
	}
	cfg.Validation.ForbiddenWords = words
}
