package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/postsmith/postsmith/internal/completion"
	"github.com/postsmith/postsmith/internal/config"
	"github.com/postsmith/postsmith/internal/observability"
	"github.com/postsmith/postsmith/internal/prompt"
)

var doctorConnectivity bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks on configuration, prompts and backends.

With --connectivity a one-token completion is requested to prove the API key
and endpoint work; this spends a small amount of quota.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		log := observability.CLILogger
		log.Info("=== " + config.AppName + " doctor ===")
		log.Info("")

		allChecks := true
		totalChecks := 5
		step := func(n int, label string) string { return fmt.Sprintf("[%d/%d] Checking %s...", n, totalChecks, label) }

		goVersion := runtime.Version()
		log.Info(step(1, "Go runtime")+" ✅ "+goVersion+" "+runtime.GOOS+"/"+runtime.GOARCH,
			zap.String("go_version", goVersion))

		cfg, err := loadConfig(nil)
		if err != nil {
			log.Error(step(2, "configuration")+" ❌ "+err.Error(), zap.Error(err))
			log.Warn("Remaining checks skipped")
			return
		}
		log.Info(step(2, "configuration")+" ✅ valid", zap.String("default_path", config.DefaultConfigPath()))

		if err := cfg.RequireAPIKey(); err != nil {
			log.Warn(step(3, "completion API key") + " ⚠️  not set (POSTSMITH_COMPLETION_API_KEY or GROQ_API_KEY)")
			allChecks = false
		} else {
			log.Info(step(3, "completion API key")+" ✅ set", zap.String("base_url", cfg.Completion.BaseURL),
				zap.String("model", cfg.Completion.Model))
			if doctorConnectivity {
				if err := pingCompletion(ctx, cfg); err != nil {
					log.Error("       Completion connectivity ❌", zap.Error(err))
					allChecks = false
				} else {
					log.Info("       Completion connectivity ✅")
				}
			}
		}

		registry, err := prompt.NewRegistryWithOverrides(cfg.Prompts.Dir)
		if err != nil {
			log.Error(step(4, "prompts")+" ❌ "+err.Error(), zap.Error(err))
			allChecks = false
		} else if err := (promptHealthChecker{registry: registry}).CheckHealth(ctx); err != nil {
			log.Error(step(4, "prompts")+" ❌ "+err.Error(), zap.Error(err))
			allChecks = false
		} else {
			log.Info(step(4, "prompts")+fmt.Sprintf(" ✅ %d loaded", len(registry.List())),
				zap.String("override_dir", cfg.Prompts.Dir))
		}

		switch cfg.RateLimit.Backend {
		case config.BackendRedis:
			window, client, err := openRedisWindow(ctx, cfg)
			if err != nil {
				log.Error(step(5, "rate limit backend")+" ❌ redis unreachable", zap.Error(err))
				allChecks = false
				break
			}
			defer client.Close() // nolint:errcheck // best-effort cleanup
			log.Info(step(5, "rate limit backend")+" ✅ redis "+cfg.RateLimit.Redis.Addr,
				zap.Int("max_requests", window.Limit()), zap.Duration("window", window.Window()))
		default:
			log.Info(step(5, "rate limit backend")+" ✅ memory (per process)",
				zap.Int("max_requests", cfg.RateLimit.MaxRequests), zap.Duration("window", cfg.RateLimit.Window))
		}

		log.Info("")
		if allChecks {
			log.Info("✅ All checks passed!")
		} else {
			log.Warn("⚠️  Some checks failed. Review the output above for details.")
		}
	},
}

var doctorInitForce bool

var doctorInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default config file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigPath()
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return fmt.Errorf("config path not resolved")
		}
		if _, err := os.Stat(path); err == nil && !doctorInitForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
		}

		defaults, err := config.Defaults()
		if err != nil {
			return err
		}
		data, err := defaults.YAML()
		if err != nil {
			return err
		}

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		observability.CLILogger.Info("Wrote default config", zap.String("path", path))
		observability.CLILogger.Info("Set the API key via POSTSMITH_COMPLETION_API_KEY rather than in the file")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.AddCommand(doctorInitCmd)

	doctorCmd.Flags().BoolVar(&doctorConnectivity, "connectivity", false, "request a one-token completion to verify the API")
	doctorInitCmd.Flags().BoolVar(&doctorInitForce, "force", false, "overwrite an existing config file")
}

func pingCompletion(ctx context.Context, cfg *config.Config) error {
	client := completion.NewClient(cfg.Completion.BaseURL, cfg.Completion.APIKey)
	client.Timeout = 15 * time.Second

	maxTokens := 1
	_, err := client.Complete(ctx, &completion.Request{
		Model:     cfg.Completion.Model,
		Messages:  []completion.Message{{Role: "user", Content: "ping"}},
		MaxTokens: &maxTokens,
	})
	// A one-token reply may legitimately be blank.
	if err != nil && !errors.Is(err, completion.ErrEmptyCompletion) {
		return err
	}
	return nil
}
