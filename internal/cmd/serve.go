package cmd

import (
	"context"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/postsmith/postsmith/internal/config"
	errwrap "github.com/postsmith/postsmith/internal/errors"
	"github.com/postsmith/postsmith/internal/metrics"
	"github.com/postsmith/postsmith/internal/observability"
	"github.com/postsmith/postsmith/internal/post"
	"github.com/postsmith/postsmith/internal/prompt"
	"github.com/postsmith/postsmith/internal/ratelimit"
	"github.com/postsmith/postsmith/internal/server"
	"github.com/postsmith/postsmith/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// promptHealthChecker verifies every platform still has a prompt.
type promptHealthChecker struct {
	registry prompt.Registry
}

func (p promptHealthChecker) CheckHealth(ctx context.Context) error {
	for _, platform := range post.Platforms() {
		if _, err := p.registry.Get(string(platform)); err != nil {
			return err
		}
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the web form and JSON API with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Re-validate configuration (restart to apply changes)

The completion API key must be set via POSTSMITH_COMPLETION_API_KEY or
GROQ_API_KEY; the server refuses to start without it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		overrides := map[string]any{}
		if cmd.Flags().Changed("host") {
			overrides["server.host"] = serverHost
		}
		if cmd.Flags().Changed("port") {
			overrides["server.port"] = serverPort
		}

		cfg, err := loadConfig(overrides)
		if envelope := requireGenerationConfig(cmd.Context(), cfg, err); envelope != nil {
			ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Invalid configuration", envelope)
			return nil
		}

		logLevel := cfg.Logging.Level
		if verbose {
			logLevel = "debug"
		}
		observability.InitServerLogger(config.AppName, logLevel, cfg.Logging.Environment)
		logger := observability.ServerLogger

		if cfg.Metrics.Enabled {
			if err := observability.InitMetrics(cfg.Metrics.Namespace, cfg.Metrics.Port); err != nil {
				logger.Error("Failed to initialize metrics", zap.Error(err))
				return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
			}
			metrics.SetServerStartTime(time.Now().Unix())
		}

		svc, registry, err := buildService(cfg)
		if err != nil {
			ExitWithCode(logger, foundry.ExitConfigInvalid, "Failed to initialize generation service",
				errwrap.WrapConfigInvalid(cmd.Context(), err, "generation service setup failed"))
			return nil
		}

		hm := handlers.NewHealthManager(versionInfo.Version)
		hm.RegisterChecker("prompts", promptHealthChecker{registry: registry})
		if cfg.Metrics.Enabled {
			hm.RegisterChecker("telemetry", telemetryHealthChecker{})
		}

		janitorCtx, stopJanitor := context.WithCancel(context.Background())
		defer stopJanitor()

		var limiter ratelimit.Limiter
		switch cfg.RateLimit.Backend {
		case config.BackendRedis:
			window, client, err := openRedisWindow(cmd.Context(), cfg)
			if err != nil {
				ExitWithCode(logger, foundry.ExitExternalServiceUnavailable, "Rate limit backend unavailable",
					errwrap.WrapConfigInvalid(cmd.Context(), err, "redis rate limiter unavailable"))
				return nil
			}
			defer client.Close() // nolint:errcheck // best-effort cleanup
			hm.RegisterChecker("redis", window)
			limiter = window
		default:
			window := ratelimit.NewSlidingWindow(limiterConfig(cfg))
			window.StartJanitor(janitorCtx, metrics.RecordRateLimitSweep)
			limiter = window
			logger.Warn("Rate limiting uses in-process memory; each replica enforces its own limit",
				zap.Int("max_requests", cfg.RateLimit.MaxRequests),
				zap.Duration("window", cfg.RateLimit.Window))
		}

		srv, err := server.New(server.Deps{
			Config:    cfg,
			Generator: svc,
			Validator: buildValidator(cfg),
			Limiter:   limiter,
			Health:    hm,
		})
		if err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "server setup failed")
		}

		logger.Info("Initializing server",
			zap.String("service", config.AppName),
			zap.String("version", versionInfo.Version),
			zap.String("addr", srv.Addr()),
			zap.String("model", svc.Config().Model),
			zap.String("ratelimit_backend", cfg.RateLimit.Backend),
			zap.Bool("metrics_enabled", cfg.Metrics.Enabled),
			zap.Bool("debug_enabled", cfg.Debug.Enabled))

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout <= 0 {
			shutdownTimeout = 10 * time.Second
		}
		flushed := make(chan struct{})

		// Shutdown handlers run LIFO: HTTP server first, logger flush last.
		signals.OnShutdown(func(ctx context.Context) error {
			defer close(flushed)
			logger.Info("Flushing logger...")
			if err := logger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				logger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})

		signals.OnShutdown(func(ctx context.Context) error {
			stopJanitor()
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}
			logger.Info("HTTP server stopped gracefully")
			return nil
		})

		signals.OnReload(func(ctx context.Context) error {
			logger.Info("Received SIGHUP: re-validating configuration")
			if _, err := loadConfig(overrides); err != nil {
				logger.Error("Configuration is invalid", zap.Error(err))
				return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
			}
			logger.Info("Configuration is valid; restart to apply changes")
			return nil
		})

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			logger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		errChan := make(chan error, 2)
		go func() {
			errChan <- srv.Start()
		}()

		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				logger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "server error")
		}

		// The server closed; let the remaining shutdown handlers finish.
		select {
		case <-flushed:
		case <-time.After(shutdownTimeout):
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "0.0.0.0", "server host (overrides server.host)")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8000, "server port (overrides server.port)")
}
