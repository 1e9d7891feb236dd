package server

import (
	"go.uber.org/zap"

	"github.com/postsmith/postsmith/internal/observability"
	"github.com/postsmith/postsmith/internal/server/handlers"
	servermw "github.com/postsmith/postsmith/internal/server/middleware"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() error {
	cfg := s.deps.Config
	limiter := s.deps.Limiter

	pages, err := handlers.NewPages(s.deps.Validator.Rules(), limiter.Limit(), limiter.Window())
	if err != nil {
		return err
	}
	gen := handlers.NewGenerateHandler(s.deps.Generator, s.deps.Validator, pages, limiter.Window())

	s.router.Get("/", pages.Index)
	s.router.Get("/health", handlers.Health)
	if cfg.Health.Enabled {
		s.router.Get("/health/live", s.deps.Health.LivenessHandler)
		s.router.Get("/health/ready", s.deps.Health.ReadinessHandler)
	}
	s.router.Get("/version", handlers.VersionHandler)
	if cfg.Metrics.Enabled {
		s.router.Get("/metrics", s.MetricsHandler)
	}

	// Both generation routes draw from one per-client budget.
	s.router.Get("/generate-post", gen.Form)
	s.router.With(servermw.RateLimit(limiter, s.deps.KeyFunc, gen.FormRateLimited)).
		Post("/generate-post", gen.Submit)
	s.router.With(servermw.RateLimit(limiter, s.deps.KeyFunc, gen.APIRateLimited)).
		Post("/api/generate-post", gen.API)

	if cfg.Debug.Enabled {
		s.router.Get("/debug/settings", handlers.DebugSettingsHandler(
			s.deps.Validator.Rules(), cfg.RateLimit.Backend, limiter.Limit(), limiter.Window()))
		observability.Warn("Debug endpoint enabled - do not expose this server publicly",
			zap.String("path", "/debug/settings"))
	}
	return nil
}
