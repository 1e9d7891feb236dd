package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/postsmith/postsmith/internal/config"
	apperrors "github.com/postsmith/postsmith/internal/errors"
	"github.com/postsmith/postsmith/internal/observability"
	"github.com/postsmith/postsmith/internal/post"
	"github.com/postsmith/postsmith/internal/ratelimit"
	"github.com/postsmith/postsmith/internal/server/handlers"
	servermw "github.com/postsmith/postsmith/internal/server/middleware"
)

// Deps are the collaborators the HTTP layer needs. Config, Generator,
// Validator and Limiter are required.
type Deps struct {
	Config    *config.Config
	Generator handlers.Generator
	Validator *post.Validator
	Limiter   ratelimit.Limiter
	// KeyFunc defaults to the client IP, honouring X-Forwarded-For per config.
	KeyFunc ratelimit.KeyFunc
	// Health defaults to a manager with no checks.
	Health *handlers.HealthManager
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	cfg    config.ServerConfig
	deps   Deps
}

// New creates a new HTTP server instance
func New(deps Deps) (*Server, error) {
	if deps.Config == nil {
		return nil, errors.New("server: config is required")
	}
	if deps.Generator == nil {
		return nil, errors.New("server: generator is required")
	}
	if deps.Validator == nil {
		return nil, errors.New("server: validator is required")
	}
	if deps.Limiter == nil {
		return nil, errors.New("server: limiter is required")
	}
	if deps.KeyFunc == nil {
		deps.KeyFunc = ratelimit.ClientIPKeyFunc(deps.Config.RateLimit.TrustForwardedFor)
	}
	if deps.Health == nil {
		deps.Health = handlers.NewHealthManager(handlers.AppVersion)
	}

	r := chi.NewRouter()

	// Order: RequestID → Metrics → Recovery
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithError(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		apperrors.RespondWithError(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	s := &Server{
		router: r,
		cfg:    deps.Config.Server,
		deps:   deps,
	}

	handlers.SetHTTPErrorResponder(apperrors.RespondWithError)

	if err := s.registerRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

// Start listens on the configured address and blocks until the server stops.
// A graceful Shutdown returns nil.
func (s *Server) Start() error {
	addr := s.Addr()

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       orDefault(s.cfg.ReadTimeout, 30*time.Second),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      orDefault(s.cfg.WriteTimeout, 60*time.Second),
		IdleTimeout:       orDefault(s.cfg.IdleTimeout, 120*time.Second),
	}

	observability.Info("Starting HTTP server",
		zap.String("host", s.cfg.Host),
		zap.Int("port", s.cfg.Port),
		zap.String("addr", addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	observability.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr is the host:port the server listens on.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
}

// Port returns the server port for testing
func (s *Server) Port() int {
	return s.cfg.Port
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
