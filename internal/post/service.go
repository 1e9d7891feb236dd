// Package post turns a validated topic into a platform-specific social post.
package post

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/postsmith/postsmith/internal/completion"
	"github.com/postsmith/postsmith/internal/metrics"
	"github.com/postsmith/postsmith/internal/observability"
	"github.com/postsmith/postsmith/internal/prompt"
)

// Defaults for completion parameters.
const (
	DefaultModel       = "llama-3.3-70b-versatile"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 300
	DefaultTimeout     = 30 * time.Second
)

// logTopicRunes bounds how much of a topic reaches the logs.
const logTopicRunes = 50

// Config holds completion parameters. None of them come from callers.
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration

	// ThrottleRPS > 0 caps outbound completion calls per second for the
	// whole process; ThrottleBurst defaults to 1.
	ThrottleRPS   float64
	ThrottleBurst int
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Model) == "" {
		c.Model = DefaultModel
	}
	if c.Temperature < 0 {
		c.Temperature = DefaultTemperature
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.ThrottleBurst <= 0 {
		c.ThrottleBurst = 1
	}
	return c
}

// Service generates posts. It is safe for concurrent use.
type Service struct {
	completer completion.Completer
	prompts   prompt.Registry
	cfg       Config
	throttle  *rate.Limiter
	now       func() time.Time
}

// NewService wires a completer and prompt registry.
func NewService(completer completion.Completer, prompts prompt.Registry, cfg Config) (*Service, error) {
	if completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	if prompts == nil {
		return nil, fmt.Errorf("prompt registry is required")
	}

	cfg = cfg.withDefaults()
	for _, p := range Platforms() {
		if _, err := prompts.Get(string(p)); err != nil {
			return nil, fmt.Errorf("prompt for %s: %w", p, err)
		}
	}

	svc := &Service{
		completer: completer,
		prompts:   prompts,
		cfg:       cfg,
		now:       time.Now,
	}
	if cfg.ThrottleRPS > 0 {
		svc.throttle = rate.NewLimiter(rate.Limit(cfg.ThrottleRPS), cfg.ThrottleBurst)
	}
	return svc, nil
}

// Config returns the effective completion parameters.
func (s *Service) Config() Config {
	return s.cfg
}

// Generate runs one generation for an already validated request. Every
// upstream failure becomes a failed result; it never returns an error.
func (s *Service) Generate(ctx context.Context, req GenerationRequest) *GenerationResult {
	platform := req.Platform
	if platform == "" {
		platform = DefaultPlatform
	}
	logFields := []zap.Field{
		zap.String("client", req.ClientKey),
		zap.String("platform", string(platform)),
		zap.String("topic", TruncateTopic(req.Topic, logTopicRunes)),
	}

	tmpl, err := s.prompts.Get(string(platform))
	if err != nil {
		observability.Error("prompt lookup failed", append(logFields, zap.Error(err))...)
		metrics.RecordGeneration(string(platform), false, 0)
		return failed(platform, FailureInternal, 0)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if s.throttle != nil {
		if err := s.throttle.Wait(callCtx); err != nil {
			kind := classify(ctx, err)
			if kind == FailureInternal {
				kind = FailureTimeout
			}
			observability.Warn("completion throttle wait aborted",
				append(logFields, zap.String("failure", string(kind)), zap.Error(err))...)
			metrics.RecordGeneration(string(platform), false, 0)
			return failed(platform, kind, 0)
		}
	}

	temperature := s.cfg.Temperature
	maxTokens := s.cfg.MaxTokens
	completionReq := &completion.Request{
		Model:       s.cfg.Model,
		Messages:    []completion.Message{{Role: "user", Content: tmpl.Render(req.Topic)}},
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		Metadata:    map[string]string{"platform": string(platform)},
	}

	start := s.now()
	resp, err := s.completer.Complete(callCtx, completionReq)
	elapsed := s.now().Sub(start)
	seconds := elapsed.Seconds()

	if err == nil && (resp == nil || strings.TrimSpace(resp.Text) == "") {
		err = completion.ErrEmptyCompletion
	}
	if err != nil {
		kind := classify(ctx, err)
		metrics.RecordGeneration(string(platform), false, elapsed)
		observability.Error("post generation failed",
			append(logFields,
				zap.String("failure", string(kind)),
				zap.Float64("processing_time", seconds),
				zap.Error(err),
			)...)
		return failed(platform, kind, seconds)
	}

	metrics.RecordGeneration(string(platform), true, elapsed)
	observability.Info("post generated",
		append(logFields,
			zap.String("platform_name", platform.DisplayName()),
			zap.String("model", s.cfg.Model),
			zap.Float64("processing_time", seconds),
		)...)

	return succeeded(platform, strings.TrimSpace(resp.Text), seconds)
}

// TruncateTopic shortens topic to at most n runes, marking the cut.
func TruncateTopic(topic string, n int) string {
	runes := []rune(topic)
	if len(runes) <= n {
		return topic
	}
	return string(runes[:n]) + "..."
}
