package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	gferrors "github.com/fulmenhq/gofulmen/errors"
	"github.com/redis/go-redis/v9"

	"github.com/postsmith/postsmith/internal/completion"
	"github.com/postsmith/postsmith/internal/config"
	errwrap "github.com/postsmith/postsmith/internal/errors"
	"github.com/postsmith/postsmith/internal/post"
	"github.com/postsmith/postsmith/internal/prompt"
	"github.com/postsmith/postsmith/internal/ratelimit"
)

// requireGenerationConfig turns a config load result into the envelope that
// serve and generate exit with, or nil when cfg can drive generation.
func requireGenerationConfig(ctx context.Context, cfg *config.Config, loadErr error) *gferrors.ErrorEnvelope {
	if loadErr != nil {
		return errwrap.WrapConfigInvalid(ctx, loadErr, "configuration is invalid")
	}
	if err := cfg.RequireAPIKey(); err != nil {
		if errors.Is(err, config.ErrMissingAPIKey) {
			return errwrap.NewConfigInvalidError(err.Error())
		}
		return errwrap.WrapConfigInvalid(ctx, err, "configuration is invalid")
	}
	return nil
}

// buildService wires the completion client, prompt registry and generation
// service from cfg.
func buildService(cfg *config.Config) (*post.Service, *prompt.InMemoryRegistry, error) {
	client := completion.NewClient(cfg.Completion.BaseURL, cfg.Completion.APIKey)
	client.Timeout = cfg.Completion.Timeout

	registry, err := prompt.NewRegistryWithOverrides(cfg.Prompts.Dir)
	if err != nil {
		return nil, nil, fmt.Errorf("load prompts: %w", err)
	}

	svc, err := post.NewService(client, registry, post.Config{
		Model:         cfg.Completion.Model,
		Temperature:   cfg.Completion.Temperature,
		MaxTokens:     cfg.Completion.MaxTokens,
		Timeout:       cfg.Completion.Timeout,
		ThrottleRPS:   cfg.Completion.ThrottleRPS,
		ThrottleBurst: cfg.Completion.ThrottleBurst,
	})
	if err != nil {
		return nil, nil, err
	}
	return svc, registry, nil
}

func buildValidator(cfg *config.Config) *post.Validator {
	return post.NewValidator(post.Rules{
		MinTopicLength: cfg.Validation.MinTopicLength,
		MaxTopicLength: cfg.Validation.MaxTopicLength,
		ForbiddenWords: cfg.Validation.ForbiddenWords,
	})
}

func limiterConfig(cfg *config.Config) ratelimit.Config {
	return ratelimit.Config{
		MaxRequests:     cfg.RateLimit.MaxRequests,
		Window:          cfg.RateLimit.Window,
		CleanupInterval: cfg.RateLimit.CleanupInterval,
	}
}

func newRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// openRedisWindow connects to Redis and verifies it answers before returning.
func openRedisWindow(ctx context.Context, cfg *config.Config) (*ratelimit.RedisWindow, *redis.Client, error) {
	client := newRedisClient(cfg.RateLimit.Redis)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.RateLimit.Redis.Addr, err)
	}

	return ratelimit.NewRedisWindow(client, limiterConfig(cfg), cfg.RateLimit.Redis.Prefix), client, nil
}
