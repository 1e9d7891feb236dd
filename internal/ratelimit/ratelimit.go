// Package ratelimit bounds how many generation requests a single client may
// issue inside a trailing time window.
//
// The default backend (SlidingWindow) keeps all state in process memory and
// therefore only limits traffic seen by one instance. Running several replicas
// behind a load balancer multiplies the effective limit by the replica count
// unless the Redis backend is selected explicitly.
package ratelimit

import (
	"context"
	"time"
)

// Defaults applied when a Config leaves a field unset.
const (
	DefaultMaxRequests     = 10
	DefaultWindow          = 60 * time.Second
	DefaultCleanupInterval = time.Minute
)

// Config describes a sliding-window limit.
type Config struct {
	MaxRequests     int
	Window          time.Duration
	CleanupInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRequests <= 0 {
		c.MaxRequests = DefaultMaxRequests
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	return c
}

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed bool
	// Limit is the configured maximum per window.
	Limit int
	// Remaining is how many more requests the client may issue right now.
	Remaining int
	// RetryAfter is the time until the oldest counted request leaves the
	// window. Zero when the request was allowed.
	RetryAfter time.Duration
}

// Limiter decides whether a client may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
	Limit() int
	Window() time.Duration
}
