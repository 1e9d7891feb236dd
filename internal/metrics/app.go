package metrics

import (
	"time"

	"github.com/postsmith/postsmith/internal/observability"
)

// Domain metric names.
const (
	PostGenerationsTotal     = "post_generations_total"
	PostGenerationDurationMs = "post_generation_duration_ms"
	RateLimitDecisionsTotal  = "ratelimit_decisions_total"
	RateLimitTrackedClients  = "ratelimit_tracked_clients"
	RateLimitEvictionsTotal  = "ratelimit_evictions_total"
	ServerStartTime          = "app_server_start_time_seconds"
)

// RecordGeneration records one completed generation attempt.
func RecordGeneration(platform string, success bool, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}

	_ = observability.TelemetrySystem.Counter(
		PostGenerationsTotal,
		1,
		map[string]string{
			"platform": platform,
			"status":   status,
		},
	)
	_ = observability.TelemetrySystem.Histogram(
		PostGenerationDurationMs,
		duration,
		map[string]string{"platform": platform},
	)
}

// RecordRateLimitDecision counts admitted and rejected requests.
func RecordRateLimitDecision(allowed bool) {
	if observability.TelemetrySystem == nil {
		return
	}
	decision := "allowed"
	if !allowed {
		decision = "rejected"
	}
	_ = observability.TelemetrySystem.Counter(
		RateLimitDecisionsTotal,
		1,
		map[string]string{"decision": decision},
	)
}

// RecordRateLimitSweep records the outcome of a janitor pass.
func RecordRateLimitSweep(evicted, tracked int) {
	if observability.TelemetrySystem == nil {
		return
	}
	if evicted > 0 {
		_ = observability.TelemetrySystem.Counter(RateLimitEvictionsTotal, float64(evicted), nil)
	}
	_ = observability.TelemetrySystem.Gauge(RateLimitTrackedClients, float64(tracked), nil)
}

// SetServerStartTime records the server start time as a Unix timestamp.
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Gauge(ServerStartTime, float64(timestamp), nil)
	}
}
