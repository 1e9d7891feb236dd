package metrics

import (
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postsmith/postsmith/internal/observability"
)

func setupTelemetry(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()

	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: collector})
	require.NoError(t, err)

	original := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() { observability.TelemetrySystem = original })

	return collector
}

func TestRecordGeneration(t *testing.T) {
	collector := setupTelemetry(t)

	RecordGeneration("twitter", true, 120*time.Millisecond)
	RecordGeneration("linkedin", false, time.Second)

	assert.Greater(t, collector.CountMetricsByName(PostGenerationsTotal), 0)
	assert.Greater(t, collector.CountMetricsByName(PostGenerationDurationMs), 0)
}

func TestRecordRateLimit(t *testing.T) {
	collector := setupTelemetry(t)

	RecordRateLimitDecision(true)
	RecordRateLimitDecision(false)
	RecordRateLimitSweep(0, 4)
	RecordRateLimitSweep(3, 1)

	assert.Greater(t, collector.CountMetricsByName(RateLimitDecisionsTotal), 0)
	assert.Greater(t, collector.CountMetricsByName(RateLimitTrackedClients), 0)
	assert.Greater(t, collector.CountMetricsByName(RateLimitEvictionsTotal), 0)
}

func TestRecordErrorLabelsRoute(t *testing.T) {
	collector := setupTelemetry(t)

	RecordError("RATE_LIMITED", 429, "/api/generate-post")
	RecordError("NOT_FOUND", 404, "")
	RecordPanic("/generate-post")

	assert.Greater(t, collector.CountMetricsByName(ErrorResponsesTotal), 0)
	assert.Greater(t, collector.CountMetricsByName(PanicsRecoveredTotal), 0)
}

func TestRecordersNoopWithoutTelemetry(t *testing.T) {
	original := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() { observability.TelemetrySystem = original })

	assert.NotPanics(t, func() {
		RecordGeneration("twitter", true, time.Millisecond)
		RecordRateLimitDecision(false)
		RecordRateLimitSweep(1, 1)
		RecordError("RATE_LIMITED", 429, "/api/generate-post")
		RecordPanic("")
		SetServerStartTime(time.Now().Unix())
	})
}
