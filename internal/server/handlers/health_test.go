package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postsmith/postsmith/internal/post"
)

func TestHealthAlwaysHealthy(t *testing.T) {
	before := float64(time.Now().Unix())

	rec := httptest.NewRecorder()
	Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.GreaterOrEqual(t, body.Timestamp, before)
}

func TestLivenessRunsNoChecks(t *testing.T) {
	hm := NewHealthManager("1.2.3")
	hm.RegisterChecker("redis", HealthCheckerFunc(func(context.Context) error {
		return errors.New("down")
	}))

	rec := httptest.NewRecorder()
	hm.LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body ProbeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "1.2.3", body.Version)
}

func TestReadinessReportsChecks(t *testing.T) {
	hm := NewHealthManager("dev")
	hm.RegisterChecker("prompts", HealthCheckerFunc(func(context.Context) error { return nil }))

	rec := httptest.NewRecorder()
	hm.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body ProbeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, map[string]string{"prompts": "healthy"}, body.Checks)
}

func TestReadinessFailsWhenCheckFails(t *testing.T) {
	hm := NewHealthManager("dev")
	hm.RegisterChecker("prompts", HealthCheckerFunc(func(context.Context) error { return nil }))
	hm.RegisterChecker("redis", HealthCheckerFunc(func(context.Context) error {
		return errors.New("connection refused")
	}))

	rec := httptest.NewRecorder()
	hm.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
	assert.Equal(t, "unhealthy", body.Error.Details["status"])
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestDebugSettings(t *testing.T) {
	rules := post.NewValidator(post.Rules{MinTopicLength: 5, MaxTopicLength: 200}).Rules()
	h := DebugSettingsHandler(rules, "memory", 10, time.Minute)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/debug/settings", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 200, body["MAX_TOPIC_LENGTH"])
	assert.EqualValues(t, 5, body["MIN_TOPIC_LENGTH"])
	assert.Equal(t, "Current validation settings", body["message"])
}

func TestVersionHandler(t *testing.T) {
	SetVersionInfo("1.0.0", "abc123", "2026-10-01")
	t.Cleanup(func() { SetVersionInfo("dev", "unknown", "unknown") })

	rec := httptest.NewRecorder()
	VersionHandler(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body VersionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "postsmith", body.App.Name)
	assert.Equal(t, "1.0.0", body.App.Version)
	assert.Equal(t, "abc123", body.App.Commit)
	assert.NotEmpty(t, body.Runtime.Platform)
}
