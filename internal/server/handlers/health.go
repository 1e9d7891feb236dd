package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/fulmenhq/gofulmen/errors"
)

// HealthResponse is the /health body. Timestamp is Unix seconds.
type HealthResponse struct {
	Status    string  `json:"status"`
	Timestamp float64 `json:"timestamp"`
}

// ProbeResponse is returned by the liveness and readiness probes.
type ProbeResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthChecker is implemented by dependencies that can report readiness.
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// HealthCheckerFunc adapts a function to HealthChecker.
type HealthCheckerFunc func(ctx context.Context) error

func (f HealthCheckerFunc) CheckHealth(ctx context.Context) error { return f(ctx) }

// Health answers 200 whenever the process can serve HTTP.
func Health(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: float64(now.UnixNano()) / float64(time.Second),
	})
}

// HealthManager runs registered checks for the probe endpoints.
type HealthManager struct {
	checkers map[string]HealthChecker
	version  string
}

// NewHealthManager creates a manager with no checks.
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		checkers: make(map[string]HealthChecker),
		version:  version,
	}
}

// RegisterChecker adds a named check. Not safe once serving starts.
func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	hm.checkers[name] = checker
}

func (hm *HealthManager) runHealthChecks(ctx context.Context) map[string]string {
	names := make([]string, 0, len(hm.checkers))
	for name := range hm.checkers {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	for _, name := range names {
		if ctx.Err() != nil {
			checks[name] = "timeout"
			continue
		}
		if err := hm.checkers[name].CheckHealth(ctx); err != nil {
			checks[name] = "unhealthy"
		} else {
			checks[name] = "healthy"
		}
	}
	return checks
}

func overallStatus(checks map[string]string) string {
	degraded := false
	for _, status := range checks {
		switch status {
		case "unhealthy":
			return "unhealthy"
		case "timeout":
			degraded = true
		}
	}
	if degraded {
		return "degraded"
	}
	return "healthy"
}

// LivenessHandler reports that the process is up; it runs no checks.
func (hm *HealthManager) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ProbeResponse{
		Status:    "healthy",
		Version:   hm.version,
		Timestamp: time.Now().UTC(),
	})
}

// ReadinessHandler runs every registered check and answers 503 when any fails.
func (hm *HealthManager) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := hm.runHealthChecks(ctx)
	status := overallStatus(checks)

	if status == "unhealthy" {
		envelope := errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "readiness probe failed")
		envelope = enrichHealthEnvelope(envelope, "ready", status, checks)
		respondWithError(w, r, envelope)
		return
	}

	writeJSON(w, http.StatusOK, ProbeResponse{
		Status:    status,
		Version:   hm.version,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	})
}

func enrichHealthEnvelope(envelope *errors.ErrorEnvelope, probe, status string, checks map[string]string) *errors.ErrorEnvelope {
	details := map[string]interface{}{
		"status": status,
		"probe":  probe,
	}
	if len(checks) > 0 {
		details["checks"] = checks
	}
	envelope = envelope.WithDetails(details)

	var unhealthy []string
	for name, result := range checks {
		if result != "healthy" {
			unhealthy = append(unhealthy, name)
		}
	}
	sort.Strings(unhealthy)

	if len(unhealthy) > 0 {
		envelope, _ = envelope.WithContext(map[string]interface{}{
			"unhealthy_checks": unhealthy,
		})
	}
	return envelope
}
