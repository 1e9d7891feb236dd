package metrics

import (
	"strconv"

	"github.com/postsmith/postsmith/internal/observability"
)

const (
	ErrorResponsesTotal  = "error_responses_total"
	PanicsRecoveredTotal = "panics_recovered_total"
	unmatchedRouteTag    = "unmatched"
)

// RecordError counts one error envelope written to a client. route is the
// router pattern, not the raw path, so label cardinality stays bounded.
func RecordError(code string, status int, route string) {
	if observability.TelemetrySystem == nil {
		return
	}
	if route == "" {
		route = unmatchedRouteTag
	}
	_ = observability.TelemetrySystem.Counter(ErrorResponsesTotal, 1, map[string]string{
		"code":   code,
		"status": strconv.Itoa(status),
		"route":  route,
	})
}

// RecordPanic counts a panic recovered by the HTTP middleware.
func RecordPanic(route string) {
	if observability.TelemetrySystem == nil {
		return
	}
	if route == "" {
		route = unmatchedRouteTag
	}
	_ = observability.TelemetrySystem.Counter(PanicsRecoveredTotal, 1, map[string]string{"route": route})
}
