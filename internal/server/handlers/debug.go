package handlers

import (
	"net/http"
	"time"

	"github.com/postsmith/postsmith/internal/post"
)

// SettingsResponse is the /debug/settings body.
type SettingsResponse struct {
	MaxTopicLength int               `json:"MAX_TOPIC_LENGTH"`
	MinTopicLength int               `json:"MIN_TOPIC_LENGTH"`
	RateLimit      RateLimitSettings `json:"rate_limit"`
	Message        string            `json:"message"`
}

// RateLimitSettings describes the active limiter.
type RateLimitSettings struct {
	Backend       string `json:"backend"`
	MaxRequests   int    `json:"max_requests"`
	WindowSeconds int    `json:"window_seconds"`
}

// DebugSettingsHandler reports the effective validation and limit settings.
func DebugSettingsHandler(rules post.Rules, backend string, limit int, window time.Duration) http.HandlerFunc {
	body := SettingsResponse{
		MaxTopicLength: rules.MaxTopicLength,
		MinTopicLength: rules.MinTopicLength,
		RateLimit: RateLimitSettings{
			Backend:       backend,
			MaxRequests:   limit,
			WindowSeconds: int(window / time.Second),
		},
		Message: "Current validation settings",
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, body)
	}
}
