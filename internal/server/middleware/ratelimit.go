package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/postsmith/postsmith/internal/metrics"
	"github.com/postsmith/postsmith/internal/observability"
	"github.com/postsmith/postsmith/internal/ratelimit"
)

type clientKeyContextKey string

const ClientKeyContextKey clientKeyContextKey = "client_key"

// RejectFunc writes the response for a request the limiter refused.
type RejectFunc func(w http.ResponseWriter, r *http.Request, d ratelimit.Decision)

// RateLimit admits requests through limiter, keyed by keyFunc. Every response
// carries X-RateLimit-Limit and X-RateLimit-Remaining; rejected ones also get
// Retry-After and X-RateLimit-Reset before onReject runs. A limiter error
// fails open so a backend outage never blocks generation.
func RateLimit(limiter ratelimit.Limiter, keyFunc ratelimit.KeyFunc, onReject RejectFunc) func(http.Handler) http.Handler {
	if keyFunc == nil {
		keyFunc = ratelimit.ClientIPKeyFunc(false)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			ctx := context.WithValue(r.Context(), ClientKeyContextKey, key)
			r = r.WithContext(ctx)

			decision, err := limiter.Allow(ctx, key)
			if err != nil {
				observability.Warn("rate limiter unavailable; admitting request",
					zap.String("client", key),
					zap.String("request_id", GetRequestID(ctx)),
					zap.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			metrics.RecordRateLimitDecision(decision.Allowed)

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

			if decision.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			retry := retryAfterSeconds(decision)
			h.Set("Retry-After", strconv.Itoa(retry))
			h.Set("X-RateLimit-Reset", strconv.Itoa(retry))

			observability.Warn("rate limit exceeded",
				zap.String("client", key),
				zap.String("path", r.URL.Path),
				zap.Int("limit", decision.Limit),
				zap.Int("retry_after_seconds", retry),
			)

			if onReject == nil {
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			onReject(w, r, decision)
		})
	}
}

// ClientKey returns the rate-limit key stored by RateLimit, or "".
func ClientKey(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	key, _ := ctx.Value(ClientKeyContextKey).(string)
	return key
}

func retryAfterSeconds(d ratelimit.Decision) int {
	secs := int(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
