package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postsmith/postsmith/internal/ratelimit"
)

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("backend down")
}

func (failingLimiter) Limit() int {
	return 1
}

func (failingLimiter) Window() time.Duration {
	return time.Minute
}

func TestRateLimit_RejectsAfterLimit(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter := ratelimit.NewSlidingWindow(
		ratelimit.Config{MaxRequests: 2, Window: time.Minute},
		ratelimit.WithClock(func() time.Time { return now }),
	)

	var rejected ratelimit.Decision
	mw := RateLimit(limiter, ratelimit.ClientIPKeyFunc(false), func(w http.ResponseWriter, r *http.Request, d ratelimit.Decision) {
		rejected = d
		w.WriteHeader(http.StatusTooManyRequests)
	})

	calls := 0
	var key string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		key = ClientKey(r.Context())
	}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/generate-post", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := send()
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
	send()

	rec = send()
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.False(t, rejected.Allowed)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "203.0.113.7", key)
}

func TestRateLimit_FailsOpenOnLimiterError(t *testing.T) {
	called := false
	handler := RateLimit(failingLimiter{}, nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_DefaultRejectWritesPlain429(t *testing.T) {
	limiter := ratelimit.NewSlidingWindow(ratelimit.Config{MaxRequests: 1, Window: time.Minute})
	handler := RateLimit(limiter, nil, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		if i == 1 {
			assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		}
	}
}
