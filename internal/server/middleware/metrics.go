package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/postsmith/postsmith/internal/observability"
)

// responseWriter captures status code and response size.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// RoutePattern returns the chi route pattern so raw paths never become labels.
func RoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}

	switch path := r.URL.Path; path {
	case "/health", "/health/live", "/health/ready":
		return "/health/*"
	case "/", "/version", "/metrics", "/generate-post", "/api/generate-post", "/debug/settings":
		return path
	default:
		return "/unknown"
	}
}

// RequestMetrics emits per-request HTTP metrics and an access log line.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		requestSize := int64(0)
		if contentLength := r.Header.Get("Content-Length"); contentLength != "" {
			if size, err := strconv.ParseInt(contentLength, 10, 64); err == nil {
				requestSize = size
			}
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		endpoint := RoutePattern(r)

		if sys := observability.TelemetrySystem; sys != nil {
			labels := map[string]string{
				"method":   r.Method,
				"endpoint": endpoint,
				"status":   strconv.Itoa(wrapped.statusCode),
			}
			sizeLabels := map[string]string{
				"method":   r.Method,
				"endpoint": endpoint,
			}

			_ = sys.Counter("http_requests_total", 1, labels)
			_ = sys.Histogram("http_request_duration_ms", duration, labels)
			_ = sys.Gauge("http_request_size_bytes", float64(requestSize), sizeLabels)
			_ = sys.Gauge("http_response_size_bytes", float64(wrapped.bytesWritten), sizeLabels)

			if wrapped.statusCode >= 400 {
				errorType := "client_error"
				if wrapped.statusCode >= 500 {
					errorType = "server_error"
				}
				_ = sys.Counter("http_errors_total", 1, map[string]string{
					"method":     r.Method,
					"endpoint":   endpoint,
					"status":     strconv.Itoa(wrapped.statusCode),
					"error_type": errorType,
				})
			}
		}

		observability.Info("HTTP request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("endpoint", endpoint),
			zap.Int("status", wrapped.statusCode),
			zap.Duration("duration", duration),
			zap.Int64("request_size", requestSize),
			zap.Int64("response_size", wrapped.bytesWritten),
			zap.String("request_id", GetRequestID(r.Context())),
		)
	})
}
