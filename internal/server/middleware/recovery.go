package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/postsmith/postsmith/internal/metrics"
	"github.com/postsmith/postsmith/internal/observability"
)

// Recovery turns a handler panic into a 500 error envelope. The panic value
// and stack are logged, never returned.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			requestID := GetRequestID(r.Context())
			envelope := errors.NewErrorEnvelope("INTERNAL_ERROR", "An unexpected error occurred. Please try again.").
				WithCorrelationID(requestID)
			envelope, _ = envelope.WithSeverity(errors.SeverityCritical)

			metrics.RecordPanic(RoutePattern(r))
			observability.Error("panic recovered",
				zap.String("panic", fmt.Sprint(rec)),
				zap.String("path", r.URL.Path),
				zap.String("request_id", requestID),
				zap.String("stack_trace", string(debug.Stack())),
			)

			writeErrorResponse(w, envelope, http.StatusInternalServerError)
		}()

		next.ServeHTTP(w, r)
	})
}

// ErrorResponse mirrors the error body written by the errors package; it is
// duplicated here because that package imports middleware.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

func writeErrorResponse(w http.ResponseWriter, envelope *errors.ErrorEnvelope, statusCode int) {
	response := ErrorResponse{
		Error: ErrorDetail{
			Code:      envelope.Code,
			Message:   envelope.Message,
			RequestID: envelope.CorrelationID,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}
