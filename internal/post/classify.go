package post

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/postsmith/postsmith/internal/completion"
)

// classify maps a completion error onto a FailureKind. parent is the
// caller's context, used to tell a client disconnect from a timeout.
func classify(parent context.Context, err error) FailureKind {
	if err == nil {
		return FailureNone
	}

	var perr *completion.ProviderError
	if errors.As(err, &perr) {
		switch {
		case perr.StatusCode == http.StatusUnauthorized || perr.StatusCode == http.StatusForbidden:
			return FailureAuth
		case perr.StatusCode == http.StatusTooManyRequests:
			return FailureRateLimited
		case perr.StatusCode >= 500:
			return FailureUnavailable
		default:
			return FailureRejected
		}
	}

	switch {
	case errors.Is(err, completion.ErrMalformedResponse):
		return FailureMalformed
	case errors.Is(err, completion.ErrEmptyCompletion):
		return FailureEmpty
	}

	if errors.Is(err, context.Canceled) && parent != nil && errors.Is(parent.Err(), context.Canceled) {
		return FailureCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}

	var nerr net.Error
	if errors.As(err, &nerr) {
		if nerr.Timeout() {
			return FailureTimeout
		}
		return FailureNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return FailureNetwork
	}

	return FailureInternal
}

func failureMessage(kind FailureKind) string {
	switch kind {
	case FailureTimeout:
		return "Request timed out. Please try again."
	case FailureCanceled:
		return "Request was cancelled before the post was generated."
	case FailureNetwork:
		return "Could not reach the content generation service. Please try again."
	case FailureAuth:
		return "The content generation service is not configured correctly. Please contact the administrator."
	case FailureRateLimited:
		return "The content generation service is busy. Please try again shortly."
	case FailureUnavailable:
		return "The content generation service is temporarily unavailable. Please try again."
	case FailureRejected:
		return "The content generation service rejected the request. Please try a different topic."
	case FailureMalformed:
		return "Received an unexpected response from the content generation service. Please try again."
	case FailureEmpty:
		return "No content was generated. Please try again."
	default:
		return "An unexpected error occurred. Please try again."
	}
}
