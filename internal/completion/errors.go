package completion

import (
	"errors"
	"fmt"
)

// ErrMalformedResponse is returned when the provider answers 2xx with a body
// that does not decode into a completion.
var ErrMalformedResponse = errors.New("malformed completion response")

// ErrEmptyCompletion is returned when the first choice carries no text.
var ErrEmptyCompletion = errors.New("empty completion")

// ProviderError is returned when a provider responds with a non-2xx status.
//
// RawResponse holds the provider body for tracing and logs. It must never be
// shown to end users and never includes API keys.
type ProviderError struct {
	Provider    string
	StatusCode  int
	Message     string
	RawResponse []byte
}

func (e *ProviderError) Error() string {
	if e == nil {
		return "provider error"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s request failed: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s request failed: %s", e.Provider, e.Message)
}
