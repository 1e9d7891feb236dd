package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL points at Groq's OpenAI-compatible endpoint.
const DefaultBaseURL = "https://api.groq.com/openai/v1"

// maxResponseBytes caps how much of a provider body is buffered.
const maxResponseBytes = 1 << 20

// Client implements Completer over direct HTTP against any provider that
// speaks the OpenAI chat completions shape.
type Client struct {
	Provider   string
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewClient returns a client with defaults applied.
func NewClient(baseURL, apiKey string) *Client {
	url := strings.TrimSpace(baseURL)
	if url == "" {
		url = DefaultBaseURL
	}

	return &Client{
		Provider: "completion",
		BaseURL:  url,
		APIKey:   strings.TrimSpace(apiKey),
	}
}

// Complete sends a chat completion request.
func (c *Client) Complete(ctx context.Context, req *Request) (*Response, error) {
	if c == nil {
		return nil, fmt.Errorf("completion client not configured")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}

	payload, err := buildChatRequest(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, c.Timeout)
	if cancel != nil {
		defer cancel()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	url := strings.TrimRight(c.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	start := time.Now()
	trace := TraceEntry{
		Driver:      c.Provider,
		Endpoint:    url,
		Method:      http.MethodPost,
		Model:       payload.Model,
		RequestBody: body,
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		trace.Error = err.Error()
		trace.DurationMs = time.Since(start).Milliseconds()
		Trace(trace)
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	trace.StatusCode = resp.StatusCode
	trace.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		trace.Error = err.Error()
		Trace(trace)
		return nil, fmt.Errorf("read response: %w", err)
	}
	if json.Valid(respBody) {
		trace.Response = respBody
	}
	Trace(trace)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &ProviderError{Provider: c.Provider, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody)), RawResponse: respBody}
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return toResponse(&parsed)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, nil
	}
	return context.WithTimeout(ctx, timeout)
}
