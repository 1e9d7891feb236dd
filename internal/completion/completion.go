// Package completion talks to OpenAI-compatible chat completion APIs.
package completion

import "context"

// Completer sends a single chat completion request.
type Completer interface {
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// Message is one chat turn.
type Message struct {
	Role    string
	Content string
}

// Request is a provider-agnostic completion request.
type Request struct {
	Model       string
	Messages    []Message
	Temperature *float64
	MaxTokens   *int
	// Metadata is only used for tracing and logging; it is never sent upstream.
	Metadata map[string]string
}

// Usage contains token usage statistics.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the first completion choice.
type Response struct {
	Text         string
	FinishReason string
	Model        string
	Usage        *Usage
}
