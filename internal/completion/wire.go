package completion

import (
	"fmt"
	"strings"
)

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

type choice struct {
	Message      *chatResponseMessage `json:"message"`
	FinishReason string               `json:"finish_reason"`
}

type chatResponseMessage struct {
	Content *string `json:"content"`
}

func buildChatRequest(req *Request) (*chatCompletionRequest, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if strings.TrimSpace(req.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("messages are required")
	}

	messages := make([]chatMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		role := strings.TrimSpace(msg.Role)
		if role == "" {
			role = "user"
		}
		messages = append(messages, chatMessage{Role: role, Content: msg.Content})
	}

	return &chatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}, nil
}

func toResponse(resp *chatCompletionResponse) (*Response, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}

	first := resp.Choices[0]
	if first.Message == nil || first.Message.Content == nil {
		return nil, fmt.Errorf("%w: choice has no message content", ErrMalformedResponse)
	}

	text := strings.TrimSpace(*first.Message.Content)
	if text == "" {
		return nil, ErrEmptyCompletion
	}

	return &Response{
		Text:         text,
		FinishReason: first.FinishReason,
		Model:        resp.Model,
		Usage:        resp.Usage,
	}, nil
}
