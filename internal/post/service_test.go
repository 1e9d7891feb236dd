package post

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postsmith/postsmith/internal/completion"
	"github.com/postsmith/postsmith/internal/prompt"
)

type fakeCompleter struct {
	mu       sync.Mutex
	calls    []*completion.Request
	response *completion.Response
	err      error
	block    bool
}

func (f *fakeCompleter) Complete(ctx context.Context, req *completion.Request) (*completion.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, fmt.Errorf("request failed: %w", ctx.Err())
	}
	return f.response, f.err
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestService(t *testing.T, fc *fakeCompleter, cfg Config) *Service {
	t.Helper()
	reg, err := prompt.DefaultRegistry()
	require.NoError(t, err)
	svc, err := NewService(fc, reg, cfg)
	require.NoError(t, err)
	return svc
}

func TestGenerateSuccess(t *testing.T) {
	fc := &fakeCompleter{response: &completion.Response{Text: "  A great post.\n"}}
	svc := newTestService(t, fc, Config{Temperature: 0.7})

	res := svc.Generate(context.Background(), GenerationRequest{Topic: "morning exercise", Platform: PlatformLinkedIn})

	require.True(t, res.Success)
	assert.Equal(t, "A great post.", res.Post())
	assert.Nil(t, res.ErrorMessage)
	assert.Equal(t, PlatformLinkedIn, res.Platform)
	assert.GreaterOrEqual(t, res.ProcessingTime, 0.0)

	require.Equal(t, 1, fc.callCount())
	call := fc.calls[0]
	assert.Equal(t, DefaultModel, call.Model)
	assert.Equal(t, DefaultMaxTokens, *call.MaxTokens)
	assert.InDelta(t, 0.7, *call.Temperature, 0.0001)
	require.Len(t, call.Messages, 1)
	assert.Equal(t, "user", call.Messages[0].Role)
	assert.Contains(t, call.Messages[0].Content, "LinkedIn")
	assert.True(t, strings.HasSuffix(call.Messages[0].Content, "Topic: morning exercise"))
}

func TestGenerateTopicIsLiteral(t *testing.T) {
	fc := &fakeCompleter{response: &completion.Response{Text: "ok"}}
	svc := newTestService(t, fc, Config{})

	topic := "{{topic}} {0} %v <script>"
	res := svc.Generate(context.Background(), GenerationRequest{Topic: topic, Platform: PlatformTwitter})
	require.True(t, res.Success)
	assert.True(t, strings.HasSuffix(fc.calls[0].Messages[0].Content, "Topic: {{topic}} {0} %v &lt;script&gt;"))
}

func TestGenerateFailuresAreSanitised(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind FailureKind
	}{
		{"auth", &completion.ProviderError{Provider: "groq", StatusCode: http.StatusUnauthorized, Message: `{"error":"Invalid API Key gsk_secret"}`}, FailureAuth},
		{"upstream 429", &completion.ProviderError{StatusCode: http.StatusTooManyRequests, Message: "slow down"}, FailureRateLimited},
		{"upstream 503", &completion.ProviderError{StatusCode: http.StatusServiceUnavailable, Message: "<html>down</html>"}, FailureUnavailable},
		{"upstream 400", &completion.ProviderError{StatusCode: http.StatusBadRequest, Message: "bad model"}, FailureRejected},
		{"malformed", fmt.Errorf("%w: unexpected token", completion.ErrMalformedResponse), FailureMalformed},
		{"empty", completion.ErrEmptyCompletion, FailureEmpty},
		{"network", fmt.Errorf("request failed: %w", &net.OpError{Op: "dial", Net: "tcp", Err: fmt.Errorf("connection refused")}), FailureNetwork},
		{"other", fmt.Errorf("api key is required"), FailureInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fc := &fakeCompleter{err: tc.err}
			svc := newTestService(t, fc, Config{})

			res := svc.Generate(context.Background(), GenerationRequest{Topic: "topic", Platform: PlatformTwitter})
			require.False(t, res.Success)
			assert.Nil(t, res.GeneratedPost)
			assert.Equal(t, tc.kind, res.Failure)
			assert.Equal(t, failureMessage(tc.kind), res.Message())
			assert.NotContains(t, res.Message(), "gsk_secret")
			assert.NotContains(t, res.Message(), "<html>")
			assert.GreaterOrEqual(t, res.ProcessingTime, 0.0)
		})
	}
}

func TestGenerateBlankCompletionFails(t *testing.T) {
	fc := &fakeCompleter{response: &completion.Response{Text: "  \n "}}
	svc := newTestService(t, fc, Config{})

	res := svc.Generate(context.Background(), GenerationRequest{Topic: "topic"})
	require.False(t, res.Success)
	assert.Equal(t, FailureEmpty, res.Failure)
	assert.Equal(t, PlatformTwitter, res.Platform)
}

func TestGenerateTimeout(t *testing.T) {
	fc := &fakeCompleter{block: true}
	svc := newTestService(t, fc, Config{Timeout: 50 * time.Millisecond})

	start := time.Now()
	res := svc.Generate(context.Background(), GenerationRequest{Topic: "topic", Platform: PlatformTwitter})

	require.False(t, res.Success)
	assert.Equal(t, FailureTimeout, res.Failure)
	assert.Equal(t, "Request timed out. Please try again.", res.Message())
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.GreaterOrEqual(t, res.ProcessingTime, 0.04)
}

func TestGenerateCallerCancel(t *testing.T) {
	fc := &fakeCompleter{block: true}
	svc := newTestService(t, fc, Config{Timeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	res := svc.Generate(ctx, GenerationRequest{Topic: "topic", Platform: PlatformTwitter})
	require.False(t, res.Success)
	assert.Equal(t, FailureCanceled, res.Failure)
}

func TestGenerateThrottle(t *testing.T) {
	fc := &fakeCompleter{response: &completion.Response{Text: "ok"}}
	svc := newTestService(t, fc, Config{ThrottleRPS: 1000, ThrottleBurst: 2})
	require.NotNil(t, svc.throttle)

	for i := 0; i < 3; i++ {
		res := svc.Generate(context.Background(), GenerationRequest{Topic: "topic"})
		require.True(t, res.Success)
	}
	assert.Equal(t, 3, fc.callCount())
}

func TestGenerateProcessingTimeUsesClock(t *testing.T) {
	fc := &fakeCompleter{response: &completion.Response{Text: "ok"}}
	svc := newTestService(t, fc, Config{})

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ticks := []time.Time{base, base.Add(1500 * time.Millisecond)}
	svc.now = func() time.Time {
		tick := ticks[0]
		ticks = ticks[1:]
		return tick
	}

	res := svc.Generate(context.Background(), GenerationRequest{Topic: "topic"})
	assert.InDelta(t, 1.5, res.ProcessingTime, 0.0001)
}

func TestGenerationResultJSONShape(t *testing.T) {
	ok := succeeded(PlatformTwitter, "hello", 0.25)
	data, err := json.Marshal(ok)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"generated_post":"hello","error_message":null,"processing_time":0.25,"platform":"twitter"}`, string(data))

	bad := failed(PlatformLinkedIn, FailureTimeout, -1)
	data, err = json.Marshal(bad)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"generated_post":null,"error_message":"Request timed out. Please try again.","processing_time":0,"platform":"linkedin"}`, string(data))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	reg, err := prompt.DefaultRegistry()
	require.NoError(t, err)

	_, err = NewService(nil, reg, Config{})
	require.Error(t, err)
	_, err = NewService(&fakeCompleter{}, nil, Config{})
	require.Error(t, err)

	empty, err := prompt.NewRegistry(nil)
	require.NoError(t, err)
	_, err = NewService(&fakeCompleter{}, empty, Config{})
	require.Error(t, err)
}

func TestTruncateTopic(t *testing.T) {
	assert.Equal(t, "short", TruncateTopic("short", 50))
	assert.Equal(t, "ééé...", TruncateTopic("éééé", 3))
}
