package completion

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// TraceEntry is one request/response pair written as NDJSON.
// Headers are never recorded, so API keys never reach the trace file.
type TraceEntry struct {
	Timestamp   time.Time       `json:"timestamp"`
	Driver      string          `json:"driver"`
	Endpoint    string          `json:"endpoint"`
	Method      string          `json:"method"`
	Model       string          `json:"model,omitempty"`
	RequestBody json.RawMessage `json:"request_body,omitempty"`
	StatusCode  int             `json:"status_code,omitempty"`
	Response    json.RawMessage `json:"response,omitempty"`
	Error       string          `json:"error,omitempty"`
	DurationMs  int64           `json:"duration_ms"`
}

type tracer struct {
	file *os.File
	mu   sync.Mutex
}

var (
	activeTracer *tracer
	tracerMu     sync.Mutex
)

// EnableTracing appends traces to path until the returned func is called.
func EnableTracing(path string) (func(), error) {
	tracerMu.Lock()
	defer tracerMu.Unlock()

	if activeTracer != nil {
		_ = activeTracer.close()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}

	activeTracer = &tracer{file: f}
	return DisableTracing, nil
}

// DisableTracing stops tracing and closes the trace file.
func DisableTracing() {
	tracerMu.Lock()
	defer tracerMu.Unlock()
	if activeTracer != nil {
		_ = activeTracer.close()
		activeTracer = nil
	}
}

// IsTracingEnabled reports whether a trace file is open.
func IsTracingEnabled() bool {
	tracerMu.Lock()
	defer tracerMu.Unlock()
	return activeTracer != nil
}

// Trace records entry if tracing is enabled.
func Trace(entry TraceEntry) {
	tracerMu.Lock()
	t := activeTracer
	tracerMu.Unlock()

	if t == nil {
		return
	}
	t.write(entry)
}

func (t *tracer) write(entry TraceEntry) {
	if t == nil || t.file == nil {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	_, _ = t.file.Write(append(data, '\n'))
}

func (t *tracer) close() error {
	if t == nil || t.file == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.file.Close()
}
