package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fulmenhq/gofulmen/telemetry/exporters"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postsmith/postsmith/internal/config"
	"github.com/postsmith/postsmith/internal/observability"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func stubMetricsUpstream(t *testing.T, rt roundTripFunc) {
	t.Helper()

	originalClient := metricsProxyClient
	metricsProxyClient = &http.Client{Transport: rt}
	observability.PrometheusExporter = exporters.NewPrometheusExporter("test", ":0")
	t.Cleanup(func() {
		metricsProxyClient = originalClient
		observability.PrometheusExporter = nil
	})
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error.Code
}

func TestMetricsHandlerProxiesScrape(t *testing.T) {
	var seen *http.Request
	stubMetricsUpstream(t, func(req *http.Request) (*http.Response, error) {
		seen = req
		resp := &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader("post_generations_total{platform=\"twitter\"} 3\n")),
			Header:     make(http.Header),
		}
		resp.Header.Set("Content-Type", "text/plain; version=0.0.4")
		resp.Header.Set("Connection", "close")
		return resp, nil
	})

	srv := &Server{deps: Deps{Config: &config.Config{Metrics: config.MetricsConfig{Port: 9311}}}}
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept", "text/plain")
	rec := httptest.NewRecorder()

	srv.MetricsHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "http://127.0.0.1:9311/metrics", seen.URL.String())
	assert.Equal(t, "text/plain", seen.Header.Get("Accept"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Empty(t, rec.Header().Get("Connection"))
	assert.Contains(t, rec.Body.String(), "post_generations_total")
}

func TestMetricsHandlerDefaultsContentType(t *testing.T) {
	stubMetricsUpstream(t, func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader("up 1\n")),
			Header:     make(http.Header),
		}, nil
	})

	rec := httptest.NewRecorder()
	(&Server{}).MetricsHandler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; version=0.0.4", rec.Header().Get("Content-Type"))
}

func TestMetricsHandlerUpstreamFailure(t *testing.T) {
	stubMetricsUpstream(t, func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})

	rec := httptest.NewRecorder()
	(&Server{}).MetricsHandler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "EXTERNAL_SERVICE_ERROR", decodeErrorCode(t, rec))
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestMetricsHandlerWithoutExporter(t *testing.T) {
	observability.PrometheusExporter = nil

	rec := httptest.NewRecorder()
	(&Server{}).MetricsHandler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", decodeErrorCode(t, rec))
}
