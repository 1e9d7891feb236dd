package server

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/postsmith/postsmith/internal/errors"
	"github.com/postsmith/postsmith/internal/observability"
)

const defaultMetricsPort = 9090

var metricsProxyClient = &http.Client{
	Timeout: 5 * time.Second,
}

// hopByHop headers are left to net/http.
var hopByHop = map[string]bool{
	"connection":          true,
	"keep-alive":          true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"te":                  true,
	"trailer":             true,
	"transfer-encoding":   true,
	"upgrade":             true,
}

// MetricsHandler serves the Prometheus exporter's scrape output on the main
// listener so operators only need one port.
func (s *Server) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	if observability.PrometheusExporter == nil {
		apperrors.RespondWithError(w, r, apperrors.NewServiceUnavailableError("Metrics exporter not initialized"))
		return
	}

	target := s.metricsURL()
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		apperrors.RespondWithError(w, r, apperrors.WrapInternal(r.Context(), err, "Unable to construct metrics request"))
		return
	}
	if accept := r.Header.Get("Accept"); accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := metricsProxyClient.Do(req)
	if err != nil {
		observability.Warn("Metrics scrape failed", zap.String("target", target), zap.Error(err))
		apperrors.RespondWithError(w, r, apperrors.WrapExternalService(r.Context(), err, "Prometheus exporter unavailable"))
		return
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	copyEndToEndHeaders(w.Header(), resp.Header)
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	}

	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		observability.Warn("Failed to write metrics response", zap.Error(err))
	}
}

// metricsURL prefers the port the exporter actually bound, then the
// configured port.
func (s *Server) metricsURL() string {
	port := observability.GetMetricsPort()
	if port == 0 && s.deps.Config != nil {
		port = s.deps.Config.Metrics.Port
	}
	if port == 0 {
		port = defaultMetricsPort
	}
	return fmt.Sprintf("http://127.0.0.1:%d/metrics", port)
}

func copyEndToEndHeaders(dst, src http.Header) {
	for key, values := range src {
		if hopByHop[strings.ToLower(key)] {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}
