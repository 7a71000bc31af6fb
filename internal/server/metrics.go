package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/giantswarm/mcp-ory/internal/instrumentation"
)

// MetricsServerConfig holds configuration for the dedicated metrics server.
// Metrics are served on a separate listener so the Prometheus endpoint is
// never exposed on the same port as application traffic.
type MetricsServerConfig struct {
	// Addr is the listen address for the metrics server (e.g. ":9090").
	Addr string

	// Enabled controls whether the metrics server should run.
	Enabled bool

	// InstrumentationProvider supplies the Prometheus handler.
	InstrumentationProvider *instrumentation.Provider
}

// MetricsServer serves the Prometheus /metrics endpoint on its own listener.
type MetricsServer struct {
	httpServer *http.Server
}

// NewMetricsServer creates a metrics server for the provider's Prometheus
// registry. It fails when the provider has no Prometheus exporter configured.
func NewMetricsServer(config MetricsServerConfig) (*MetricsServer, error) {
	if !config.Enabled {
		return nil, errors.New("metrics server is not enabled")
	}
	if config.Addr == "" {
		return nil, errors.New("metrics server address is required")
	}

	handler := config.InstrumentationProvider.PrometheusHandler()
	if handler == nil {
		return nil, fmt.Errorf("instrumentation provider has no prometheus exporter (metrics exporter must be %q)", "prometheus")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	return &MetricsServer{
		httpServer: &http.Server{
			Addr:              config.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}, nil
}

// Start runs the metrics server. Blocks until the server stops.
func (s *MetricsServer) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the metrics server.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
