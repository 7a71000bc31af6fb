package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/giantswarm/mcp-ory/internal/instrumentation"
	"github.com/giantswarm/mcp-ory/internal/server"
)

// runStreamableHTTPServer runs the server with streamable HTTP transport,
// including the OAuth endpoints and health checks.
func runStreamableHTTPServer(mcpSrv *mcpserver.MCPServer, config ServeConfig, ctx context.Context, sc *server.ServerContext, instrumentationProvider *instrumentation.Provider) error {
	httpServer, err := server.NewOAuthHTTPServer(sc, mcpSrv, server.OAuthHTTPServerConfig{
		EndpointPath:   config.HTTPEndpoint,
		AllowedOrigins: os.Getenv("ALLOWED_ORIGINS"),
		EnableHSTS:     os.Getenv("ENABLE_HSTS") == envValueTrue,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	metricsServer := startMetricsServer(config, instrumentationProvider)

	serverDone := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on %s (endpoint: %s)", config.HTTPAddr, config.HTTPEndpoint)
		serverDone <- httpServer.Start(config.HTTPAddr)
	}()

	select {
	case err := <-serverDone:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Println("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()

		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("Metrics server shutdown error: %v", err)
			}
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
		return nil
	}
}

// startMetricsServer starts the dedicated Prometheus listener when enabled.
// Returns nil when the metrics server is disabled or cannot be created.
func startMetricsServer(config ServeConfig, instrumentationProvider *instrumentation.Provider) *server.MetricsServer {
	if !config.Metrics.Enabled {
		return nil
	}

	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    config.Metrics.Addr,
		Enabled:                 true,
		InstrumentationProvider: instrumentationProvider,
	})
	if err != nil {
		log.Printf("Metrics server not started: %v", err)
		return nil
	}

	go func() {
		log.Printf("Metrics server listening on %s", config.Metrics.Addr)
		if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	return metricsServer
}
