// Package instrumentation provides comprehensive OpenTelemetry instrumentation
// for the mcp-ory server.
//
// This package enables production-grade observability through:
//   - OpenTelemetry metrics for HTTP requests, OAuth backend calls, and token verification
//   - Distributed tracing for request flows and backend admin API calls
//   - Prometheus metrics export via /metrics endpoint
//   - OTLP export support for modern observability platforms
//
// # Metrics
//
// The package exposes the following metric categories:
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//   - active_mcp_sessions: Gauge of active MCP sessions
//
// OAuth Backend Metrics:
//   - oauth_backend_requests_total: Counter of backend admin API calls by operation and status class
//   - oauth_backend_request_duration_seconds: Histogram of backend call durations
//
// Token Verification Metrics:
//   - token_verifications_total: Counter of access token verifications by result
//
// Identity Resolution Metrics:
//   - identity_resolutions_total: Counter of claim-to-identity resolutions by result
//
// # Cardinality Considerations
//
// Backend status codes are collapsed into their class (2xx, 4xx, ...) and
// identity identifiers are reduced to their domain before being recorded.
// Client IDs are recorded on traces but never on metrics: a public MCP
// deployment can accumulate an unbounded number of dynamically registered
// clients, which would explode the metric label set.
//
// # Tracing
//
// Distributed tracing spans are created for:
//   - HTTP request handling
//   - MCP tool invocations
//   - OAuth backend admin API calls (client lookup, token exchange, introspection)
//   - JWT validation and identity resolution
//
// # Configuration
//
// Instrumentation can be configured via environment variables:
//   - INSTRUMENTATION_ENABLED: Enable/disable instrumentation (default: false)
//   - METRICS_EXPORTER: Metrics exporter type (prometheus, otlp, stdout, default: prometheus)
//   - TRACING_EXPORTER: Tracing exporter type (otlp, stdout, none, default: none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint for traces/metrics
//   - OTEL_TRACES_SAMPLER_ARG: Sampling rate (0.0 to 1.0, default: 0.1)
//   - OTEL_SERVICE_NAME: Service name (default: mcp-ory)
//
// # Example Usage
//
//	// Initialize instrumentation
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
//		ServiceName:    "mcp-ory",
//		ServiceVersion: "0.1.0",
//		Enabled:        true,
//	})
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	// Get metrics recorder
//	recorder := provider.Metrics()
//
//	// Record an HTTP request
//	recorder.RecordHTTPRequest(ctx, "POST", "/mcp", 200, time.Since(start))
//
//	// Record a backend admin API call
//	recorder.RecordBackendRequest(ctx, "introspect", 200, time.Since(start))
package instrumentation
