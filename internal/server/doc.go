// Package server provides the ServerContext pattern and the HTTP transport
// for the MCP Ory server.
//
// This package implements the core server architecture patterns including:
//
//   - ServerContext: Encapsulates all server dependencies and lifecycle management
//   - Functional Options: Clean dependency injection and configuration
//   - Logger Interface: Abstraction for logging operations
//   - Configuration Management: Centralized server configuration
//
// The ServerContext Pattern:
//
// The ServerContext struct follows the context pattern commonly used in Go
// applications to encapsulate dependencies and provide clean separation of
// concerns. It includes:
//
//   - OAuth provider adapter for the Ory backend
//   - JWT validator and session verifier for inbound authentication
//   - Ory identities admin client
//   - Logger interface and configuration settings
//   - Context for cancellation and timeouts
//   - Lifecycle management (shutdown, cleanup)
//
// All dependencies are injected using functional options, making the code
// highly testable and modular.
//
// HTTP Transport:
//
// OAuthHTTPServer serves the MCP streamable HTTP endpoint behind the
// Authenticate middleware together with the OAuth surface: authorization
// server and protected resource metadata documents, /oauth/authorize,
// /oauth/token, and, when the backend supports them, /oauth/register and
// /oauth/revoke. Health endpoints (/healthz, /readyz, /healthz/detailed)
// report liveness, readiness, and the configured authentication surface.
//
// Example usage:
//
//	sc, err := server.NewServerContext(ctx,
//		server.WithProvider(provider),
//		server.WithBaseURL("https://mcp.example.com"),
//		server.WithLogger(logger),
//	)
//	if err != nil {
//		return err
//	}
//	defer sc.Shutdown()
//
//	srv, err := server.NewOAuthHTTPServer(sc, mcpServer, server.OAuthHTTPServerConfig{
//		EndpointPath: "/mcp",
//	})
//	if err != nil {
//		return err
//	}
//	return srv.Start(":8080")
package server
