// Package cmd implements the command-line interface for the MCP Ory server.
//
// The command structure is:
//
//	mcp-ory              - Starts the server with stdio transport (default)
//	mcp-ory serve        - Starts the server with configurable transport
//	mcp-ory version      - Prints the version
//	mcp-ory selfupdate   - Updates the binary to the latest release
//
// The serve command supports three transports:
//
//	mcp-ory serve --transport stdio
//	mcp-ory serve --transport sse --http-addr :8080
//	mcp-ory serve --transport streamable-http --http-addr :8080
//
// Authentication surfaces are enabled independently. The OAuth 2.1 provider
// adapter requires an HTTP transport and an externally visible base URL:
//
//	mcp-ory serve --transport streamable-http \
//	  --enable-oauth --provider-type network \
//	  --ory-project-url https://project.projects.oryapis.com \
//	  --ory-api-key ory_pat_... \
//	  --base-url https://mcp.example.com
//
// JWT validation and session checking work on any transport:
//
//	mcp-ory serve --jwks-url https://idp.example.com/.well-known/jwks.json \
//	  --jwt-issuer https://idp.example.com --enable-sessions
//
// Most flags fall back to environment variables (ORY_PROJECT_URL,
// ORY_PROJECT_API_KEY, HYDRA_ADMIN_URL, JWKS_URL, MCP_BASE_URL, ...) and a local
// .env file is loaded when present.
package cmd
