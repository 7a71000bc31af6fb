package authtools

import (
	"context"

	"github.com/giantswarm/mcp-ory/internal/server"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// RegisterAuthTools registers all authentication and authorization tools with the MCP server
func RegisterAuthTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	// auth_whoami tool
	whoamiTool := mcp.NewTool("auth_whoami",
		mcp.WithDescription("Show the authenticated principal for the current MCP request"),
	)

	s.AddTool(whoamiTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleWhoami(ctx, request, sc)
	})

	// oauth_client_get tool
	getClientTool := mcp.NewTool("oauth_client_get",
		mcp.WithDescription("Look up a registered OAuth client by its client ID"),
		mcp.WithString("clientId",
			mcp.Required(),
			mcp.Description("OAuth client ID to look up"),
		),
	)

	s.AddTool(getClientTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleGetClient(ctx, request, sc)
	})

	// oauth_token_verify tool
	verifyTokenTool := mcp.NewTool("oauth_token_verify",
		mcp.WithDescription("Verify an OAuth access token against the Ory backend and show its client and scopes"),
		mcp.WithString("token",
			mcp.Required(),
			mcp.Description("Access token to verify"),
		),
	)

	s.AddTool(verifyTokenTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleVerifyToken(ctx, request, sc)
	})

	// oauth_token_revoke tool
	revokeTokenTool := mcp.NewTool("oauth_token_revoke",
		mcp.WithDescription("Revoke an OAuth access or refresh token (only available when the backend supports revocation)"),
		mcp.WithString("token",
			mcp.Required(),
			mcp.Description("Token to revoke"),
		),
		mcp.WithString("tokenTypeHint",
			mcp.Description("Optional hint: access_token or refresh_token"),
		),
		mcp.WithString("clientId",
			mcp.Description("Optional client ID the token was issued to"),
		),
	)

	s.AddTool(revokeTokenTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleRevokeToken(ctx, request, sc)
	})

	// session_check tool
	sessionCheckTool := mcp.NewTool("session_check",
		mcp.WithDescription("Check an opaque Ory session token and show the session's identity"),
		mcp.WithString("sessionToken",
			mcp.Required(),
			mcp.Description("Ory session token to check"),
		),
	)

	s.AddTool(sessionCheckTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleSessionCheck(ctx, request, sc)
	})

	// identity_get tool
	getIdentityTool := mcp.NewTool("identity_get",
		mcp.WithDescription("Look up an Ory identity by identifier (email or username)"),
		mcp.WithString("identifier",
			mcp.Required(),
			mcp.Description("Identifier of the identity, typically an email address"),
		),
	)

	s.AddTool(getIdentityTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleGetIdentity(ctx, request, sc)
	})

	return nil
}
