package authtools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/giantswarm/mcp-ory/internal/ory"
	"github.com/giantswarm/mcp-ory/internal/server"
	"github.com/mark3labs/mcp-go/mcp"
)

// handleWhoami reports the principal attached to the request context.
func handleWhoami(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	principal, ok := server.PrincipalFromContext(ctx)
	if !ok {
		if sc.AuthEnabled() {
			return mcp.NewToolResultError("No authenticated principal on this request"), nil
		}
		return mcp.NewToolResultText("Authentication is disabled; requests are anonymous"), nil
	}

	jsonData, err := json.MarshalIndent(principal, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal principal: %v", err)), nil
	}

	return mcp.NewToolResultText(string(jsonData)), nil
}

// handleGetClient looks up an OAuth client in the backend.
func handleGetClient(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	provider := sc.Provider()
	if provider == nil {
		return mcp.NewToolResultError("OAuth provider is not configured"), nil
	}

	args := request.GetArguments()
	clientID, ok := args["clientId"].(string)
	if !ok || clientID == "" {
		return mcp.NewToolResultError("clientId is required"), nil
	}

	client, err := provider.ClientsStore().GetClient(ctx, clientID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to look up client: %v", err)), nil
	}
	if client == nil {
		return mcp.NewToolResultError(fmt.Sprintf("Client not found: %s", clientID)), nil
	}

	// Never expose the client secret through tool output.
	redacted := *client
	redacted.ClientSecret = ""

	jsonData, err := json.MarshalIndent(&redacted, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal client: %v", err)), nil
	}

	return mcp.NewToolResultText(string(jsonData)), nil
}

// handleVerifyToken introspects an access token against the backend.
func handleVerifyToken(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	provider := sc.Provider()
	if provider == nil {
		return mcp.NewToolResultError("OAuth provider is not configured"), nil
	}

	args := request.GetArguments()
	token, ok := args["token"].(string)
	if !ok || token == "" {
		return mcp.NewToolResultError("token is required"), nil
	}

	info, err := provider.VerifyAccessToken(ctx, token)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Token verification failed: %v", err)), nil
	}

	// The token itself is not echoed back.
	out := struct {
		ClientID  string   `json:"client_id"`
		Scopes    []string `json:"scopes"`
		ExpiresAt int64    `json:"expires_at,omitempty"`
	}{
		ClientID:  info.ClientID,
		Scopes:    info.Scopes,
		ExpiresAt: info.ExpiresAt,
	}

	jsonData, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal verification result: %v", err)), nil
	}

	return mcp.NewToolResultText(string(jsonData)), nil
}

// handleRevokeToken revokes a token when the backend supports revocation.
func handleRevokeToken(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	provider := sc.Provider()
	if provider == nil {
		return mcp.NewToolResultError("OAuth provider is not configured"), nil
	}

	revoker, ok := provider.(ory.TokenRevoker)
	if !ok {
		return mcp.NewToolResultError("The configured backend does not support token revocation"), nil
	}

	args := request.GetArguments()
	token, ok := args["token"].(string)
	if !ok || token == "" {
		return mcp.NewToolResultError("token is required"), nil
	}
	hint, _ := args["tokenTypeHint"].(string)

	// A missing clientId is a public revocation request; an unknown one is
	// an error rather than a silent downgrade.
	var client *ory.ClientInformation
	if clientID, _ := args["clientId"].(string); clientID != "" {
		var err error
		client, err = provider.ClientsStore().GetClient(ctx, clientID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to look up client: %v", err)), nil
		}
		if client == nil {
			return mcp.NewToolResultError(fmt.Sprintf("Client %q is not registered", clientID)), nil
		}
	}

	err := revoker.RevokeToken(ctx, client, ory.RevocationRequest{
		Token:         token,
		TokenTypeHint: hint,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to revoke token: %v", err)), nil
	}

	return mcp.NewToolResultText("Token revoked"), nil
}

// handleSessionCheck forwards a session token to the whoami endpoint.
func handleSessionCheck(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	verifier := sc.SessionVerifier()
	if verifier == nil {
		return mcp.NewToolResultError("Session checking is not configured"), nil
	}

	args := request.GetArguments()
	token, ok := args["sessionToken"].(string)
	if !ok || token == "" {
		return mcp.NewToolResultError("sessionToken is required"), nil
	}

	sess, err := verifier.Verify(ctx, token)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Session check failed: %v", err)), nil
	}

	jsonData, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal session: %v", err)), nil
	}

	return mcp.NewToolResultText(string(jsonData)), nil
}

// handleGetIdentity looks up an identity in the Ory identities API.
func handleGetIdentity(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	identities := sc.Identities()
	if identities == nil {
		return mcp.NewToolResultError("Identity management is not configured"), nil
	}

	args := request.GetArguments()
	identifier, ok := args["identifier"].(string)
	if !ok || identifier == "" {
		return mcp.NewToolResultError("identifier is required"), nil
	}

	ident, err := identities.GetByIdentifier(ctx, identifier)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to look up identity: %v", err)), nil
	}
	if ident == nil {
		return mcp.NewToolResultError(fmt.Sprintf("Identity not found: %s", identifier)), nil
	}

	jsonData, err := json.MarshalIndent(ident, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal identity: %v", err)), nil
	}

	return mcp.NewToolResultText(string(jsonData)), nil
}
