package ory

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// ClientInformation describes a registered OAuth client as reported by the
// backend (RFC 7591 shape). This package never originates or stores client
// records; it only relays them between the backend and the caller.
type ClientInformation struct {
	ClientID                string   `json:"client_id"`
	ClientSecret            string   `json:"client_secret,omitempty"`
	RedirectURIs            []string `json:"redirect_uris,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
	ClientName              string   `json:"client_name,omitempty"`
}

// Validate checks the minimal client schema the adapter relies on.
func (c *ClientInformation) Validate() error {
	if c.ClientID == "" {
		return errors.New("client_id is required")
	}
	return nil
}

// Tokens is an OAuth 2.1 token response from the backend's token endpoint.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Validate checks the token response schema.
func (t *Tokens) Validate() error {
	if t.AccessToken == "" {
		return errors.New("access_token is required")
	}
	if t.TokenType == "" {
		return errors.New("token_type is required")
	}
	return nil
}

// OAuth2Token converts the response into a *oauth2.Token so it can be used
// with golang.org/x/oauth2 based HTTP clients and token sources.
func (t *Tokens) OAuth2Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
	}
	if t.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return tok
}

// Introspection is the backend's answer for an opaque access token
// (RFC 7662). It is never cached.
type Introspection struct {
	Active   bool   `json:"active"`
	ClientID string `json:"client_id,omitempty"`
	Scope    string `json:"scope,omitempty"`
	Exp      int64  `json:"exp,omitempty"`
}

// AuthorizationParams carries the parameters for starting an authorization
// redirect. State and Scopes are optional; the provider fills in defaults
// before constructing the redirect URL.
type AuthorizationParams struct {
	RedirectURI   string
	CodeChallenge string
	Scopes        []string
	State         string
}

// RevocationRequest is a token revocation request (RFC 7009).
type RevocationRequest struct {
	Token         string `json:"token"`
	TokenTypeHint string `json:"token_type_hint,omitempty"`
}

// AuthInfo is the result of a successful access-token verification.
type AuthInfo struct {
	// Token is the verified access token, echoed back for downstream use.
	Token string

	// ClientID identifies the OAuth client the token was issued to.
	ClientID string

	// Scopes are the token's granted scopes, split from the introspection
	// scope string. Empty when the backend reported no scope.
	Scopes []string

	// ExpiresAt is the token expiry in seconds since the Unix epoch.
	ExpiresAt int64
}

// SplitScopes splits a space-separated scope string into a slice. It returns
// an empty (non-nil) slice when the input is blank so callers can range over
// the result without a nil check.
func SplitScopes(scope string) []string {
	fields := strings.Fields(scope)
	if fields == nil {
		return []string{}
	}
	return fields
}
