package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/giantswarm/mcp-ory/internal/ory"
	"github.com/giantswarm/mcp-ory/internal/server/middleware"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

const (
	// DefaultReadHeaderTimeout limits how long the server waits for request headers.
	DefaultReadHeaderTimeout = 10 * time.Second

	// DefaultWriteTimeout limits how long a handler may take to write a response.
	// Streamable HTTP responses can be long-lived, so this stays generous.
	DefaultWriteTimeout = 120 * time.Second

	// DefaultIdleTimeout closes keep-alive connections that go quiet.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultMaxRequestBody caps request bodies. OAuth form posts and MCP
	// messages are small; anything larger is rejected.
	DefaultMaxRequestBody = 1 << 20
)

// OAuthHTTPServer serves the OAuth authorization endpoints and the MCP
// streamable HTTP transport from a single listener. The OAuth routes are a
// thin HTTP binding over an ory.ServerProvider; all token and client state
// lives in the Ory backend.
type OAuthHTTPServer struct {
	sc            *ServerContext
	mcpServer     *mcpserver.MCPServer
	endpointPath  string
	healthChecker *HealthChecker
	httpServer    *http.Server
}

// OAuthHTTPServerConfig configures NewOAuthHTTPServer.
type OAuthHTTPServerConfig struct {
	// EndpointPath is the path the MCP handler is mounted on, e.g. "/mcp".
	EndpointPath string

	// AllowedOrigins is a comma-separated CORS allowlist. Empty disables CORS
	// headers entirely.
	AllowedOrigins string

	// EnableHSTS adds Strict-Transport-Security headers. Only enable behind
	// TLS termination.
	EnableHSTS bool
}

// NewOAuthHTTPServer builds the combined OAuth + MCP HTTP server. The server
// context must carry a provider for the OAuth routes to be mounted; without
// one only the MCP transport and health endpoints are served.
func NewOAuthHTTPServer(sc *ServerContext, mcpServer *mcpserver.MCPServer, cfg OAuthHTTPServerConfig) (*OAuthHTTPServer, error) {
	if sc == nil {
		return nil, fmt.Errorf("server context is required")
	}
	if mcpServer == nil {
		return nil, fmt.Errorf("mcp server is required")
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	allowedOrigins, err := middleware.ValidateAllowedOrigins(cfg.AllowedOrigins)
	if err != nil {
		return nil, fmt.Errorf("invalid allowed origins: %w", err)
	}
	if sc.Provider() != nil {
		if err := validateHTTPSRequirement(sc.Config().BaseURL); err != nil {
			return nil, err
		}
	}

	s := &OAuthHTTPServer{
		sc:            sc,
		mcpServer:     mcpServer,
		endpointPath:  cfg.EndpointPath,
		healthChecker: NewHealthChecker(sc),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)
	s.healthChecker.RegisterHealthEndpoints(mux)

	var handler http.Handler = mux
	handler = middleware.MaxRequestSize(DefaultMaxRequestBody)(handler)
	handler = middleware.HTTPMetrics(sc.InstrumentationProvider())(handler)
	handler = middleware.SecurityHeaders(middleware.SecurityHeadersConfig{EnableHSTS: cfg.EnableHSTS})(handler)
	if len(allowedOrigins) > 0 {
		handler = middleware.CORS(allowedOrigins)(handler)
	}

	s.httpServer = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: DefaultReadHeaderTimeout,
		WriteTimeout:      DefaultWriteTimeout,
		IdleTimeout:       DefaultIdleTimeout,
	}

	return s, nil
}

// HealthChecker exposes the server's health checker so callers can mark
// readiness once startup completes.
func (s *OAuthHTTPServer) HealthChecker() *HealthChecker {
	return s.healthChecker
}

// Handler returns the fully wrapped HTTP handler. Exposed for tests.
func (s *OAuthHTTPServer) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens on addr and serves until the listener fails or Shutdown is
// called. It blocks.
func (s *OAuthHTTPServer) Start(addr string) error {
	s.httpServer.Addr = addr
	s.healthChecker.SetReady(true)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *OAuthHTTPServer) Shutdown(ctx context.Context) error {
	s.healthChecker.SetReady(false)
	return s.httpServer.Shutdown(ctx)
}

func (s *OAuthHTTPServer) registerRoutes(mux *http.ServeMux) {
	streamable := mcpserver.NewStreamableHTTPServer(s.mcpServer,
		mcpserver.WithEndpointPath(s.endpointPath),
	)
	mux.Handle(s.endpointPath, Authenticate(s.sc)(streamable))

	provider := s.sc.Provider()
	if provider == nil {
		return
	}

	mux.HandleFunc("GET /.well-known/oauth-authorization-server", s.handleAuthServerMetadata)
	mux.HandleFunc("GET /.well-known/oauth-protected-resource", s.handleProtectedResourceMetadata)
	mux.HandleFunc("GET /oauth/authorize", s.handleAuthorize)
	mux.HandleFunc("POST /oauth/token", s.handleToken)

	if _, ok := provider.ClientsStore().(ory.ClientRegistrar); ok {
		mux.HandleFunc("POST /oauth/register", s.handleRegister)
	}
	if _, ok := provider.(ory.TokenRevoker); ok {
		mux.HandleFunc("POST /oauth/revoke", s.handleRevoke)
	}
}

// authServerMetadata is the RFC 8414 authorization server metadata document.
type authServerMetadata struct {
	Issuer                        string   `json:"issuer"`
	AuthorizationEndpoint         string   `json:"authorization_endpoint"`
	TokenEndpoint                 string   `json:"token_endpoint"`
	RegistrationEndpoint          string   `json:"registration_endpoint,omitempty"`
	RevocationEndpoint            string   `json:"revocation_endpoint,omitempty"`
	ResponseTypesSupported        []string `json:"response_types_supported"`
	GrantTypesSupported           []string `json:"grant_types_supported"`
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported"`
	TokenEndpointAuthMethods      []string `json:"token_endpoint_auth_methods_supported"`
}

func (s *OAuthHTTPServer) handleAuthServerMetadata(w http.ResponseWriter, r *http.Request) {
	base := strings.TrimSuffix(s.sc.Config().BaseURL, "/")
	provider := s.sc.Provider()

	meta := authServerMetadata{
		Issuer:                        base,
		AuthorizationEndpoint:         base + "/oauth/authorize",
		TokenEndpoint:                 base + "/oauth/token",
		ResponseTypesSupported:        []string{"code"},
		GrantTypesSupported:           []string{"authorization_code", "refresh_token"},
		CodeChallengeMethodsSupported: []string{"S256"},
		TokenEndpointAuthMethods:      []string{"none", "client_secret_post"},
	}
	if _, ok := provider.ClientsStore().(ory.ClientRegistrar); ok {
		meta.RegistrationEndpoint = base + "/oauth/register"
	}
	if _, ok := provider.(ory.TokenRevoker); ok {
		meta.RevocationEndpoint = base + "/oauth/revoke"
	}

	writeJSON(w, http.StatusOK, meta)
}

// protectedResourceMetadata is the RFC 9728 protected resource metadata
// document clients use to discover the authorization server.
type protectedResourceMetadata struct {
	Resource             string   `json:"resource"`
	AuthorizationServers []string `json:"authorization_servers"`
	BearerMethods        []string `json:"bearer_methods_supported"`
}

func (s *OAuthHTTPServer) handleProtectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	base := strings.TrimSuffix(s.sc.Config().BaseURL, "/")
	writeJSON(w, http.StatusOK, protectedResourceMetadata{
		Resource:             base,
		AuthorizationServers: []string{base},
		BearerMethods:        []string{"header"},
	})
}

func (s *OAuthHTTPServer) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	clientID := q.Get("client_id")
	params := ory.AuthorizationParams{
		RedirectURI:   q.Get("redirect_uri"),
		CodeChallenge: q.Get("code_challenge"),
		Scopes:        ory.SplitScopes(q.Get("scope")),
		State:         q.Get("state"),
	}

	if clientID == "" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "client_id is required")
		return
	}
	if params.CodeChallenge == "" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "code_challenge is required")
		return
	}
	if method := q.Get("code_challenge_method"); method != "" && method != "S256" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "only the S256 code_challenge_method is supported")
		return
	}

	provider := s.sc.Provider()
	client, err := provider.ClientsStore().GetClient(r.Context(), clientID)
	if err != nil {
		s.sc.Logger().Error("authorize: client lookup failed", "error", err)
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "failed to look up client")
		return
	}
	if client == nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_client", "unknown client_id")
		return
	}
	if params.RedirectURI != "" && !clientHasRedirectURI(client, params.RedirectURI) {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "redirect_uri is not registered for this client")
		return
	}

	if err := provider.Authorize(client, params, w, r); err != nil {
		s.sc.Logger().Error("authorize failed", "error", err, "client_id", clientID)
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "authorization request failed")
	}
}

func (s *OAuthHTTPServer) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}

	grantType := r.PostFormValue("grant_type")
	clientID := r.PostFormValue("client_id")
	if clientID == "" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "client_id is required")
		return
	}

	provider := s.sc.Provider()
	client, err := provider.ClientsStore().GetClient(r.Context(), clientID)
	if err != nil {
		s.sc.Logger().Error("token: client lookup failed", "error", err)
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "failed to look up client")
		return
	}
	if client == nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_client", "unknown client_id")
		return
	}

	switch grantType {
	case "authorization_code":
		s.handleAuthorizationCodeGrant(w, r, client)
	case "refresh_token":
		s.handleRefreshTokenGrant(w, r, client)
	default:
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type",
			fmt.Sprintf("grant_type %q is not supported", grantType))
	}
}

func (s *OAuthHTTPServer) handleAuthorizationCodeGrant(w http.ResponseWriter, r *http.Request, client *ory.ClientInformation) {
	code := r.PostFormValue("code")
	verifier := r.PostFormValue("code_verifier")
	if code == "" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "code is required")
		return
	}
	if verifier == "" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "code_verifier is required")
		return
	}

	provider := s.sc.Provider()
	if !provider.SkipLocalPKCEValidation() {
		challenge, err := provider.ChallengeForAuthorizationCode(r.Context(), client, code)
		if err != nil {
			s.sc.Logger().Error("token: challenge lookup failed", "error", err)
			writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "authorization code is invalid")
			return
		}
		if challenge != "" && !ory.VerifyPKCEChallenge(challenge, verifier) {
			writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "PKCE verification failed")
			return
		}
	}

	tokens, err := provider.ExchangeAuthorizationCode(r.Context(), client, code, verifier)
	if err != nil {
		s.sc.Logger().Error("token: code exchange failed", "error", err, "client_id", client.ClientID)
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "authorization code exchange failed")
		return
	}
	writeTokens(w, tokens)
}

func (s *OAuthHTTPServer) handleRefreshTokenGrant(w http.ResponseWriter, r *http.Request, client *ory.ClientInformation) {
	refreshToken := r.PostFormValue("refresh_token")
	if refreshToken == "" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}
	scopes := ory.SplitScopes(r.PostFormValue("scope"))

	tokens, err := s.sc.Provider().ExchangeRefreshToken(r.Context(), client, refreshToken, scopes)
	if err != nil {
		s.sc.Logger().Error("token: refresh failed", "error", err, "client_id", client.ClientID)
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "refresh token exchange failed")
		return
	}
	writeTokens(w, tokens)
}

func (s *OAuthHTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	registrar, ok := s.sc.Provider().ClientsStore().(ory.ClientRegistrar)
	if !ok {
		writeOAuthError(w, http.StatusNotFound, "invalid_request", "client registration is not supported")
		return
	}

	var info ory.ClientInformation
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_client_metadata", "malformed client metadata")
		return
	}
	if len(info.RedirectURIs) == 0 {
		writeOAuthError(w, http.StatusBadRequest, "invalid_client_metadata", "redirect_uris is required")
		return
	}

	registered, err := registrar.RegisterClient(r.Context(), &info)
	if err != nil {
		s.sc.Logger().Error("client registration failed", "error", err)
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "client registration failed")
		return
	}
	writeJSON(w, http.StatusCreated, registered)
}

func (s *OAuthHTTPServer) handleRevoke(w http.ResponseWriter, r *http.Request) {
	revoker, ok := s.sc.Provider().(ory.TokenRevoker)
	if !ok {
		writeOAuthError(w, http.StatusNotFound, "invalid_request", "token revocation is not supported")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}

	token := r.PostFormValue("token")
	if token == "" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "token is required")
		return
	}
	// client_id is optional: RFC 7009 permits public revocation requests.
	// A client_id that is present but unknown is rejected instead of being
	// silently downgraded to a public request.
	clientID := r.PostFormValue("client_id")
	var client *ory.ClientInformation
	if clientID != "" {
		var err error
		client, err = s.sc.Provider().ClientsStore().GetClient(r.Context(), clientID)
		if err != nil {
			s.sc.Logger().Error("revoke: client lookup failed", "error", err)
			writeOAuthError(w, http.StatusInternalServerError, "server_error", "failed to look up client")
			return
		}
		if client == nil {
			writeOAuthError(w, http.StatusBadRequest, "invalid_client", "unknown client_id")
			return
		}
	}

	req := ory.RevocationRequest{
		Token:         token,
		TokenTypeHint: r.PostFormValue("token_type_hint"),
	}
	if err := revoker.RevokeToken(r.Context(), client, req); err != nil {
		s.sc.Logger().Error("token revocation failed", "error", err)
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "token revocation failed")
		return
	}
	// RFC 7009 returns 200 with an empty body regardless of whether the
	// token existed.
	w.WriteHeader(http.StatusOK)
}

func clientHasRedirectURI(client *ory.ClientInformation, uri string) bool {
	for _, registered := range client.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

func writeTokens(w http.ResponseWriter, tokens *ory.Tokens) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, http.StatusOK, tokens)
}

type oauthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func writeOAuthError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, oauthError{Error: code, ErrorDescription: description})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// validateHTTPSRequirement rejects non-HTTPS base URLs. Plain HTTP is only
// allowed for loopback hosts so local development keeps working.
func validateHTTPSRequirement(baseURL string) error {
	if baseURL == "" {
		return fmt.Errorf("base URL is required when OAuth is enabled")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		return nil
	case "http":
		host := u.Hostname()
		if host == "localhost" || host == "127.0.0.1" || host == "::1" {
			return nil
		}
		return fmt.Errorf("base URL must use HTTPS (got %q); plain HTTP is only allowed for localhost", baseURL)
	default:
		return fmt.Errorf("base URL must use HTTPS (got scheme %q)", u.Scheme)
	}
}
