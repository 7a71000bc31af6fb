package ory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/giantswarm/mcp-ory/internal/logging"
)

// DefaultScopes is substituted when an authorization request carries no
// scopes of its own.
var DefaultScopes = []string{"ory.admin"}

// stateLength is the number of random bytes in a generated state value.
// The value is hex-encoded before use, yielding 64 characters.
const stateLength = 32

// ClientsStore reads registered OAuth client information from the backend.
type ClientsStore interface {
	// GetClient returns the client with the given ID, or nil (and no error)
	// when the backend does not know it.
	GetClient(ctx context.Context, clientID string) (*ClientInformation, error)
}

// ClientRegistrar is the optional dynamic client registration capability
// (RFC 7591). The store returned by ClientsStore implements it only when a
// registration URL is configured.
type ClientRegistrar interface {
	RegisterClient(ctx context.Context, client *ClientInformation) (*ClientInformation, error)
}

// TokenRevoker is the optional token revocation capability (RFC 7009). The
// provider returned by New implements it only when a revocation URL is
// configured.
type TokenRevoker interface {
	RevokeToken(ctx context.Context, client *ClientInformation, req RevocationRequest) error
}

// ServerProvider is the authorization-server contract an OAuth-consuming MCP
// transport expects. All methods proxy to the configured Ory backend.
type ServerProvider interface {
	// ClientsStore returns the client registry. The returned store also
	// implements ClientRegistrar when dynamic registration is configured.
	ClientsStore() ClientsStore

	// Authorize starts the authorization-code flow by issuing a 302 redirect
	// to the backend's authorization endpoint. No network call is made.
	Authorize(client *ClientInformation, params AuthorizationParams, w http.ResponseWriter, r *http.Request) error

	// ChallengeForAuthorizationCode returns the PKCE challenge recorded for
	// an authorization code. In proxy mode the backend validates the
	// verifier during code exchange, so this always returns "".
	ChallengeForAuthorizationCode(ctx context.Context, client *ClientInformation, authorizationCode string) (string, error)

	// ExchangeAuthorizationCode exchanges an authorization code (plus
	// optional PKCE verifier) for tokens.
	ExchangeAuthorizationCode(ctx context.Context, client *ClientInformation, authorizationCode, codeVerifier string) (*Tokens, error)

	// ExchangeRefreshToken exchanges a refresh token for fresh tokens,
	// optionally narrowing to the given scopes.
	ExchangeRefreshToken(ctx context.Context, client *ClientInformation, refreshToken string, scopes []string) (*Tokens, error)

	// VerifyAccessToken introspects a token and resolves its client.
	VerifyAccessToken(ctx context.Context, token string) (*AuthInfo, error)

	// SkipLocalPKCEValidation reports whether the consuming transport must
	// skip its own PKCE verifier check. Always true for this provider: the
	// backend validates the verifier, and checking twice would reject valid
	// exchanges.
	SkipLocalPKCEValidation() bool
}

// MetricsRecorder receives a record for every backend HTTP call. The server
// wires in the instrumentation metrics when enabled; a nil recorder is a
// no-op.
type MetricsRecorder interface {
	RecordBackendRequest(ctx context.Context, operation string, statusCode int, duration time.Duration)
}

// Provider proxies the OAuth server contract to an Ory backend. Construct it
// with New. The zero value is not usable.
//
// Provider holds only immutable configuration; concurrent calls are safe and
// fully independent of each other.
type Provider struct {
	endpoints  Endpoints
	backend    backend
	httpClient *http.Client
	logger     *slog.Logger
	metrics    MetricsRecorder
	store      ClientsStore
}

// revocableProvider adds the RevokeToken capability on top of Provider. It
// exists as a separate type so that the capability is structurally absent
// from providers constructed without a revocation URL.
type revocableProvider struct {
	*Provider
}

var (
	_ ServerProvider = (*Provider)(nil)
	_ TokenRevoker   = (*revocableProvider)(nil)
)

// New validates cfg, resolves the backend once, and returns the provider.
// The result implements TokenRevoker only when cfg.Endpoints.RevocationURL
// is set.
func New(cfg Config) (ServerProvider, error) {
	if err := cfg.Endpoints.validate(); err != nil {
		return nil, err
	}
	b, err := resolveBackend(cfg)
	if err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Provider{
		endpoints:  cfg.Endpoints,
		backend:    b,
		httpClient: httpClient,
		logger:     logger.With(slog.String(logging.KeyProviderType, string(b.providerType))),
	}

	var store ClientsStore = &clientsStore{provider: p}
	if cfg.Endpoints.RegistrationURL != "" {
		store = &registrarStore{clientsStore{provider: p}}
	}
	p.store = store

	if cfg.Endpoints.RevocationURL != "" {
		return &revocableProvider{p}, nil
	}
	return p, nil
}

// SetMetrics attaches a metrics recorder for backend calls. Call it before
// serving traffic; the provider does not synchronize access to the recorder.
func (p *Provider) SetMetrics(rec MetricsRecorder) {
	p.metrics = rec
}

// ClientsStore returns the backend-backed client registry.
func (p *Provider) ClientsStore() ClientsStore {
	return p.store
}

// SkipLocalPKCEValidation reports true: the backend performs the PKCE
// verifier check during code exchange.
func (p *Provider) SkipLocalPKCEValidation() bool {
	return true
}

// Authorize builds the authorization URL and issues a 302 redirect.
//
// A missing state is replaced with a fresh 32-byte random value
// (hex-encoded); empty scopes are replaced with DefaultScopes. The PKCE
// method is fixed to S256; a plaintext challenge is never emitted.
func (p *Provider) Authorize(client *ClientInformation, params AuthorizationParams, w http.ResponseWriter, r *http.Request) error {
	state := params.State
	if state == "" {
		var err error
		state, err = generateState()
		if err != nil {
			return fmt.Errorf("failed to generate state: %w", err)
		}
	}

	scopes := params.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}

	u, err := url.Parse(p.endpoints.AuthorizationURL)
	if err != nil {
		return fmt.Errorf("invalid authorization URL: %w", err)
	}

	q := u.Query()
	q.Set("client_id", client.ClientID)
	q.Set("response_type", "code")
	q.Set("redirect_uri", params.RedirectURI)
	q.Set("code_challenge", params.CodeChallenge)
	q.Set("code_challenge_method", "S256")
	q.Set("state", state)
	if len(scopes) > 0 {
		q.Set("scope", strings.Join(scopes, " "))
	}
	u.RawQuery = q.Encode()

	p.logger.Debug("redirecting to authorization endpoint",
		logging.Operation("authorize"),
		slog.String(logging.KeyClientID, client.ClientID))

	http.Redirect(w, r, u.String(), http.StatusFound)
	return nil
}

// ChallengeForAuthorizationCode always returns an empty challenge: the code
// verifier is validated by the backend during code exchange, never locally.
func (p *Provider) ChallengeForAuthorizationCode(_ context.Context, _ *ClientInformation, _ string) (string, error) {
	return "", nil
}

// ExchangeAuthorizationCode exchanges an authorization code for tokens at
// the backend's token endpoint.
func (p *Provider) ExchangeAuthorizationCode(ctx context.Context, client *ClientInformation, authorizationCode, codeVerifier string) (*Tokens, error) {
	if len(client.RedirectURIs) == 0 {
		return nil, ErrClientRedirectURIRequired
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", client.ClientID)
	form.Set("code", authorizationCode)
	form.Set("redirect_uri", client.RedirectURIs[0])
	if client.ClientSecret != "" {
		form.Set("client_secret", client.ClientSecret)
	}
	if codeVerifier != "" {
		form.Set("code_verifier", codeVerifier)
	}

	return p.tokenRequest(ctx, "exchange_authorization_code", form)
}

// ExchangeRefreshToken exchanges a refresh token for fresh tokens.
func (p *Provider) ExchangeRefreshToken(ctx context.Context, client *ClientInformation, refreshToken string, scopes []string) (*Tokens, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", client.ClientID)
	form.Set("refresh_token", refreshToken)
	if client.ClientSecret != "" {
		form.Set("client_secret", client.ClientSecret)
	}
	if len(scopes) > 0 {
		form.Set("scope", strings.Join(scopes, " "))
	}

	return p.tokenRequest(ctx, "exchange_refresh_token", form)
}

// tokenRequest posts a form to the token endpoint and decodes the response.
func (p *Provider) tokenRequest(ctx context.Context, operation string, form url.Values) (*Tokens, error) {
	resp, err := p.postForm(ctx, operation, p.endpoints.TokenURL, form, "")
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &BackendError{
			Operation:  "Token exchange failed",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}

	var tokens Tokens
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, &ValidationError{Subject: "token response", Err: err}
	}
	if err := tokens.Validate(); err != nil {
		return nil, &ValidationError{Subject: "token response", Err: err}
	}
	return &tokens, nil
}

// VerifyAccessToken introspects the token at the backend and, when active,
// resolves the issuing client from the client registry.
//
// The call makes exactly one backend request when the token is inactive
// (introspection only) and exactly two when it is active (introspection plus
// client-list fetch). There are no retries; every backend failure is
// terminal.
func (p *Provider) VerifyAccessToken(ctx context.Context, token string) (*AuthInfo, error) {
	form := url.Values{}
	form.Set("token", token)
	form.Set("token_type_hint", "access_token")

	resp, err := p.postForm(ctx, "introspect", p.backend.introspectionURL(), form, p.backend.introspectionAuthorization())
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &BackendError{
			Operation:  "Token introspection failed",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}

	var introspection Introspection
	if err := json.NewDecoder(resp.Body).Decode(&introspection); err != nil {
		return nil, &ValidationError{Subject: "introspection response", Err: err}
	}

	if !introspection.Active {
		p.logger.Debug("introspection rejected token",
			logging.Operation("verify_access_token"),
			logging.Token(token))
		return nil, fmt.Errorf("access token rejected: %w", ErrTokenNotActive)
	}

	client, err := p.store.GetClient(ctx, introspection.ClientID)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, fmt.Errorf("introspected client %q is not registered: %w", introspection.ClientID, ErrClientIDMismatch)
	}

	return &AuthInfo{
		Token:     token,
		ClientID:  introspection.ClientID,
		Scopes:    SplitScopes(introspection.Scope),
		ExpiresAt: introspection.Exp,
	}, nil
}

// RevokeToken revokes a token at the backend's revocation endpoint. Only
// available on providers constructed with a revocation URL. A nil client is
// a public revocation request (RFC 7009 permits them): the client_id and
// client_secret form fields are omitted.
func (p *revocableProvider) RevokeToken(ctx context.Context, client *ClientInformation, req RevocationRequest) error {
	form := url.Values{}
	form.Set("token", req.Token)
	if client != nil {
		form.Set("client_id", client.ClientID)
		if client.ClientSecret != "" {
			form.Set("client_secret", client.ClientSecret)
		}
	}
	if req.TokenTypeHint != "" {
		form.Set("token_type_hint", req.TokenTypeHint)
	}

	resp, err := p.postForm(ctx, "revoke", p.endpoints.RevocationURL, form, "")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &BackendError{
			Operation:  "Token revocation failed",
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}
	return nil
}

// postForm issues a form-encoded POST. An empty authorization is omitted
// from the request.
func (p *Provider) postForm(ctx context.Context, operation, endpoint string, form url.Values, authorization string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	return p.do(ctx, operation, req)
}

// do executes a backend request, recording duration metrics and logging the
// outcome. Transport-level failures are wrapped; non-2xx handling stays with
// the caller because the error shape differs per operation.
func (p *Provider) do(ctx context.Context, operation string, req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := p.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		if p.metrics != nil {
			p.metrics.RecordBackendRequest(ctx, operation, 0, duration)
		}
		p.logger.Error("backend request failed",
			logging.Operation(operation),
			logging.Host(req.URL.Host),
			logging.Err(err))
		return nil, fmt.Errorf("%s request failed: %w", operation, err)
	}

	if p.metrics != nil {
		p.metrics.RecordBackendRequest(ctx, operation, resp.StatusCode, duration)
	}
	p.logger.Debug("backend request completed",
		logging.Operation(operation),
		logging.Host(req.URL.Host),
		slog.Int(logging.KeyStatusCode, resp.StatusCode),
		slog.Duration(logging.KeyDuration, duration))
	return resp, nil
}

// generateState returns 32 cryptographically random bytes, hex-encoded.
func generateState() (string, error) {
	buf := make([]byte, stateLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
