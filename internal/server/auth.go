package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/giantswarm/mcp-ory/internal/instrumentation"
)

// sessionTokenHeader carries opaque Ory session tokens on inbound requests.
const sessionTokenHeader = "X-Session-Token"

// requestIDHeader carries the request correlation ID.
const requestIDHeader = "X-Request-Id"

// PrincipalKind describes how a request was authenticated.
type PrincipalKind string

const (
	// PrincipalKindAccessToken means the request carried an access token
	// verified against the OAuth backend.
	PrincipalKindAccessToken PrincipalKind = "access_token"

	// PrincipalKindJWT means the request carried a JWT validated against
	// the configured JWKS.
	PrincipalKindJWT PrincipalKind = "jwt"

	// PrincipalKindSession means the request carried an Ory session token.
	PrincipalKindSession PrincipalKind = "session"
)

// Principal is the authenticated caller attached to the request context.
type Principal struct {
	Kind PrincipalKind

	// ClientID is set for access-token principals.
	ClientID string

	// Scopes granted to the token, when known.
	Scopes []string

	// IdentityID is the Ory identity ID, set for JWT and session principals.
	IdentityID string
}

type principalContextKey struct{}

// ContextWithPrincipal attaches the principal to the context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext retrieves the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*Principal)
	return p, ok
}

// bearerToken extracts the bearer token from the Authorization header.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// Authenticate returns middleware that authenticates inbound requests against
// the configured authenticators and attaches the resulting Principal to the
// request context.
//
// Bearer tokens are checked against the OAuth backend first, then against the
// JWKS when JWT validation is configured. Opaque session tokens are forwarded
// from the X-Session-Token header. When no authenticator is configured the
// middleware passes every request through.
func Authenticate(sc *ServerContext) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !sc.AuthEnabled() {
				next.ServeHTTP(w, r)
				return
			}

			requestID := r.Header.Get(requestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, requestID)

			principal, err := authenticateRequest(r.Context(), sc, r)
			if err != nil {
				sc.Logger().Debug("authentication failed", "request_id", requestID, "error", err)
				writeUnauthorized(w, sc.Config().BaseURL)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// authenticateRequest tries the configured authenticators in order and
// returns the first principal that verifies.
func authenticateRequest(ctx context.Context, sc *ServerContext, r *http.Request) (*Principal, error) {
	recorder := verificationRecorder(sc)

	if token := bearerToken(r); token != "" {
		var lastErr error

		if provider := sc.Provider(); provider != nil {
			info, err := provider.VerifyAccessToken(ctx, token)
			if err == nil {
				recorder(ctx, instrumentation.VerificationResultActive)
				return &Principal{
					Kind:     PrincipalKindAccessToken,
					ClientID: info.ClientID,
					Scopes:   info.Scopes,
				}, nil
			}
			lastErr = err
		}

		if validator := sc.JWTValidator(); validator != nil {
			ident, err := validator.Authenticate(ctx, token)
			if err == nil {
				recorder(ctx, instrumentation.VerificationResultActive)
				return &Principal{
					Kind:       PrincipalKindJWT,
					IdentityID: ident.ID,
				}, nil
			}
			lastErr = err
		}

		recorder(ctx, instrumentation.VerificationResultError)
		if lastErr != nil {
			return nil, lastErr
		}
	}

	if token := r.Header.Get(sessionTokenHeader); token != "" {
		if verifier := sc.SessionVerifier(); verifier != nil {
			sess, err := verifier.Verify(ctx, token)
			if err != nil {
				recorder(ctx, instrumentation.VerificationResultError)
				return nil, err
			}
			recorder(ctx, instrumentation.VerificationResultActive)
			return &Principal{
				Kind:       PrincipalKindSession,
				IdentityID: sess.Identity.ID,
			}, nil
		}
	}

	return nil, ErrNoCredentials
}

// verificationRecorder returns a function recording token verification
// outcomes, a no-op when instrumentation is disabled.
func verificationRecorder(sc *ServerContext) func(context.Context, string) {
	provider := sc.InstrumentationProvider()
	if provider == nil || !provider.Enabled() {
		return func(context.Context, string) {}
	}
	return func(ctx context.Context, result string) {
		provider.Metrics().RecordTokenVerification(ctx, result)
	}
}

// writeUnauthorized writes an RFC 6750 challenge with a JSON body.
func writeUnauthorized(w http.ResponseWriter, baseURL string) {
	challenge := `Bearer error="invalid_token"`
	if baseURL != "" {
		challenge += `, resource_metadata="` + strings.TrimRight(baseURL, "/") + `/.well-known/oauth-protected-resource"`
	}
	w.Header().Set("WWW-Authenticate", challenge)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             "invalid_token",
		"error_description": "the request lacks valid authentication credentials",
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
	})
}
