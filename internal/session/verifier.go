// Package session validates opaque Ory session tokens by forwarding them to
// the project's session-introspection endpoint (/sessions/whoami). The
// verifier holds no session state of its own; every check is a fresh call.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/giantswarm/mcp-ory/internal/identity"
	"github.com/giantswarm/mcp-ory/internal/logging"
)

const defaultHTTPTimeout = 30 * time.Second

var (
	// ErrMissingProjectURL is returned by NewVerifier when no project URL
	// is set.
	ErrMissingProjectURL = errors.New("session: project URL is required")

	// ErrNoToken is returned when an empty session token is presented.
	ErrNoToken = errors.New("session: no token provided")

	// ErrSessionInvalid is returned when the backend rejects the token.
	ErrSessionInvalid = errors.New("session: invalid session token")

	// ErrSessionInactive is returned when the backend reports the session
	// as not active.
	ErrSessionInactive = errors.New("session: session not active")

	// ErrSessionExpired is returned when the session's expiry has passed.
	ErrSessionExpired = errors.New("session: session expired")
)

// Session is an Ory session as returned by /sessions/whoami.
type Session struct {
	ID        string            `json:"id"`
	Active    bool              `json:"active"`
	ExpiresAt time.Time         `json:"expires_at"`
	Identity  identity.Identity `json:"identity"`
}

// Config holds the session verifier configuration.
type Config struct {
	// ProjectURL is the Ory project base URL.
	ProjectURL string

	// HTTPClient is the client used for whoami calls. When nil a client
	// with a 30s timeout is used.
	HTTPClient *http.Client

	// Logger receives structured logs. When nil, slog.Default() is used.
	Logger *slog.Logger
}

// Verifier validates opaque session tokens against the Ory project.
type Verifier struct {
	projectURL string
	httpClient *http.Client
	logger     *slog.Logger

	// now is swapped in tests to control expiry checks.
	now func() time.Time
}

// NewVerifier validates cfg and returns the verifier.
func NewVerifier(cfg Config) (*Verifier, error) {
	if cfg.ProjectURL == "" {
		return nil, ErrMissingProjectURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Verifier{
		projectURL: strings.TrimRight(cfg.ProjectURL, "/"),
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Verify forwards the token to the whoami endpoint and returns the session
// when it is active and unexpired.
func (v *Verifier) Verify(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrNoToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.projectURL+"/sessions/whoami", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build whoami request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Session-Token", token)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whoami request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		v.logger.Debug("session token rejected",
			logging.Operation("verify_session"),
			logging.Token(token))
		return nil, ErrSessionInvalid
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("session introspection failed: %s", resp.Status)
	}

	var sess Session
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		return nil, fmt.Errorf("invalid session in response: %w", err)
	}

	if !sess.Active {
		return nil, ErrSessionInactive
	}
	if !sess.ExpiresAt.IsZero() && sess.ExpiresAt.Before(v.now()) {
		return nil, ErrSessionExpired
	}
	return &sess, nil
}
