// Package identity talks to the Ory identities admin API. It backs the
// create-on-first-sight behavior of the JWT authenticator: a validated claim
// is looked up as a credentials identifier and a new identity is created the
// first time the identifier is seen.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/giantswarm/mcp-ory/internal/logging"
)

// DefaultSchemaID is the identity schema used for identities created on
// first sight when no schema is configured.
const DefaultSchemaID = "default"

// DefaultTraitKey is the trait the identifier is stored under when creating
// an identity on first sight.
const DefaultTraitKey = "email"

const defaultHTTPTimeout = 30 * time.Second

// ErrMissingProjectURL is returned by NewClient when no project URL is set.
var ErrMissingProjectURL = errors.New("identity: project URL is required")

// ErrMissingAPIKey is returned by NewClient when no API key is set.
var ErrMissingAPIKey = errors.New("identity: API key is required")

// MetricsRecorder receives a record for every resolution outcome in Ensure.
// The serve command wires in the instrumentation metrics when enabled; a nil
// recorder is a no-op.
type MetricsRecorder interface {
	RecordIdentityResolution(ctx context.Context, result string)
}

// Identity is an Ory identity as returned by the admin API.
type Identity struct {
	ID       string         `json:"id"`
	SchemaID string         `json:"schema_id,omitempty"`
	State    string         `json:"state,omitempty"`
	Traits   map[string]any `json:"traits"`
}

// Config holds the identities admin client configuration.
type Config struct {
	// ProjectURL is the Ory project base URL.
	ProjectURL string

	// APIKey authenticates admin API calls (Bearer).
	APIKey string

	// SchemaID selects the identity schema for created identities.
	// Defaults to DefaultSchemaID.
	SchemaID string

	// TraitKey is the trait the identifier is stored under for created
	// identities. Defaults to DefaultTraitKey.
	TraitKey string

	// HTTPClient is the client used for admin calls. When nil a client with
	// a 30s timeout is used.
	HTTPClient *http.Client

	// Logger receives structured logs. When nil, slog.Default() is used.
	Logger *slog.Logger

	// Metrics records resolution outcomes. Optional.
	Metrics MetricsRecorder
}

// Client is an Ory identities admin API client.
type Client struct {
	projectURL string
	apiKey     string
	schemaID   string
	traitKey   string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    MetricsRecorder

	// ensureGroup dedupes concurrent Ensure calls for the same identifier,
	// so a burst of first requests creates at most one identity.
	ensureGroup singleflight.Group
}

// NewClient validates cfg and returns the client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.ProjectURL == "" {
		return nil, ErrMissingProjectURL
	}
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	schemaID := cfg.SchemaID
	if schemaID == "" {
		schemaID = DefaultSchemaID
	}
	traitKey := cfg.TraitKey
	if traitKey == "" {
		traitKey = DefaultTraitKey
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		projectURL: strings.TrimRight(cfg.ProjectURL, "/"),
		apiKey:     cfg.APIKey,
		schemaID:   schemaID,
		traitKey:   traitKey,
		httpClient: httpClient,
		logger:     logger,
		metrics:    cfg.Metrics,
	}, nil
}

// GetByIdentifier returns the identity holding the given credentials
// identifier, or nil (and no error) when none exists.
func (c *Client) GetByIdentifier(ctx context.Context, identifier string) (*Identity, error) {
	endpoint := c.projectURL + "/admin/identities?credentials_identifier=" + url.QueryEscape(identifier)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build identity lookup request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity lookup request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to fetch identities: %s", resp.Status)
	}

	var identities []Identity
	if err := json.NewDecoder(resp.Body).Decode(&identities); err != nil {
		return nil, fmt.Errorf("invalid identity list in response: %w", err)
	}
	if len(identities) == 0 {
		return nil, nil
	}
	return &identities[0], nil
}

// Create creates a new identity with the given traits.
func (c *Client) Create(ctx context.Context, traits map[string]any) (*Identity, error) {
	body, err := json.Marshal(map[string]any{
		"schema_id": c.schemaID,
		"traits":    traits,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode identity: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.projectURL+"/admin/identities", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build identity create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity create request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to create identity: %s", resp.Status)
	}

	var created Identity
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("invalid identity in response: %w", err)
	}
	return &created, nil
}

// Ensure returns the identity holding the given identifier, creating it on
// first sight. Deduped calls share a single resolution record.
func (c *Client) Ensure(ctx context.Context, identifier string) (*Identity, error) {
	result, err, _ := c.ensureGroup.Do(identifier, func() (any, error) {
		existing, err := c.GetByIdentifier(ctx, identifier)
		if err != nil {
			c.recordResolution(ctx, "error")
			return nil, err
		}
		if existing != nil {
			c.recordResolution(ctx, "found")
			return existing, nil
		}

		c.logger.Info("creating identity on first sight",
			logging.Operation("ensure_identity"),
			logging.IdentityHash(identifier))

		created, err := c.Create(ctx, map[string]any{c.traitKey: identifier})
		if err != nil {
			c.recordResolution(ctx, "error")
			return nil, err
		}
		c.recordResolution(ctx, "created")
		return created, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*Identity), nil
}

func (c *Client) recordResolution(ctx context.Context, result string) {
	if c.metrics != nil {
		c.metrics.RecordIdentityResolution(ctx, result)
	}
}
