package ory

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ProviderType selects the backend flavor the provider proxies to.
type ProviderType string

const (
	// ProviderTypeNetwork is a hosted Ory Network project.
	ProviderTypeNetwork ProviderType = "network"

	// ProviderTypeHydra is a self-hosted Ory Hydra instance.
	ProviderTypeHydra ProviderType = "hydra"
)

// defaultHTTPTimeout bounds every backend call. The adapter performs no
// retries; a timeout is terminal for that call.
const defaultHTTPTimeout = 30 * time.Second

// Config holds the provider configuration. Exactly one credential pair must
// be populated, matching ProviderType; the mismatch is rejected with a
// ConfigError at construction, before any network call.
type Config struct {
	// ProviderType selects the backend flavor: "network" or "hydra".
	ProviderType ProviderType

	// Endpoints are the OAuth endpoint URLs of the backend.
	Endpoints Endpoints

	// NetworkProjectURL and NetworkProjectAPIKey configure the Ory Network
	// backend. Required when ProviderType is "network".
	NetworkProjectURL    string
	NetworkProjectAPIKey string

	// HydraAdminURL and HydraAPIKey configure the Ory Hydra backend.
	// Required when ProviderType is "hydra".
	HydraAdminURL string
	HydraAPIKey   string

	// HTTPClient is the client used for backend calls. When nil a client
	// with a 30s timeout is used.
	HTTPClient *http.Client

	// Logger receives structured debug/error logs. When nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// backend is the resolved backend: one admin base URL plus the auth-header
// conventions for that flavor. It is computed once at construction and
// consumed uniformly by every backend call site.
type backend struct {
	providerType ProviderType
	adminBase    string
	apiKey       string
}

// resolveBackend validates the credential pair matching cfg.ProviderType and
// returns the resolved backend.
func resolveBackend(cfg Config) (backend, error) {
	switch cfg.ProviderType {
	case ProviderTypeNetwork:
		if cfg.NetworkProjectURL == "" || cfg.NetworkProjectAPIKey == "" {
			return backend{}, &ConfigError{
				Reason: "provider type \"network\" requires networkProjectUrl and networkProjectApiKey",
			}
		}
		return backend{
			providerType: ProviderTypeNetwork,
			adminBase:    strings.TrimRight(cfg.NetworkProjectURL, "/"),
			apiKey:       cfg.NetworkProjectAPIKey,
		}, nil
	case ProviderTypeHydra:
		if cfg.HydraAdminURL == "" || cfg.HydraAPIKey == "" {
			return backend{}, &ConfigError{
				Reason: "provider type \"hydra\" requires hydraAdminUrl and hydraApiKey",
			}
		}
		return backend{
			providerType: ProviderTypeHydra,
			adminBase:    strings.TrimRight(cfg.HydraAdminURL, "/"),
			apiKey:       cfg.HydraAPIKey,
		}, nil
	default:
		return backend{}, &ConfigError{
			Reason: fmt.Sprintf("unknown provider type %q (want \"network\" or \"hydra\")", cfg.ProviderType),
		}
	}
}

// clientsURL is the admin endpoint listing all registered OAuth clients.
func (b backend) clientsURL() string {
	return b.adminBase + "/admin/clients"
}

// introspectionURL is the admin endpoint for token introspection.
func (b backend) introspectionURL() string {
	return b.adminBase + "/admin/oauth2/introspect"
}

// adminAuthorization returns the Authorization header value for admin API
// calls. Both flavors accept a Bearer API key here.
func (b backend) adminAuthorization() string {
	return "Bearer " + b.apiKey
}

// introspectionAuthorization returns the Authorization header value for the
// introspection endpoint. Hydra expects the API key Basic-encoded while Ory
// Network takes the same Bearer key as the other admin calls. The asymmetry
// follows each backend's auth convention and is intentional.
func (b backend) introspectionAuthorization() string {
	if b.providerType == ProviderTypeHydra {
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(b.apiKey))
	}
	return "Bearer " + b.apiKey
}
