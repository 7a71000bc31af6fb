package ory

import "strings"

// Endpoints holds the OAuth endpoint URLs of the backend. AuthorizationURL
// and TokenURL are required. RevocationURL and RegistrationURL are optional;
// leaving one empty structurally removes the matching capability (token
// revocation, dynamic client registration) from the constructed provider.
//
// Endpoints is immutable after construction.
type Endpoints struct {
	AuthorizationURL string
	TokenURL         string
	RevocationURL    string
	RegistrationURL  string
}

// NetworkEndpoints derives the standard OAuth endpoint URLs of an Ory
// Network project from its base URL. All four endpoints are populated;
// callers that want to disable revocation or dynamic registration clear the
// matching field before constructing the provider.
func NetworkEndpoints(projectURL string) Endpoints {
	base := strings.TrimSuffix(projectURL, "/")
	return Endpoints{
		AuthorizationURL: base + "/oauth2/auth",
		TokenURL:         base + "/oauth2/token",
		RevocationURL:    base + "/oauth2/revoke",
		RegistrationURL:  base + "/oauth2/register",
	}
}

// HydraEndpoints derives the standard OAuth endpoint URLs of a self-hosted
// Ory Hydra instance from its public URL. The registration URL is only
// usable when Hydra runs with dynamic client registration enabled.
func HydraEndpoints(publicURL string) Endpoints {
	base := strings.TrimSuffix(publicURL, "/")
	return Endpoints{
		AuthorizationURL: base + "/oauth2/auth",
		TokenURL:         base + "/oauth2/token",
		RevocationURL:    base + "/oauth2/revoke",
		RegistrationURL:  base + "/oauth2/register",
	}
}

// validate reports a ConfigError for a missing required URL.
func (e Endpoints) validate() error {
	if e.AuthorizationURL == "" {
		return &ConfigError{Reason: "endpoints.authorizationUrl is required"}
	}
	if e.TokenURL == "" {
		return &ConfigError{Reason: "endpoints.tokenUrl is required"}
	}
	return nil
}
