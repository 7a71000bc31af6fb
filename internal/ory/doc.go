// Package ory implements the authorization-server side of the MCP OAuth 2.1
// contract by proxying to an Ory backend.
//
// The package supports two backend flavors:
//
//   - Ory Network: a hosted project, addressed via the project base URL and
//     authenticated with a project API key (Bearer).
//   - Ory Hydra: a self-hosted instance, addressed via the admin base URL and
//     authenticated with an API key (Basic for token introspection).
//
// The provider is a stateless proxy. It never stores clients, codes, or
// tokens; every operation issues fresh HTTP calls against the configured
// backend and validates the response body before handing it to the caller.
// PKCE verifiers are validated by the backend during code exchange, which is
// why ChallengeForAuthorizationCode intentionally returns an empty challenge
// and SkipLocalPKCEValidation reports true.
//
// Capabilities that depend on optional endpoint configuration (dynamic client
// registration, token revocation) are structurally absent when the matching
// URL is not configured: the value returned by New only satisfies the
// ClientRegistrar and TokenRevoker interfaces when the corresponding
// endpoint is set.
//
// Example usage:
//
//	provider, err := ory.New(ory.Config{
//	    ProviderType: ory.ProviderTypeNetwork,
//	    Endpoints: ory.Endpoints{
//	        AuthorizationURL: "https://project.projects.oryapis.com/oauth2/auth",
//	        TokenURL:         "https://project.projects.oryapis.com/oauth2/token",
//	    },
//	    NetworkProjectURL:    "https://project.projects.oryapis.com",
//	    NetworkProjectAPIKey: os.Getenv("ORY_PROJECT_API_KEY"),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	info, err := provider.VerifyAccessToken(ctx, token)
package ory
