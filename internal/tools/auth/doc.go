// Package authtools implements MCP tools for inspecting the authentication
// and authorization state of the server: the current principal, OAuth clients
// and tokens in the Ory backend, session tokens, and Ory identities.
//
// Tool availability follows the configured backend. Token revocation is only
// usable when the backend exposes a revocation endpoint, and session or
// identity tools require the corresponding Ory clients to be configured.
package authtools
