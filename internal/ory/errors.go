package ory

import (
	"errors"
	"fmt"
)

// Semantic errors: the backend call succeeded but the business rule failed.
var (
	// ErrTokenNotActive is returned by VerifyAccessToken when introspection
	// reports the token as inactive. The client-list lookup is skipped.
	ErrTokenNotActive = errors.New("token not active")

	// ErrClientIDMismatch is returned by VerifyAccessToken when the
	// introspected client_id does not match any registered client.
	ErrClientIDMismatch = errors.New("client ID mismatch")

	// ErrClientRedirectURIRequired is returned by the token-exchange
	// operations when the client has no registered redirect URI.
	ErrClientRedirectURIRequired = errors.New("client has no registered redirect URI")
)

// ConfigError indicates that a required backend URL or credential is missing
// for the selected provider type. It is raised before any network call.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "ory: configuration error: " + e.Reason
}

// BackendError indicates a non-2xx HTTP response from a backend call. It
// always carries both the numeric status code and the status text; call sites
// embed both in the message so that callers matching on either find it.
type BackendError struct {
	// Operation is a short human-readable description of the failed call,
	// e.g. "Token exchange failed".
	Operation string

	// StatusCode is the numeric HTTP status code.
	StatusCode int

	// Status is the HTTP status line, e.g. "401 Unauthorized".
	Status string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %d (%s)", e.Operation, e.StatusCode, e.Status)
}

// ValidationError indicates that a backend response body failed schema
// validation (malformed client or token payload).
type ValidationError struct {
	Subject string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ory: invalid %s in backend response: %v", e.Subject, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
