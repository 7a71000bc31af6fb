// Package logging provides structured logging utilities for the mcp-ory application.
//
// This package centralizes logging patterns to ensure consistent, structured logging
// throughout the codebase using the standard library's slog package.
//
// # Key Features
//
//   - Structured logging with slog
//   - PII sanitization (identifier anonymization, token masking)
//   - Host/URL sanitization for security
//   - Consistent attribute naming across the codebase
//
// # Usage Patterns
//
// Create a logger with standard attributes:
//
//	logger := logging.WithOperation(slog.Default(), "verify_access_token")
//	logger.Info("token verified",
//	    logging.ClientID(clientID),
//	    logging.Status(logging.StatusSuccess))
//
// Sanitize sensitive data before logging:
//
//	logger.Info("session verified",
//	    logging.IdentityHash(identifier),
//	    logging.Token(sessionToken))
//
// # Security Considerations
//
// This package is designed with security in mind:
//   - Identity identifiers are hashed to prevent PII leakage while allowing correlation
//   - Backend URLs have IP addresses redacted to prevent topology leakage
//   - Credentials and tokens are never logged directly
package logging
