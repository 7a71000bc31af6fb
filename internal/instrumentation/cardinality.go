package instrumentation

import (
	"strconv"
	"strings"
)

// Cardinality management helpers for metrics.
// These functions reduce high-cardinality label values to prevent metrics explosion.
//
// # Warning
//
// High cardinality in metrics can cause:
// - Increased memory usage in Prometheus/metrics backends
// - Slower query performance
// - Higher storage costs
//
// Always use these helpers when recording metrics with status codes, client
// identifiers, or identity identifiers.

// ClassifyStatusCode collapses an HTTP status code into its class ("2xx",
// "3xx", "4xx", "5xx"). Backend status codes vary per deployment and per
// upstream, so metrics record the class instead of the raw code.
//
// Codes outside the 100-599 range are classified as "unknown".
//
// # Examples
//
//	ClassifyStatusCode(200) // "2xx"
//	ClassifyStatusCode(302) // "3xx"
//	ClassifyStatusCode(401) // "4xx"
//	ClassifyStatusCode(503) // "5xx"
//	ClassifyStatusCode(0)   // "unknown"
func ClassifyStatusCode(code int) string {
	if code < 100 || code > 599 {
		return StatusUnknown
	}
	return strconv.Itoa(code/100) + "xx"
}

// ExtractIdentifierDomain extracts the domain part from an email-shaped
// identifier. This reduces cardinality by using the domain instead of the
// full identifier.
//
// Example:
//
//	ExtractIdentifierDomain("jane@giantswarm.io")  // "giantswarm.io"
//	ExtractIdentifierDomain("user@example.com")    // "example.com"
//	ExtractIdentifierDomain("not-an-email")        // "unknown"
//	ExtractIdentifierDomain("")                    // "unknown"
func ExtractIdentifierDomain(identifier string) string {
	if identifier == "" {
		return "unknown"
	}

	parts := strings.Split(identifier, "@")
	if len(parts) == 2 && parts[1] != "" {
		return parts[1]
	}

	return "unknown"
}
