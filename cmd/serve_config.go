package cmd

import (
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/giantswarm/mcp-ory/internal/server"
)

// Provider type constants - use ory package values for consistency.
const (
	ProviderTypeNetwork = "network"
	ProviderTypeHydra   = "hydra"
)

// simpleLogger provides basic logging for the server context.
type simpleLogger struct{}

func (l *simpleLogger) Debug(msg string, args ...interface{}) {
	log.Printf("[DEBUG] %s %v", msg, args)
}

func (l *simpleLogger) Info(msg string, args ...interface{}) {
	log.Printf("[INFO] %s %v", msg, args)
}

func (l *simpleLogger) Warn(msg string, args ...interface{}) {
	log.Printf("[WARN] %s %v", msg, args)
}

func (l *simpleLogger) Error(msg string, args ...interface{}) {
	log.Printf("[ERROR] %s %v", msg, args)
}

func (l *simpleLogger) With(args ...interface{}) server.Logger {
	return l
}

// ServeConfig holds all configuration for the serve command.
type ServeConfig struct {
	// Transport settings
	Transport string
	HTTPAddr  string

	// Endpoint paths
	SSEEndpoint     string
	MessageEndpoint string
	HTTPEndpoint    string

	DebugMode bool

	// BaseURL is the externally visible base URL of this server. Required
	// for the OAuth surface on HTTP transports.
	BaseURL string

	// Ory backend configuration
	Ory OryServeConfig

	// JWT validation configuration
	JWT JWTServeConfig

	// EnableSessions turns on opaque session-token checking against the
	// Ory project's whoami endpoint.
	EnableSessions bool

	// AllowPrivateURLs skips private-IP validation of backend URLs for
	// internal deployments.
	AllowPrivateURLs bool

	// Metrics server configuration
	Metrics MetricsServeConfig
}

// OryServeConfig holds the Ory backend configuration.
type OryServeConfig struct {
	// Enabled turns on the OAuth provider adapter.
	Enabled bool

	// ProviderType is "network" or "hydra".
	ProviderType string

	// NetworkProjectURL and NetworkAPIKey configure an Ory Network project.
	NetworkProjectURL string
	NetworkAPIKey     string

	// HydraAdminURL, HydraPublicURL and HydraAPIKey configure a self-hosted
	// Ory Hydra instance.
	HydraAdminURL  string
	HydraPublicURL string
	HydraAPIKey    string

	// Endpoint URL overrides. When empty they are derived from the project
	// or public URL.
	AuthorizationURL string
	TokenURL         string
	RevocationURL    string
	RegistrationURL  string

	// DisableRevocation and DisableRegistration structurally remove the
	// matching capability from the provider.
	DisableRevocation   bool
	DisableRegistration bool
}

// JWTServeConfig holds the JWT validation configuration.
type JWTServeConfig struct {
	JWKSURL       string
	Issuer        string
	Audience      string
	IdentityClaim string
}

// MetricsServeConfig holds the dedicated metrics server configuration.
type MetricsServeConfig struct {
	Enabled bool
	Addr    string
}

// loadEnvIfEmpty loads an environment variable into a string pointer if it's empty.
func loadEnvIfEmpty(target *string, envKey string) {
	if *target == "" {
		*target = os.Getenv(envKey)
	}
}

// newSlogLogger builds the structured logger handed to the Ory clients.
func newSlogLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// validateSecureURL validates that a URL uses HTTPS and is not vulnerable to SSRF attacks.
// It checks for:
// - Valid URL format
// - HTTPS scheme (HTTP not allowed)
// - No private/local IP addresses (unless allowPrivate is true)
// - No localhost references
func validateSecureURL(urlStr string, fieldName string, allowPrivate bool) error {
	// Check for empty URL
	if urlStr == "" {
		return fmt.Errorf("%s must be a valid URL: empty URL provided", fieldName)
	}

	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("%s must be a valid URL: %w", fieldName, err)
	}

	// Require HTTPS
	if parsedURL.Scheme != "https" {
		if parsedURL.Scheme == "" {
			return fmt.Errorf("%s must be a valid URL with HTTPS scheme", fieldName)
		}
		return fmt.Errorf("%s must use HTTPS (got: %s)", fieldName, parsedURL.Scheme)
	}

	// Extract hostname for validation
	hostname := parsedURL.Hostname()
	if hostname == "" {
		return fmt.Errorf("%s must have a valid hostname", fieldName)
	}

	// Check for localhost references
	if strings.ToLower(hostname) == "localhost" {
		return fmt.Errorf("%s cannot use localhost", fieldName)
	}

	// Resolve hostname to IP addresses to check for private IPs
	ips, err := net.LookupIP(hostname)
	if err != nil {
		// DNS lookup failure - this could be transient or the domain doesn't exist yet
		// For development/testing purposes, we'll allow this but log a warning
		log.Printf("[WARN] Could not resolve %s (%s) to validate IP address: %v", fieldName, hostname, err)
		return nil
	}

	// Check if any resolved IP is private or loopback (unless allowPrivate is true)
	if !allowPrivate {
		for _, ip := range ips {
			if isPrivateOrLoopbackIP(ip) {
				return fmt.Errorf("%s resolves to a private or loopback IP address (%s), which could be a security risk", fieldName, ip.String())
			}
		}
	}

	return nil
}

// isPrivateOrLoopbackIP checks if an IP address is private, loopback, or link-local.
func isPrivateOrLoopbackIP(ip net.IP) bool {
	// Check for loopback
	if ip.IsLoopback() {
		return true
	}

	// Check for link-local
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}

	// Check for private IPv4 ranges
	// 10.0.0.0/8
	if ip4 := ip.To4(); ip4 != nil {
		if ip4[0] == 10 {
			return true
		}
		// 172.16.0.0/12
		if ip4[0] == 172 && ip4[1] >= 16 && ip4[1] <= 31 {
			return true
		}
		// 192.168.0.0/16
		if ip4[0] == 192 && ip4[1] == 168 {
			return true
		}
	}

	// Check for private IPv6 ranges (fc00::/7 - Unique Local Addresses)
	if len(ip) == net.IPv6len && ip[0] == 0xfc || ip[0] == 0xfd {
		return true
	}

	return false
}
