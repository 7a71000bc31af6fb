package server

import (
	"context"
	"sync"

	"github.com/giantswarm/mcp-ory/internal/identity"
	"github.com/giantswarm/mcp-ory/internal/instrumentation"
	"github.com/giantswarm/mcp-ory/internal/jwtauth"
	"github.com/giantswarm/mcp-ory/internal/ory"
	"github.com/giantswarm/mcp-ory/internal/session"
)

// ServerContext encapsulates all dependencies needed by the MCP server
// and provides a clean abstraction for dependency injection and lifecycle management.
type ServerContext struct {
	// Core dependencies
	provider ory.ServerProvider
	logger   Logger
	config   *Config

	// Inbound authentication collaborators. Any combination can be set;
	// the auth middleware tries them in order: access token, JWT, session.
	jwtValidator    *jwtauth.Validator
	sessionVerifier *session.Verifier
	identities      *identity.Client

	// Observability
	instrumentationProvider *instrumentation.Provider

	// Context management
	ctx    context.Context
	cancel context.CancelFunc

	// Lifecycle management
	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext creates a new ServerContext with default values.
// Use the provided functional options to customize the context.
func NewServerContext(ctx context.Context, opts ...Option) (*ServerContext, error) {
	// Create a cancellable context
	serverCtx, cancel := context.WithCancel(ctx)

	// Initialize with defaults
	sc := &ServerContext{
		ctx:    serverCtx,
		cancel: cancel,
		config: NewDefaultConfig(),
		logger: NewDefaultLogger(),
	}

	// Apply functional options
	for _, opt := range opts {
		if err := opt(sc); err != nil {
			cancel()
			return nil, err
		}
	}

	// Validate required dependencies
	if err := sc.validate(); err != nil {
		cancel()
		return nil, err
	}

	return sc, nil
}

// Context returns the server context for cancellation and deadlines.
func (sc *ServerContext) Context() context.Context {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.ctx
}

// Provider returns the OAuth provider adapter, or nil when the server runs
// without the OAuth surface.
func (sc *ServerContext) Provider() ory.ServerProvider {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.provider
}

// JWTValidator returns the JWT validator, or nil when JWT authentication is
// not configured.
func (sc *ServerContext) JWTValidator() *jwtauth.Validator {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.jwtValidator
}

// SessionVerifier returns the Ory session verifier, or nil when session
// authentication is not configured.
func (sc *ServerContext) SessionVerifier() *session.Verifier {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.sessionVerifier
}

// Identities returns the Ory identities admin client, or nil when identity
// management is not configured.
func (sc *ServerContext) Identities() *identity.Client {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.identities
}

// InstrumentationProvider returns the OpenTelemetry instrumentation provider.
// May be nil when instrumentation is not configured.
func (sc *ServerContext) InstrumentationProvider() *instrumentation.Provider {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.instrumentationProvider
}

// Logger returns the logger interface.
func (sc *ServerContext) Logger() Logger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.logger
}

// Config returns the server configuration.
func (sc *ServerContext) Config() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config
}

// AuthEnabled reports whether any inbound authenticator is configured.
func (sc *ServerContext) AuthEnabled() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.provider != nil || sc.jwtValidator != nil || sc.sessionVerifier != nil
}

// Shutdown gracefully shuts down the server context.
// This cancels the context and releases any resources.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.logger.Info("Shutting down server context")

	// Cancel the context
	if sc.cancel != nil {
		sc.cancel()
	}

	// Mark as shutdown
	sc.shutdown = true

	sc.logger.Info("Server context shutdown complete")
	return nil
}

// IsShutdown returns true if the server context has been shutdown.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// validate ensures all required dependencies are set.
func (sc *ServerContext) validate() error {
	if sc.logger == nil {
		return ErrMissingLogger
	}
	if sc.config == nil {
		return ErrMissingConfig
	}
	return nil
}

// Logger defines the interface for logging operations.
type Logger interface {
	// Info logs an informational message.
	Info(msg string, args ...interface{})

	// Debug logs a debug message.
	Debug(msg string, args ...interface{})

	// Warn logs a warning message.
	Warn(msg string, args ...interface{})

	// Error logs an error message.
	Error(msg string, args ...interface{})

	// With returns a new logger with additional context fields.
	With(args ...interface{}) Logger
}

// Config holds the server configuration.
type Config struct {
	// Server settings
	ServerName string `json:"serverName"`
	Version    string `json:"version"`

	// BaseURL is the externally visible base URL of this server.
	BaseURL string `json:"baseUrl"`

	// ProviderType is the configured OAuth backend flavor (network or hydra).
	// Informational; the provider itself carries the authoritative value.
	ProviderType string `json:"providerType"`

	// Logging settings
	LogLevel  string `json:"logLevel"`
	LogFormat string `json:"logFormat"`
}

// NewDefaultConfig creates a configuration with sensible defaults.
func NewDefaultConfig() *Config {
	return &Config{
		ServerName: "mcp-ory",
		Version:    "0.1.0",
		LogLevel:   "info",
		LogFormat:  "json",
	}
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}

	clone := *c
	return &clone
}
