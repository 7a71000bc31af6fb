package server

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/giantswarm/mcp-ory/internal/identity"
	"github.com/giantswarm/mcp-ory/internal/instrumentation"
	"github.com/giantswarm/mcp-ory/internal/jwtauth"
	"github.com/giantswarm/mcp-ory/internal/ory"
	"github.com/giantswarm/mcp-ory/internal/session"
)

// Option is a functional option for configuring ServerContext.
type Option func(*ServerContext) error

// WithProvider sets the OAuth provider adapter for the ServerContext.
func WithProvider(provider ory.ServerProvider) Option {
	return func(sc *ServerContext) error {
		if provider == nil {
			return ErrMissingProvider
		}
		sc.provider = provider
		return nil
	}
}

// WithJWTValidator sets the JWT validator used for inbound bearer tokens.
func WithJWTValidator(validator *jwtauth.Validator) Option {
	return func(sc *ServerContext) error {
		sc.jwtValidator = validator
		return nil
	}
}

// WithSessionVerifier sets the Ory session verifier used for inbound
// session tokens.
func WithSessionVerifier(verifier *session.Verifier) Option {
	return func(sc *ServerContext) error {
		sc.sessionVerifier = verifier
		return nil
	}
}

// WithIdentityClient sets the Ory identities admin client.
func WithIdentityClient(client *identity.Client) Option {
	return func(sc *ServerContext) error {
		sc.identities = client
		return nil
	}
}

// WithLogger sets the logger for the ServerContext.
func WithLogger(logger Logger) Option {
	return func(sc *ServerContext) error {
		if logger == nil {
			return ErrMissingLogger
		}
		sc.logger = logger
		return nil
	}
}

// WithConfig sets the configuration for the ServerContext.
func WithConfig(config *Config) Option {
	return func(sc *ServerContext) error {
		if config == nil {
			return ErrMissingConfig
		}
		sc.config = config.Clone()
		return nil
	}
}

// WithServerName sets the server name in the configuration.
func WithServerName(name string) Option {
	return func(sc *ServerContext) error {
		if sc.config == nil {
			sc.config = NewDefaultConfig()
		}
		sc.config.ServerName = name
		return nil
	}
}

// WithBaseURL sets the externally visible base URL in the configuration.
func WithBaseURL(baseURL string) Option {
	return func(sc *ServerContext) error {
		if sc.config == nil {
			sc.config = NewDefaultConfig()
		}
		sc.config.BaseURL = baseURL
		return nil
	}
}

// WithProviderType records the configured OAuth backend flavor in the
// configuration. This is informational and surfaced by health endpoints.
func WithProviderType(providerType string) Option {
	return func(sc *ServerContext) error {
		if sc.config == nil {
			sc.config = NewDefaultConfig()
		}
		sc.config.ProviderType = providerType
		return nil
	}
}

// WithLogLevel sets the logging level.
func WithLogLevel(level string) Option {
	return func(sc *ServerContext) error {
		if sc.config == nil {
			sc.config = NewDefaultConfig()
		}
		sc.config.LogLevel = level
		return nil
	}
}

// WithInstrumentationProvider sets the OpenTelemetry instrumentation provider.
// This enables production-grade observability including metrics and tracing.
func WithInstrumentationProvider(provider *instrumentation.Provider) Option {
	return func(sc *ServerContext) error {
		sc.instrumentationProvider = provider
		return nil
	}
}

// Error definitions for ServerContext validation and operations.
var (
	ErrMissingProvider = errors.New("oauth provider is required")
	ErrMissingLogger   = errors.New("logger is required")
	ErrMissingConfig   = errors.New("configuration is required")
	ErrServerShutdown  = errors.New("server context has been shutdown")
	ErrNoCredentials   = errors.New("no authentication credentials provided")
)

// DefaultLogger is a simple logger implementation that wraps the standard library logger.
type DefaultLogger struct {
	logger *log.Logger
	level  string
}

// NewDefaultLogger creates a new default logger with standard error output.
func NewDefaultLogger() Logger {
	return &DefaultLogger{
		logger: log.New(os.Stderr, "[mcp-ory] ", log.LstdFlags|log.Lshortfile),
		level:  "info",
	}
}

// Info logs an informational message.
func (l *DefaultLogger) Info(msg string, args ...interface{}) {
	l.logger.Printf("[INFO] "+msg, args...)
}

// Debug logs a debug message.
func (l *DefaultLogger) Debug(msg string, args ...interface{}) {
	if l.level == "debug" {
		l.logger.Printf("[DEBUG] "+msg, args...)
	}
}

// Warn logs a warning message.
func (l *DefaultLogger) Warn(msg string, args ...interface{}) {
	l.logger.Printf("[WARN] "+msg, args...)
}

// Error logs an error message.
func (l *DefaultLogger) Error(msg string, args ...interface{}) {
	l.logger.Printf("[ERROR] "+msg, args...)
}

// With returns a new logger with additional context fields.
func (l *DefaultLogger) With(args ...interface{}) Logger {
	// For the default logger, we'll just add the context to the prefix
	if len(args) > 0 {
		prefix := fmt.Sprintf("[mcp-ory] %v ", args)
		return &DefaultLogger{
			logger: log.New(os.Stderr, prefix, log.LstdFlags|log.Lshortfile),
			level:  l.level,
		}
	}
	return l
}
