package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/giantswarm/mcp-ory/internal/identity"
	"github.com/giantswarm/mcp-ory/internal/instrumentation"
	"github.com/giantswarm/mcp-ory/internal/jwtauth"
	"github.com/giantswarm/mcp-ory/internal/ory"
	"github.com/giantswarm/mcp-ory/internal/server"
	"github.com/giantswarm/mcp-ory/internal/session"
	authtools "github.com/giantswarm/mcp-ory/internal/tools/auth"
)

// Transport type constants for the MCP server.
const (
	transportStdio          = "stdio"
	transportSSE            = "sse"
	transportStreamableHTTP = "streamable-http"
)

// envValueTrue is the string value used to enable boolean environment variables.
const envValueTrue = "true"

// newServeCmd creates the Cobra command for starting the MCP server.
func newServeCmd() *cobra.Command {
	var (
		debugMode bool

		// Transport options
		transport       string
		httpAddr        string
		sseEndpoint     string
		messageEndpoint string
		httpEndpoint    string
		baseURL         string

		// Ory backend options
		enableOAuth         bool
		providerType        string
		networkProjectURL   string
		networkAPIKey       string
		hydraAdminURL       string
		hydraPublicURL      string
		hydraAPIKey         string
		authorizationURL    string
		tokenURL            string
		revocationURL       string
		registrationURL     string
		disableRevocation   bool
		disableRegistration bool

		// JWT options
		jwksURL       string
		jwtIssuer     string
		jwtAudience   string
		identityClaim string

		// Session options
		enableSessions bool

		allowPrivateURLs bool

		// Metrics server options
		enableMetricsServer bool
		metricsAddr         string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP Ory server",
		Long: `Start the MCP Ory server to provide authentication and authorization
backed by Ory via the Model Context Protocol.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - sse: Server-Sent Events over HTTP
  - streamable-http: Streamable HTTP transport

Authentication surfaces (any combination can be enabled):
  - OAuth 2.1 provider adapter (--enable-oauth): authorization-code + PKCE
    flows proxied to an Ory Network project or self-hosted Ory Hydra
  - JWT validation (--jwks-url): bearer JWTs validated against a remote JWKS,
    with claim-based identity mapping in the Ory identities API
  - Session checking (--enable-sessions): opaque Ory session tokens forwarded
    to the project's whoami endpoint`,
		RunE: func(cmd *cobra.Command, args []string) error {
			config := ServeConfig{
				Transport:       transport,
				HTTPAddr:        httpAddr,
				SSEEndpoint:     sseEndpoint,
				MessageEndpoint: messageEndpoint,
				HTTPEndpoint:    httpEndpoint,
				DebugMode:       debugMode,
				BaseURL:         baseURL,
				Ory: OryServeConfig{
					Enabled:             enableOAuth,
					ProviderType:        providerType,
					NetworkProjectURL:   networkProjectURL,
					NetworkAPIKey:       networkAPIKey,
					HydraAdminURL:       hydraAdminURL,
					HydraPublicURL:      hydraPublicURL,
					HydraAPIKey:         hydraAPIKey,
					AuthorizationURL:    authorizationURL,
					TokenURL:            tokenURL,
					RevocationURL:       revocationURL,
					RegistrationURL:     registrationURL,
					DisableRevocation:   disableRevocation,
					DisableRegistration: disableRegistration,
				},
				JWT: JWTServeConfig{
					JWKSURL:       jwksURL,
					Issuer:        jwtIssuer,
					Audience:      jwtAudience,
					IdentityClaim: identityClaim,
				},
				EnableSessions:   enableSessions,
				AllowPrivateURLs: allowPrivateURLs,
				Metrics: MetricsServeConfig{
					Enabled: enableMetricsServer,
					Addr:    metricsAddr,
				},
			}
			return runServe(config)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging (default: false)")

	// Transport flags
	cmd.Flags().StringVar(&transport, "transport", transportStdio, "Transport type: stdio, sse, or streamable-http")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "HTTP server address (for sse and streamable-http transports)")
	cmd.Flags().StringVar(&sseEndpoint, "sse-endpoint", "/sse", "SSE endpoint path (for sse transport)")
	cmd.Flags().StringVar(&messageEndpoint, "message-endpoint", "/message", "Message endpoint path (for sse transport)")
	cmd.Flags().StringVar(&httpEndpoint, "http-endpoint", "/mcp", "HTTP endpoint path (for streamable-http transport)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Externally visible base URL of this server (e.g., https://mcp.example.com, can also be set via MCP_BASE_URL env var)")

	// Ory backend flags
	cmd.Flags().BoolVar(&enableOAuth, "enable-oauth", false, "Enable the OAuth 2.1 provider adapter (for HTTP transports)")
	cmd.Flags().StringVar(&providerType, "provider-type", ProviderTypeNetwork, fmt.Sprintf("Ory backend flavor: %s or %s (can also be set via ORY_PROVIDER_TYPE env var)", ProviderTypeNetwork, ProviderTypeHydra))
	cmd.Flags().StringVar(&networkProjectURL, "ory-project-url", "", "Ory Network project base URL (can also be set via ORY_PROJECT_URL env var)")
	cmd.Flags().StringVar(&networkAPIKey, "ory-api-key", "", "Ory Network project API key (can also be set via ORY_PROJECT_API_KEY env var)")
	cmd.Flags().StringVar(&hydraAdminURL, "hydra-admin-url", "", "Ory Hydra admin API URL (can also be set via HYDRA_ADMIN_URL env var)")
	cmd.Flags().StringVar(&hydraPublicURL, "hydra-public-url", "", "Ory Hydra public URL for OAuth endpoints (can also be set via HYDRA_PUBLIC_URL env var)")
	cmd.Flags().StringVar(&hydraAPIKey, "hydra-api-key", "", "Ory Hydra admin API key (can also be set via HYDRA_API_KEY env var)")
	cmd.Flags().StringVar(&authorizationURL, "authorization-url", "", "Override the backend authorization endpoint URL")
	cmd.Flags().StringVar(&tokenURL, "token-url", "", "Override the backend token endpoint URL")
	cmd.Flags().StringVar(&revocationURL, "revocation-url", "", "Override the backend revocation endpoint URL")
	cmd.Flags().StringVar(&registrationURL, "registration-url", "", "Override the backend client registration endpoint URL")
	cmd.Flags().BoolVar(&disableRevocation, "disable-revocation", false, "Disable the token revocation capability")
	cmd.Flags().BoolVar(&disableRegistration, "disable-registration", false, "Disable the dynamic client registration capability")

	// JWT flags
	cmd.Flags().StringVar(&jwksURL, "jwks-url", "", "JWKS URL for JWT validation; enables JWT authentication when set (can also be set via JWKS_URL env var)")
	cmd.Flags().StringVar(&jwtIssuer, "jwt-issuer", "", "Expected JWT issuer (can also be set via JWT_ISSUER env var)")
	cmd.Flags().StringVar(&jwtAudience, "jwt-audience", "", "Expected JWT audience (can also be set via JWT_AUDIENCE env var)")
	cmd.Flags().StringVar(&identityClaim, "identity-claim", "", "JWT claim mapped to an Ory identity identifier (default: sub, can also be set via IDENTITY_CLAIM env var)")

	// Session flags
	cmd.Flags().BoolVar(&enableSessions, "enable-sessions", false, "Enable opaque Ory session token checking (requires --ory-project-url)")

	cmd.Flags().BoolVar(&allowPrivateURLs, "allow-private-urls", false, "Allow backend URLs that resolve to private/internal IP addresses (for internal deployments)")

	// Metrics server flags
	cmd.Flags().BoolVar(&enableMetricsServer, "enable-metrics-server", false, "Serve Prometheus metrics on a dedicated listener (requires instrumentation to be enabled)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Metrics server address (can also be set via METRICS_ADDR env var)")

	return cmd
}

// runServe contains the main server logic with support for multiple transports.
func runServe(config ServeConfig) error {
	// Load a local .env file when present. Missing files are not an error.
	_ = godotenv.Load()

	// Environment fallbacks for flags that were not set.
	loadEnvIfEmpty(&config.BaseURL, "MCP_BASE_URL")
	loadEnvIfEmpty(&config.Ory.ProviderType, "ORY_PROVIDER_TYPE")
	loadEnvIfEmpty(&config.Ory.NetworkProjectURL, "ORY_PROJECT_URL")
	loadEnvIfEmpty(&config.Ory.NetworkAPIKey, "ORY_PROJECT_API_KEY")
	loadEnvIfEmpty(&config.Ory.HydraAdminURL, "HYDRA_ADMIN_URL")
	loadEnvIfEmpty(&config.Ory.HydraPublicURL, "HYDRA_PUBLIC_URL")
	loadEnvIfEmpty(&config.Ory.HydraAPIKey, "HYDRA_API_KEY")
	loadEnvIfEmpty(&config.JWT.JWKSURL, "JWKS_URL")
	loadEnvIfEmpty(&config.JWT.Issuer, "JWT_ISSUER")
	loadEnvIfEmpty(&config.JWT.Audience, "JWT_AUDIENCE")
	loadEnvIfEmpty(&config.JWT.IdentityClaim, "IDENTITY_CLAIM")
	loadEnvIfEmpty(&config.Metrics.Addr, "METRICS_ADDR")

	// Setup graceful shutdown - listen for both SIGINT and SIGTERM
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Initialize OpenTelemetry instrumentation provider
	instrumentationConfig := instrumentation.DefaultConfig()
	instrumentationConfig.ServiceVersion = rootCmd.Version
	instrumentationProvider, err := instrumentation.NewProvider(shutdownCtx, instrumentationConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if shutdownErr := instrumentationProvider.Shutdown(context.Background()); shutdownErr != nil {
			if config.Transport != transportStdio {
				log.Printf("Error during instrumentation shutdown: %v", shutdownErr)
			}
		}
	}()

	if instrumentationProvider.Enabled() {
		log.Printf("OpenTelemetry instrumentation enabled (metrics: %s, tracing: %s)",
			instrumentationConfig.MetricsExporter, instrumentationConfig.TracingExporter)
	}

	slogger := newSlogLogger(config.DebugMode)

	serverContextOptions := []server.Option{
		server.WithLogger(&simpleLogger{}),
		server.WithInstrumentationProvider(instrumentationProvider),
	}
	if config.BaseURL != "" {
		serverContextOptions = append(serverContextOptions, server.WithBaseURL(config.BaseURL))
	}
	if config.DebugMode {
		serverContextOptions = append(serverContextOptions, server.WithLogLevel("debug"))
	}

	// Ory identities admin client, shared by JWT identity mapping and the
	// identity tools. Requires Ory Network project credentials.
	var identities *identity.Client
	if config.Ory.NetworkProjectURL != "" && config.Ory.NetworkAPIKey != "" {
		identityConfig := identity.Config{
			ProjectURL: config.Ory.NetworkProjectURL,
			APIKey:     config.Ory.NetworkAPIKey,
			Logger:     slogger,
		}
		if instrumentationProvider.Enabled() {
			identityConfig.Metrics = instrumentationProvider.Metrics()
		}
		identities, err = identity.NewClient(identityConfig)
		if err != nil {
			return fmt.Errorf("failed to create identity client: %w", err)
		}
		serverContextOptions = append(serverContextOptions, server.WithIdentityClient(identities))
	}

	// OAuth provider adapter
	if config.Ory.Enabled {
		if err := validateBackendURLs(&config); err != nil {
			return err
		}

		provider, err := ory.New(oryProviderConfig(config, slogger))
		if err != nil {
			return fmt.Errorf("failed to create ory provider: %w", err)
		}
		if instrumentationProvider.Enabled() {
			if p, ok := provider.(interface{ SetMetrics(ory.MetricsRecorder) }); ok {
				p.SetMetrics(instrumentationProvider.Metrics())
			}
		}
		serverContextOptions = append(serverContextOptions,
			server.WithProvider(provider),
			server.WithProviderType(config.Ory.ProviderType),
		)
	}

	// JWT validator
	if config.JWT.JWKSURL != "" {
		validator, err := jwtauth.NewValidator(shutdownCtx, jwtauth.Config{
			JWKSURL:       config.JWT.JWKSURL,
			Issuer:        config.JWT.Issuer,
			Audience:      config.JWT.Audience,
			IdentityClaim: config.JWT.IdentityClaim,
			Identities:    identities,
			Logger:        slogger,
		})
		if err != nil {
			return fmt.Errorf("failed to create JWT validator: %w", err)
		}
		serverContextOptions = append(serverContextOptions, server.WithJWTValidator(validator))
	}

	// Session verifier
	if config.EnableSessions {
		if config.Ory.NetworkProjectURL == "" {
			return fmt.Errorf("--enable-sessions requires --ory-project-url (or ORY_PROJECT_URL)")
		}
		verifier, err := session.NewVerifier(session.Config{
			ProjectURL: config.Ory.NetworkProjectURL,
			Logger:     slogger,
		})
		if err != nil {
			return fmt.Errorf("failed to create session verifier: %w", err)
		}
		serverContextOptions = append(serverContextOptions, server.WithSessionVerifier(verifier))
	}

	serverContext, err := server.NewServerContext(shutdownCtx, serverContextOptions...)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	defer func() {
		if err := serverContext.Shutdown(); err != nil {
			// Only log shutdown errors for non-stdio transports to avoid output interference
			if config.Transport != transportStdio {
				log.Printf("Error during server context shutdown: %v", err)
			}
		}
	}()

	// Create MCP server
	mcpServerOptions := []mcpserver.ServerOption{
		mcpserver.WithToolCapabilities(true),
	}
	if instrumentationProvider.Enabled() {
		mcpServerOptions = append(mcpServerOptions,
			mcpserver.WithHooks(sessionGaugeHooks(instrumentationProvider.Metrics())))
	}
	mcpSrv := mcpserver.NewMCPServer("mcp-ory", rootCmd.Version, mcpServerOptions...)

	if err := authtools.RegisterAuthTools(mcpSrv, serverContext); err != nil {
		return fmt.Errorf("failed to register auth tools: %w", err)
	}

	// Start the appropriate server based on transport type
	switch config.Transport {
	case transportStdio:
		// Don't print startup message for stdio mode as it interferes with MCP communication
		return runStdioServer(mcpSrv)
	case transportSSE:
		fmt.Printf("Starting MCP Ory server with %s transport...\n", config.Transport)
		return runSSEServer(mcpSrv, config.HTTPAddr, config.SSEEndpoint, config.MessageEndpoint, shutdownCtx, config.DebugMode)
	case transportStreamableHTTP:
		fmt.Printf("Starting MCP Ory server with %s transport...\n", config.Transport)
		if config.Ory.Enabled && config.BaseURL == "" {
			return fmt.Errorf("--base-url is required when --enable-oauth is set")
		}
		return runStreamableHTTPServer(mcpSrv, config, shutdownCtx, serverContext, instrumentationProvider)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, sse, streamable-http)", config.Transport)
	}
}

// validateBackendURLs checks the configured backend URLs for scheme and SSRF
// issues before any network call is made.
func validateBackendURLs(config *ServeConfig) error {
	switch config.Ory.ProviderType {
	case ProviderTypeNetwork:
		if config.Ory.NetworkProjectURL == "" {
			return fmt.Errorf("ory project URL is required when using the network provider (--ory-project-url or ORY_PROJECT_URL)")
		}
		if config.Ory.NetworkAPIKey == "" {
			return fmt.Errorf("ory API key is required when using the network provider (--ory-api-key or ORY_PROJECT_API_KEY)")
		}
		return validateSecureURL(config.Ory.NetworkProjectURL, "Ory project URL", config.AllowPrivateURLs)
	case ProviderTypeHydra:
		if config.Ory.HydraAdminURL == "" {
			return fmt.Errorf("hydra admin URL is required when using the hydra provider (--hydra-admin-url or HYDRA_ADMIN_URL)")
		}
		if config.Ory.HydraAPIKey == "" {
			return fmt.Errorf("hydra API key is required when using the hydra provider (--hydra-api-key or HYDRA_API_KEY)")
		}
		if config.Ory.HydraPublicURL == "" && config.Ory.AuthorizationURL == "" {
			return fmt.Errorf("hydra public URL is required to derive OAuth endpoints (--hydra-public-url or HYDRA_PUBLIC_URL)")
		}
		// Hydra admin APIs commonly run inside the cluster, so the admin URL
		// skips the private-IP check.
		return nil
	default:
		return fmt.Errorf("unsupported provider type: %s (supported: %s, %s)", config.Ory.ProviderType, ProviderTypeNetwork, ProviderTypeHydra)
	}
}

// sessionGaugeHooks tracks connected MCP clients in the active sessions
// gauge through the SDK's session lifecycle hooks.
func sessionGaugeHooks(metrics *instrumentation.Metrics) *mcpserver.Hooks {
	hooks := &mcpserver.Hooks{}
	hooks.AddOnRegisterSession(func(ctx context.Context, _ mcpserver.ClientSession) {
		metrics.IncrementActiveSessions(ctx)
	})
	hooks.AddOnUnregisterSession(func(ctx context.Context, _ mcpserver.ClientSession) {
		metrics.DecrementActiveSessions(ctx)
	})
	return hooks
}

// oryProviderConfig maps the serve configuration onto the provider config,
// deriving endpoint URLs when no explicit overrides are set.
func oryProviderConfig(config ServeConfig, logger *slog.Logger) ory.Config {
	var endpoints ory.Endpoints
	switch config.Ory.ProviderType {
	case ProviderTypeHydra:
		endpoints = ory.HydraEndpoints(config.Ory.HydraPublicURL)
	default:
		endpoints = ory.NetworkEndpoints(config.Ory.NetworkProjectURL)
	}
	if config.Ory.AuthorizationURL != "" {
		endpoints.AuthorizationURL = config.Ory.AuthorizationURL
	}
	if config.Ory.TokenURL != "" {
		endpoints.TokenURL = config.Ory.TokenURL
	}
	if config.Ory.RevocationURL != "" {
		endpoints.RevocationURL = config.Ory.RevocationURL
	}
	if config.Ory.RegistrationURL != "" {
		endpoints.RegistrationURL = config.Ory.RegistrationURL
	}
	if config.Ory.DisableRevocation {
		endpoints.RevocationURL = ""
	}
	if config.Ory.DisableRegistration {
		endpoints.RegistrationURL = ""
	}

	return ory.Config{
		ProviderType:         ory.ProviderType(config.Ory.ProviderType),
		Endpoints:            endpoints,
		NetworkProjectURL:    config.Ory.NetworkProjectURL,
		NetworkProjectAPIKey: config.Ory.NetworkAPIKey,
		HydraAdminURL:        config.Ory.HydraAdminURL,
		HydraAPIKey:          config.Ory.HydraAPIKey,
		Logger:               logger,
	}
}
