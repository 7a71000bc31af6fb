package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServerContext_Defaults(t *testing.T) {
	sc, err := NewServerContext(context.Background())
	require.NoError(t, err)
	defer func() { _ = sc.Shutdown() }()

	assert.Equal(t, "mcp-ory", sc.Config().ServerName)
	assert.Equal(t, "info", sc.Config().LogLevel)
	assert.NotNil(t, sc.Logger())
	assert.Nil(t, sc.Provider())
	assert.Nil(t, sc.JWTValidator())
	assert.Nil(t, sc.SessionVerifier())
	assert.Nil(t, sc.Identities())
	assert.False(t, sc.AuthEnabled())
	assert.False(t, sc.IsShutdown())
}

func TestNewServerContext_Options(t *testing.T) {
	provider := &fakeProvider{store: &fakeClientsStore{}}

	sc, err := NewServerContext(context.Background(),
		WithProvider(provider),
		WithServerName("custom"),
		WithBaseURL("https://mcp.example.com"),
		WithProviderType("hydra"),
		WithLogLevel("debug"),
	)
	require.NoError(t, err)
	defer func() { _ = sc.Shutdown() }()

	assert.Equal(t, provider, sc.Provider())
	assert.Equal(t, "custom", sc.Config().ServerName)
	assert.Equal(t, "https://mcp.example.com", sc.Config().BaseURL)
	assert.Equal(t, "hydra", sc.Config().ProviderType)
	assert.Equal(t, "debug", sc.Config().LogLevel)
	assert.True(t, sc.AuthEnabled())
}

func TestNewServerContext_OptionErrors(t *testing.T) {
	t.Run("nil provider", func(t *testing.T) {
		_, err := NewServerContext(context.Background(), WithProvider(nil))
		assert.ErrorIs(t, err, ErrMissingProvider)
	})

	t.Run("nil logger", func(t *testing.T) {
		_, err := NewServerContext(context.Background(), WithLogger(nil))
		assert.ErrorIs(t, err, ErrMissingLogger)
	})

	t.Run("nil config", func(t *testing.T) {
		_, err := NewServerContext(context.Background(), WithConfig(nil))
		assert.ErrorIs(t, err, ErrMissingConfig)
	})
}

func TestServerContext_ConfigIsCloned(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.ServerName = "original"

	sc, err := NewServerContext(context.Background(), WithConfig(cfg))
	require.NoError(t, err)
	defer func() { _ = sc.Shutdown() }()

	cfg.ServerName = "mutated"
	assert.Equal(t, "original", sc.Config().ServerName)
}

func TestServerContext_Shutdown(t *testing.T) {
	sc, err := NewServerContext(context.Background())
	require.NoError(t, err)

	require.NoError(t, sc.Shutdown())
	assert.True(t, sc.IsShutdown())
	assert.Error(t, sc.Context().Err())

	// Second shutdown is a no-op.
	require.NoError(t, sc.Shutdown())
}

func TestConfigClone(t *testing.T) {
	var nilCfg *Config
	assert.Nil(t, nilCfg.Clone())

	cfg := &Config{ServerName: "a", BaseURL: "https://x"}
	clone := cfg.Clone()
	clone.ServerName = "b"
	assert.Equal(t, "a", cfg.ServerName)
}

func TestDefaultLogger(t *testing.T) {
	logger := NewDefaultLogger()
	require.NotNil(t, logger)

	// Must not panic.
	logger.Info("info %s", "msg")
	logger.Warn("warn")
	logger.Error("error")
	logger.Debug("suppressed at info level")

	child := logger.With("component", "test")
	require.NotNil(t, child)
	child.Info("from child")
}
