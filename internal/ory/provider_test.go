// Package ory tests exercise the provider against fake backends, asserting
// on the exact requests sent (paths, auth headers, form fields) and on the
// number of backend calls each operation makes.
package ory

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEndpoints returns a minimal valid endpoint set pointing at the given
// backend server.
func testEndpoints(backendURL string) Endpoints {
	return Endpoints{
		AuthorizationURL: backendURL + "/oauth2/auth",
		TokenURL:         backendURL + "/oauth2/token",
	}
}

// newNetworkProvider constructs a network-flavor provider against the given
// backend server.
func newNetworkProvider(t *testing.T, backendURL string, mutate func(*Config)) ServerProvider {
	t.Helper()
	cfg := Config{
		ProviderType:         ProviderTypeNetwork,
		Endpoints:            testEndpoints(backendURL),
		NetworkProjectURL:    backendURL,
		NetworkProjectAPIKey: "network-api-key",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := New(cfg)
	require.NoError(t, err)
	return p
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestNewConfigValidation(t *testing.T) {
	validEndpoints := Endpoints{
		AuthorizationURL: "https://example.test/oauth2/auth",
		TokenURL:         "https://example.test/oauth2/token",
	}

	tests := []struct {
		name          string
		config        Config
		errorContains string
	}{
		{
			name: "missing authorization URL",
			config: Config{
				ProviderType:         ProviderTypeNetwork,
				Endpoints:            Endpoints{TokenURL: "https://example.test/oauth2/token"},
				NetworkProjectURL:    "https://example.test",
				NetworkProjectAPIKey: "key",
			},
			errorContains: "authorizationUrl",
		},
		{
			name: "missing token URL",
			config: Config{
				ProviderType:         ProviderTypeNetwork,
				Endpoints:            Endpoints{AuthorizationURL: "https://example.test/oauth2/auth"},
				NetworkProjectURL:    "https://example.test",
				NetworkProjectAPIKey: "key",
			},
			errorContains: "tokenUrl",
		},
		{
			name: "network type without network credentials",
			config: Config{
				ProviderType: ProviderTypeNetwork,
				Endpoints:    validEndpoints,
				// Hydra credentials populated for the wrong type
				HydraAdminURL: "https://hydra.test",
				HydraAPIKey:   "key",
			},
			errorContains: "networkProjectUrl",
		},
		{
			name: "hydra type without hydra credentials",
			config: Config{
				ProviderType:         ProviderTypeHydra,
				Endpoints:            validEndpoints,
				NetworkProjectURL:    "https://example.test",
				NetworkProjectAPIKey: "key",
			},
			errorContains: "hydraAdminUrl",
		},
		{
			name: "unknown provider type",
			config: Config{
				ProviderType: ProviderType("keycloak"),
				Endpoints:    validEndpoints,
			},
			errorContains: "unknown provider type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.config)
			require.Error(t, err)
			assert.Nil(t, p)
			assert.Contains(t, err.Error(), tt.errorContains)

			var configErr *ConfigError
			assert.True(t, errors.As(err, &configErr), "expected a *ConfigError, got %T", err)
		})
	}
}

func TestAuthorize(t *testing.T) {
	client := &ClientInformation{ClientID: "client-123"}

	t.Run("generates state when unset", func(t *testing.T) {
		p := newNetworkProvider(t, "https://project.test", nil)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/authorize", nil)
		err := p.Authorize(client, AuthorizationParams{
			RedirectURI:   "https://app.test/callback",
			CodeChallenge: "challenge-value",
		}, rec, req)
		require.NoError(t, err)

		assert.Equal(t, http.StatusFound, rec.Code)
		redirect, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)

		q := redirect.Query()
		assert.Equal(t, "client-123", q.Get("client_id"))
		assert.Equal(t, "code", q.Get("response_type"))
		assert.Equal(t, "https://app.test/callback", q.Get("redirect_uri"))
		assert.Equal(t, "challenge-value", q.Get("code_challenge"))
		assert.Equal(t, "S256", q.Get("code_challenge_method"))

		// 32 random bytes, hex encoded
		assert.Len(t, q.Get("state"), 64)
	})

	t.Run("echoes provided state unchanged", func(t *testing.T) {
		p := newNetworkProvider(t, "https://project.test", nil)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/authorize", nil)
		err := p.Authorize(client, AuthorizationParams{
			RedirectURI:   "https://app.test/callback",
			CodeChallenge: "challenge-value",
			State:         "caller-state",
		}, rec, req)
		require.NoError(t, err)

		redirect, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "caller-state", redirect.Query().Get("state"))
	})

	t.Run("defaults empty scopes to ory.admin", func(t *testing.T) {
		p := newNetworkProvider(t, "https://project.test", nil)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/authorize", nil)
		err := p.Authorize(client, AuthorizationParams{
			RedirectURI:   "https://app.test/callback",
			CodeChallenge: "challenge-value",
		}, rec, req)
		require.NoError(t, err)

		redirect, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "ory.admin", redirect.Query().Get("scope"))
	})

	t.Run("joins provided scopes with spaces", func(t *testing.T) {
		p := newNetworkProvider(t, "https://project.test", nil)

		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/authorize", nil)
		err := p.Authorize(client, AuthorizationParams{
			RedirectURI:   "https://app.test/callback",
			CodeChallenge: "challenge-value",
			Scopes:        []string{"openid", "offline_access"},
		}, rec, req)
		require.NoError(t, err)

		redirect, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "openid offline_access", redirect.Query().Get("scope"))
	})
}

func TestChallengeForAuthorizationCode(t *testing.T) {
	p := newNetworkProvider(t, "https://project.test", nil)

	challenge, err := p.ChallengeForAuthorizationCode(context.Background(), &ClientInformation{ClientID: "c"}, "code-123")
	require.NoError(t, err)
	assert.Equal(t, "", challenge, "proxy mode never holds a local challenge")
}

func TestSkipLocalPKCEValidation(t *testing.T) {
	p := newNetworkProvider(t, "https://project.test", nil)
	assert.True(t, p.SkipLocalPKCEValidation())
}

func TestExchangeAuthorizationCode(t *testing.T) {
	t.Run("posts the expected form", func(t *testing.T) {
		var captured url.Values
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/oauth2/token", r.URL.Path)
			require.NoError(t, r.ParseForm())
			captured = r.PostForm
			writeJSON(t, w, Tokens{AccessToken: "at", TokenType: "bearer", ExpiresIn: 3600})
		}))
		defer srv.Close()

		p := newNetworkProvider(t, srv.URL, nil)
		client := &ClientInformation{
			ClientID:     "client-123",
			ClientSecret: "s3cret",
			RedirectURIs: []string{"https://app.test/callback", "https://app.test/other"},
		}

		tokens, err := p.ExchangeAuthorizationCode(context.Background(), client, "auth-code", "verifier-value")
		require.NoError(t, err)
		require.NotNil(t, tokens)
		assert.Equal(t, "at", tokens.AccessToken)

		assert.Equal(t, "authorization_code", captured.Get("grant_type"))
		assert.Equal(t, "client-123", captured.Get("client_id"))
		assert.Equal(t, "auth-code", captured.Get("code"))
		assert.Equal(t, "https://app.test/callback", captured.Get("redirect_uri"), "first redirect URI wins")
		assert.Equal(t, "s3cret", captured.Get("client_secret"))
		assert.Equal(t, "verifier-value", captured.Get("code_verifier"))
	})

	t.Run("omits secret and verifier when absent", func(t *testing.T) {
		var captured url.Values
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			captured = r.PostForm
			writeJSON(t, w, Tokens{AccessToken: "at", TokenType: "bearer"})
		}))
		defer srv.Close()

		p := newNetworkProvider(t, srv.URL, nil)
		client := &ClientInformation{
			ClientID:     "client-123",
			RedirectURIs: []string{"https://app.test/callback"},
		}

		_, err := p.ExchangeAuthorizationCode(context.Background(), client, "auth-code", "")
		require.NoError(t, err)

		_, hasSecret := captured["client_secret"]
		assert.False(t, hasSecret)
		_, hasVerifier := captured["code_verifier"]
		assert.False(t, hasVerifier)
	})

	t.Run("fails without a registered redirect URI", func(t *testing.T) {
		p := newNetworkProvider(t, "https://project.test", nil)

		_, err := p.ExchangeAuthorizationCode(context.Background(), &ClientInformation{ClientID: "c"}, "code", "")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrClientRedirectURIRequired)
	})

	t.Run("backend failure includes status code and phrase", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "bad request", http.StatusBadRequest)
		}))
		defer srv.Close()

		p := newNetworkProvider(t, srv.URL, nil)
		client := &ClientInformation{ClientID: "c", RedirectURIs: []string{"https://app.test/cb"}}

		_, err := p.ExchangeAuthorizationCode(context.Background(), client, "bad-code", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Token exchange failed")
		assert.Contains(t, err.Error(), "400")

		var backendErr *BackendError
		require.True(t, errors.As(err, &backendErr))
		assert.Equal(t, http.StatusBadRequest, backendErr.StatusCode)
	})

	t.Run("malformed token payload fails validation", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(t, w, map[string]string{"token_type": "bearer"})
		}))
		defer srv.Close()

		p := newNetworkProvider(t, srv.URL, nil)
		client := &ClientInformation{ClientID: "c", RedirectURIs: []string{"https://app.test/cb"}}

		_, err := p.ExchangeAuthorizationCode(context.Background(), client, "code", "")
		require.Error(t, err)

		var validationErr *ValidationError
		assert.True(t, errors.As(err, &validationErr))
	})
}

func TestExchangeRefreshToken(t *testing.T) {
	t.Run("posts the expected form with scopes", func(t *testing.T) {
		var captured url.Values
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			captured = r.PostForm
			writeJSON(t, w, Tokens{AccessToken: "at2", TokenType: "bearer", RefreshToken: "rt2"})
		}))
		defer srv.Close()

		p := newNetworkProvider(t, srv.URL, nil)
		client := &ClientInformation{ClientID: "client-123", ClientSecret: "s3cret"}

		tokens, err := p.ExchangeRefreshToken(context.Background(), client, "rt1", []string{"openid", "offline_access"})
		require.NoError(t, err)
		assert.Equal(t, "at2", tokens.AccessToken)
		assert.Equal(t, "rt2", tokens.RefreshToken)

		assert.Equal(t, "refresh_token", captured.Get("grant_type"))
		assert.Equal(t, "client-123", captured.Get("client_id"))
		assert.Equal(t, "rt1", captured.Get("refresh_token"))
		assert.Equal(t, "s3cret", captured.Get("client_secret"))
		assert.Equal(t, "openid offline_access", captured.Get("scope"))
	})

	t.Run("omits scope when no scopes requested", func(t *testing.T) {
		var captured url.Values
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			captured = r.PostForm
			writeJSON(t, w, Tokens{AccessToken: "at2", TokenType: "bearer"})
		}))
		defer srv.Close()

		p := newNetworkProvider(t, srv.URL, nil)

		_, err := p.ExchangeRefreshToken(context.Background(), &ClientInformation{ClientID: "c"}, "rt1", nil)
		require.NoError(t, err)

		_, hasScope := captured["scope"]
		assert.False(t, hasScope)
	})

	t.Run("backend failure carries the status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", http.StatusUnauthorized)
		}))
		defer srv.Close()

		p := newNetworkProvider(t, srv.URL, nil)

		_, err := p.ExchangeRefreshToken(context.Background(), &ClientInformation{ClientID: "c"}, "rt1", nil)
		require.Error(t, err)

		var backendErr *BackendError
		require.True(t, errors.As(err, &backendErr))
		assert.Equal(t, http.StatusUnauthorized, backendErr.StatusCode)
	})
}

func TestVerifyAccessToken(t *testing.T) {
	t.Run("inactive token short-circuits after one call", func(t *testing.T) {
		var calls atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			require.Equal(t, "/admin/oauth2/introspect", r.URL.Path)
			writeJSON(t, w, Introspection{Active: false})
		}))
		defer srv.Close()

		p := newNetworkProvider(t, srv.URL, nil)

		_, err := p.VerifyAccessToken(context.Background(), "expired-token")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTokenNotActive)
		assert.Contains(t, err.Error(), "not active")
		assert.Equal(t, int64(1), calls.Load(), "client list must not be fetched for inactive tokens")
	})

	t.Run("unknown client fails after two calls", func(t *testing.T) {
		var calls atomic.Int64
		mux := http.NewServeMux()
		mux.HandleFunc("/admin/oauth2/introspect", func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			writeJSON(t, w, Introspection{Active: true, ClientID: "ghost-client"})
		})
		mux.HandleFunc("/admin/clients", func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			writeJSON(t, w, []ClientInformation{{ClientID: "other-client"}})
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		p := newNetworkProvider(t, srv.URL, nil)

		_, err := p.VerifyAccessToken(context.Background(), "orphan-token")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrClientIDMismatch)
		assert.Contains(t, err.Error(), "mismatch")
		assert.Equal(t, int64(2), calls.Load())
	})

	t.Run("active token with known client succeeds", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/admin/oauth2/introspect", func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "the-token", r.PostForm.Get("token"))
			assert.Equal(t, "access_token", r.PostForm.Get("token_type_hint"))
			writeJSON(t, w, Introspection{Active: true, ClientID: "client-123", Scope: "openid offline_access", Exp: 1900000000})
		})
		mux.HandleFunc("/admin/clients", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(t, w, []ClientInformation{{ClientID: "client-123"}})
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		p := newNetworkProvider(t, srv.URL, nil)

		info, err := p.VerifyAccessToken(context.Background(), "the-token")
		require.NoError(t, err)
		assert.Equal(t, "the-token", info.Token)
		assert.Equal(t, "client-123", info.ClientID)
		assert.Equal(t, []string{"openid", "offline_access"}, info.Scopes)
		assert.Equal(t, int64(1900000000), info.ExpiresAt)
	})

	t.Run("absent scope yields empty scope list", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("/admin/oauth2/introspect", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(t, w, Introspection{Active: true, ClientID: "client-123"})
		})
		mux.HandleFunc("/admin/clients", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(t, w, []ClientInformation{{ClientID: "client-123"}})
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		p := newNetworkProvider(t, srv.URL, nil)

		info, err := p.VerifyAccessToken(context.Background(), "the-token")
		require.NoError(t, err)
		assert.NotNil(t, info.Scopes)
		assert.Empty(t, info.Scopes)
	})

	t.Run("introspection failure includes status text", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "down", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		p := newNetworkProvider(t, srv.URL, nil)

		_, err := p.VerifyAccessToken(context.Background(), "the-token")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Token introspection failed")
		assert.Contains(t, err.Error(), "Service Unavailable")
	})

	t.Run("network backend sends bearer introspection auth", func(t *testing.T) {
		var auth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			writeJSON(t, w, Introspection{Active: false})
		}))
		defer srv.Close()

		p := newNetworkProvider(t, srv.URL, nil)
		_, _ = p.VerifyAccessToken(context.Background(), "t")

		assert.Equal(t, "Bearer network-api-key", auth)
	})

	t.Run("hydra backend sends basic introspection auth", func(t *testing.T) {
		var auth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			writeJSON(t, w, Introspection{Active: false})
		}))
		defer srv.Close()

		p, err := New(Config{
			ProviderType:  ProviderTypeHydra,
			Endpoints:     testEndpoints(srv.URL),
			HydraAdminURL: srv.URL,
			HydraAPIKey:   "hydra-api-key",
		})
		require.NoError(t, err)
		_, _ = p.VerifyAccessToken(context.Background(), "t")

		expected := "Basic " + base64.StdEncoding.EncodeToString([]byte("hydra-api-key"))
		assert.Equal(t, expected, auth)
	})
}

func TestRevokeTokenCapability(t *testing.T) {
	t.Run("absent without a revocation URL", func(t *testing.T) {
		p := newNetworkProvider(t, "https://project.test", nil)

		_, ok := p.(TokenRevoker)
		assert.False(t, ok, "revocation must be structurally absent")
	})

	t.Run("present and performs one POST per call", func(t *testing.T) {
		var calls atomic.Int64
		var captured url.Values
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/oauth2/revoke", r.URL.Path)
			require.NoError(t, r.ParseForm())
			captured = r.PostForm
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		p := newNetworkProvider(t, srv.URL, func(cfg *Config) {
			cfg.Endpoints.RevocationURL = srv.URL + "/oauth2/revoke"
		})

		revoker, ok := p.(TokenRevoker)
		require.True(t, ok, "revocation must be present when configured")

		client := &ClientInformation{ClientID: "client-123", ClientSecret: "s3cret"}
		err := revoker.RevokeToken(context.Background(), client, RevocationRequest{
			Token:         "doomed-token",
			TokenTypeHint: "refresh_token",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), calls.Load())

		assert.Equal(t, "doomed-token", captured.Get("token"))
		assert.Equal(t, "client-123", captured.Get("client_id"))
		assert.Equal(t, "s3cret", captured.Get("client_secret"))
		assert.Equal(t, "refresh_token", captured.Get("token_type_hint"))
	})

	t.Run("nil client is a public revocation request", func(t *testing.T) {
		var captured url.Values
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			captured = r.PostForm
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		p := newNetworkProvider(t, srv.URL, func(cfg *Config) {
			cfg.Endpoints.RevocationURL = srv.URL + "/oauth2/revoke"
		})

		revoker := p.(TokenRevoker)
		err := revoker.RevokeToken(context.Background(), nil, RevocationRequest{Token: "orphan-token"})
		require.NoError(t, err)

		assert.Equal(t, "orphan-token", captured.Get("token"))
		_, hasClientID := captured["client_id"]
		assert.False(t, hasClientID)
		_, hasSecret := captured["client_secret"]
		assert.False(t, hasSecret)
	})

	t.Run("omits the type hint when unset", func(t *testing.T) {
		var captured url.Values
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			captured = r.PostForm
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		p := newNetworkProvider(t, srv.URL, func(cfg *Config) {
			cfg.Endpoints.RevocationURL = srv.URL + "/oauth2/revoke"
		})

		revoker := p.(TokenRevoker)
		err := revoker.RevokeToken(context.Background(), &ClientInformation{ClientID: "c"}, RevocationRequest{Token: "t"})
		require.NoError(t, err)

		_, hasHint := captured["token_type_hint"]
		assert.False(t, hasHint)
	})

	t.Run("backend failure carries the status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", http.StatusForbidden)
		}))
		defer srv.Close()

		p := newNetworkProvider(t, srv.URL, func(cfg *Config) {
			cfg.Endpoints.RevocationURL = srv.URL + "/oauth2/revoke"
		})

		revoker := p.(TokenRevoker)
		err := revoker.RevokeToken(context.Background(), &ClientInformation{ClientID: "c"}, RevocationRequest{Token: "t"})
		require.Error(t, err)

		var backendErr *BackendError
		require.True(t, errors.As(err, &backendErr))
		assert.Equal(t, http.StatusForbidden, backendErr.StatusCode)
	})
}

// metricsSpy records backend request metrics for assertions.
type metricsSpy struct {
	operations  []string
	statusCodes []int
}

func (m *metricsSpy) RecordBackendRequest(_ context.Context, operation string, statusCode int, _ time.Duration) {
	m.operations = append(m.operations, operation)
	m.statusCodes = append(m.statusCodes, statusCode)
}

func TestProviderRecordsMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, Introspection{Active: false})
	}))
	defer srv.Close()

	p := newNetworkProvider(t, srv.URL, nil)

	// SetMetrics lives on *Provider; the constructed value embeds it.
	type metricsSetter interface{ SetMetrics(MetricsRecorder) }
	setter, ok := p.(metricsSetter)
	require.True(t, ok)

	spy := &metricsSpy{}
	setter.SetMetrics(spy)

	_, _ = p.VerifyAccessToken(context.Background(), "t")
	require.Len(t, spy.operations, 1)
	assert.Equal(t, "introspect", spy.operations[0])
	assert.Equal(t, http.StatusOK, spy.statusCodes[0])
}
