package ory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetClient(t *testing.T) {
	t.Run("network backend calls the project admin endpoint with bearer auth", func(t *testing.T) {
		var method, path, auth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			method = r.Method
			path = r.URL.Path
			auth = r.Header.Get("Authorization")
			writeJSON(t, w, []ClientInformation{{ClientID: "client-123"}})
		}))
		defer srv.Close()

		p := newNetworkProvider(t, srv.URL, nil)

		client, err := p.ClientsStore().GetClient(context.Background(), "client-123")
		require.NoError(t, err)
		require.NotNil(t, client)

		assert.Equal(t, http.MethodGet, method)
		assert.Equal(t, "/admin/clients", path)
		assert.Equal(t, "Bearer network-api-key", auth)
	})

	t.Run("hydra backend targets the hydra admin URL", func(t *testing.T) {
		var path, auth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path = r.URL.Path
			auth = r.Header.Get("Authorization")
			writeJSON(t, w, []ClientInformation{{ClientID: "client-123"}})
		}))
		defer srv.Close()

		p, err := New(Config{
			ProviderType:  ProviderTypeHydra,
			Endpoints:     testEndpoints(srv.URL),
			HydraAdminURL: srv.URL,
			HydraAPIKey:   "hydra-api-key",
		})
		require.NoError(t, err)

		client, err := p.ClientsStore().GetClient(context.Background(), "client-123")
		require.NoError(t, err)
		require.NotNil(t, client)

		assert.Equal(t, "/admin/clients", path)
		assert.Equal(t, "Bearer hydra-api-key", auth)
	})

	t.Run("missing client is not found, not an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(t, w, []ClientInformation{{ClientID: "other-client"}})
		}))
		defer srv.Close()

		p := newNetworkProvider(t, srv.URL, nil)

		client, err := p.ClientsStore().GetClient(context.Background(), "missing-id")
		require.NoError(t, err)
		assert.Nil(t, client)
	})

	t.Run("every lookup re-fetches the full list", func(t *testing.T) {
		var calls atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			writeJSON(t, w, []ClientInformation{{ClientID: "client-123"}})
		}))
		defer srv.Close()

		p := newNetworkProvider(t, srv.URL, nil)
		store := p.ClientsStore()

		for range 3 {
			_, err := store.GetClient(context.Background(), "client-123")
			require.NoError(t, err)
		}
		assert.Equal(t, int64(3), calls.Load())
	})

	t.Run("backend failure includes the status text", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "down", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		p := newNetworkProvider(t, srv.URL, nil)

		_, err := p.ClientsStore().GetClient(context.Background(), "client-123")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Failed to fetch clients")
		assert.Contains(t, err.Error(), "Service Unavailable")

		var backendErr *BackendError
		require.True(t, errors.As(err, &backendErr))
		assert.Equal(t, http.StatusServiceUnavailable, backendErr.StatusCode)
	})

	t.Run("malformed list fails validation", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"not": "an array"}`))
		}))
		defer srv.Close()

		p := newNetworkProvider(t, srv.URL, nil)

		_, err := p.ClientsStore().GetClient(context.Background(), "client-123")
		require.Error(t, err)

		var validationErr *ValidationError
		assert.True(t, errors.As(err, &validationErr))
	})

	t.Run("client without an ID fails validation", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[{"scope": "openid"}]`))
		}))
		defer srv.Close()

		p := newNetworkProvider(t, srv.URL, nil)

		_, err := p.ClientsStore().GetClient(context.Background(), "client-123")
		require.Error(t, err)

		var validationErr *ValidationError
		assert.True(t, errors.As(err, &validationErr))
	})
}

func TestRegisterClientCapability(t *testing.T) {
	t.Run("absent without a registration URL", func(t *testing.T) {
		p := newNetworkProvider(t, "https://project.test", nil)

		_, ok := p.ClientsStore().(ClientRegistrar)
		assert.False(t, ok, "registration must be structurally absent")
	})

	t.Run("present and posts the client JSON", func(t *testing.T) {
		var path string
		var received ClientInformation
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path = r.URL.Path
			require.Equal(t, http.MethodPost, r.Method)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

			received.ClientSecret = "issued-secret"
			w.WriteHeader(http.StatusCreated)
			writeJSON(t, w, received)
		}))
		defer srv.Close()

		p := newNetworkProvider(t, srv.URL, func(cfg *Config) {
			cfg.Endpoints.RegistrationURL = srv.URL + "/oauth2/register"
		})

		registrar, ok := p.ClientsStore().(ClientRegistrar)
		require.True(t, ok, "registration must be present when configured")

		registered, err := registrar.RegisterClient(context.Background(), &ClientInformation{
			ClientID:     "client-new",
			RedirectURIs: []string{"https://app.test/callback"},
			Scope:        "openid",
		})
		require.NoError(t, err)

		assert.Equal(t, "/oauth2/register", path)
		assert.Equal(t, "client-new", received.ClientID)
		assert.Equal(t, "issued-secret", registered.ClientSecret)
	})

	t.Run("registration failure carries the status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "conflict", http.StatusConflict)
		}))
		defer srv.Close()

		p := newNetworkProvider(t, srv.URL, func(cfg *Config) {
			cfg.Endpoints.RegistrationURL = srv.URL + "/oauth2/register"
		})

		registrar := p.ClientsStore().(ClientRegistrar)
		_, err := registrar.RegisterClient(context.Background(), &ClientInformation{ClientID: "client-new"})
		require.Error(t, err)

		var backendErr *BackendError
		require.True(t, errors.As(err, &backendErr))
		assert.Equal(t, http.StatusConflict, backendErr.StatusCode)
		assert.Contains(t, err.Error(), "Client registration failed")
	})
}
