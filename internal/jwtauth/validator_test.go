package jwtauth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/mcp-ory/internal/identity"
)

const testKeyID = "test-key-1"

// testKeys generates a signing key and serves its public half as a JWKS.
type testKeys struct {
	private *rsa.PrivateKey
	jwksSrv *httptest.Server
}

func newTestKeys(t *testing.T) *testKeys {
	t.Helper()

	private, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	public, err := jwk.FromRaw(private.Public())
	require.NoError(t, err)
	require.NoError(t, public.Set(jwk.KeyIDKey, testKeyID))
	require.NoError(t, public.Set(jwk.AlgorithmKey, "RS256"))

	set := jwk.NewSet()
	require.NoError(t, set.AddKey(public))

	body, err := json.Marshal(set)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)

	return &testKeys{private: private, jwksSrv: srv}
}

// sign issues a token with the given claims, keyed by the test key.
func (k *testKeys) sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKeyID
	signed, err := token.SignedString(k.private)
	require.NoError(t, err)
	return signed
}

func (k *testKeys) newValidator(t *testing.T, mutate func(*Config)) *Validator {
	t.Helper()
	cfg := Config{JWKSURL: k.jwksSrv.URL}
	if mutate != nil {
		mutate(&cfg)
	}
	v, err := NewValidator(context.Background(), cfg)
	require.NoError(t, err)
	return v
}

func TestNewValidator(t *testing.T) {
	t.Run("requires a JWKS URL", func(t *testing.T) {
		_, err := NewValidator(context.Background(), Config{})
		assert.ErrorIs(t, err, ErrMissingJWKSURL)
	})

	t.Run("defaults the identity claim to sub", func(t *testing.T) {
		keys := newTestKeys(t)
		v := keys.newValidator(t, nil)
		assert.Equal(t, DefaultIdentityClaim, v.identityClaim)
	})
}

func TestValidateToken(t *testing.T) {
	keys := newTestKeys(t)

	t.Run("accepts a valid token", func(t *testing.T) {
		v := keys.newValidator(t, nil)
		token := keys.sign(t, jwt.MapClaims{
			"sub": "user@example.com",
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		claims, err := v.ValidateToken(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, "user@example.com", claims["sub"])
	})

	t.Run("rejects an empty token", func(t *testing.T) {
		v := keys.newValidator(t, nil)

		_, err := v.ValidateToken(context.Background(), "")
		assert.ErrorIs(t, err, ErrNoToken)
	})

	t.Run("rejects an expired token", func(t *testing.T) {
		v := keys.newValidator(t, nil)
		token := keys.sign(t, jwt.MapClaims{
			"sub": "user@example.com",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})

		_, err := v.ValidateToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("rejects a token signed by an unknown key", func(t *testing.T) {
		v := keys.newValidator(t, nil)

		otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
			"sub": "user@example.com",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		token.Header["kid"] = "unknown-key"
		signed, err := token.SignedString(otherKey)
		require.NoError(t, err)

		_, err = v.ValidateToken(context.Background(), signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("rejects a wrong issuer", func(t *testing.T) {
		v := keys.newValidator(t, func(cfg *Config) {
			cfg.Issuer = "https://expected.test"
		})
		token := keys.sign(t, jwt.MapClaims{
			"sub": "user@example.com",
			"iss": "https://other.test",
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		_, err := v.ValidateToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidIssuer)
	})

	t.Run("rejects a missing audience", func(t *testing.T) {
		v := keys.newValidator(t, func(cfg *Config) {
			cfg.Audience = "mcp-ory"
		})
		token := keys.sign(t, jwt.MapClaims{
			"sub": "user@example.com",
			"aud": "someone-else",
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		_, err := v.ValidateToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidAudience)
	})

	t.Run("accepts a matching audience among several", func(t *testing.T) {
		v := keys.newValidator(t, func(cfg *Config) {
			cfg.Audience = "mcp-ory"
		})
		token := keys.sign(t, jwt.MapClaims{
			"sub": "user@example.com",
			"aud": []string{"someone-else", "mcp-ory"},
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		_, err := v.ValidateToken(context.Background(), token)
		assert.NoError(t, err)
	})
}

// fakeIdentityServer fakes the Ory identities admin API with an in-memory
// identifier set.
func fakeIdentityServer(t *testing.T, known map[string]string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var createCalls atomic.Int64

	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/identities", func(w http.ResponseWriter, r *http.Request) {
		identifier := r.URL.Query().Get("credentials_identifier")
		w.Header().Set("Content-Type", "application/json")
		if id, ok := known[identifier]; ok {
			_ = json.NewEncoder(w).Encode([]identity.Identity{{ID: id, Traits: map[string]any{"email": identifier}}})
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})
	mux.HandleFunc("POST /admin/identities", func(w http.ResponseWriter, r *http.Request) {
		createCalls.Add(1)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		traits := body["traits"].(map[string]any)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(identity.Identity{ID: "id-created", Traits: traits})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &createCalls
}

func TestAuthenticate(t *testing.T) {
	keys := newTestKeys(t)

	newIdentityClient := func(t *testing.T, srvURL string) *identity.Client {
		t.Helper()
		c, err := identity.NewClient(identity.Config{ProjectURL: srvURL, APIKey: "key"})
		require.NoError(t, err)
		return c
	}

	t.Run("resolves an existing identity", func(t *testing.T) {
		srv, createCalls := fakeIdentityServer(t, map[string]string{"user@example.com": "id-existing"})
		v := keys.newValidator(t, func(cfg *Config) {
			cfg.Identities = newIdentityClient(t, srv.URL)
		})

		token := keys.sign(t, jwt.MapClaims{
			"sub": "user@example.com",
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		ident, err := v.Authenticate(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, "id-existing", ident.ID)
		assert.Equal(t, int64(0), createCalls.Load())
	})

	t.Run("creates the identity on first sight", func(t *testing.T) {
		srv, createCalls := fakeIdentityServer(t, nil)
		v := keys.newValidator(t, func(cfg *Config) {
			cfg.Identities = newIdentityClient(t, srv.URL)
		})

		token := keys.sign(t, jwt.MapClaims{
			"sub": "fresh@example.com",
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		ident, err := v.Authenticate(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, "id-created", ident.ID)
		assert.Equal(t, int64(1), createCalls.Load())
	})

	t.Run("uses the configured identity claim", func(t *testing.T) {
		srv, _ := fakeIdentityServer(t, map[string]string{"custom-value": "id-custom"})
		v := keys.newValidator(t, func(cfg *Config) {
			cfg.IdentityClaim = "ext_id"
			cfg.Identities = newIdentityClient(t, srv.URL)
		})

		token := keys.sign(t, jwt.MapClaims{
			"sub":    "ignored",
			"ext_id": "custom-value",
			"exp":    time.Now().Add(time.Hour).Unix(),
		})

		ident, err := v.Authenticate(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, "id-custom", ident.ID)
	})

	t.Run("fails when the claim is absent", func(t *testing.T) {
		srv, _ := fakeIdentityServer(t, nil)
		v := keys.newValidator(t, func(cfg *Config) {
			cfg.Identities = newIdentityClient(t, srv.URL)
		})

		token := keys.sign(t, jwt.MapClaims{
			"exp": time.Now().Add(time.Hour).Unix(),
		})

		_, err := v.Authenticate(context.Background(), token)
		assert.ErrorIs(t, err, ErrMissingClaim)
	})
}
