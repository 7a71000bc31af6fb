// Package jwtauth validates inbound JWTs against a remote JWKS and maps a
// configured claim to an Ory identity, creating the identity the first time
// the claim value is seen.
package jwtauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"

	"github.com/giantswarm/mcp-ory/internal/identity"
	"github.com/giantswarm/mcp-ory/internal/logging"
)

// DefaultIdentityClaim is the claim mapped to an identity identifier when
// none is configured.
const DefaultIdentityClaim = "sub"

// Common errors.
var (
	ErrNoToken         = errors.New("jwtauth: no token provided")
	ErrInvalidToken    = errors.New("jwtauth: invalid token")
	ErrInvalidIssuer   = errors.New("jwtauth: invalid issuer")
	ErrInvalidAudience = errors.New("jwtauth: invalid audience")
	ErrMissingJWKSURL  = errors.New("jwtauth: missing JWKS URL")
	ErrMissingClaim    = errors.New("jwtauth: token missing identity claim")
)

// Config contains configuration for the JWT validator.
type Config struct {
	// JWKSURL is the URL to fetch the JWKS from. Required.
	JWKSURL string

	// Issuer, when set, is matched against the token's iss claim.
	Issuer string

	// Audience, when set, must be present in the token's aud claim.
	Audience string

	// IdentityClaim is the claim mapped to an identity identifier.
	// Defaults to DefaultIdentityClaim.
	IdentityClaim string

	// Identities resolves and creates identities for validated claims.
	// Required for Authenticate; ValidateToken works without it.
	Identities *identity.Client

	// Logger receives structured logs. When nil, slog.Default() is used.
	Logger *slog.Logger
}

// Validator validates JWTs against a remote key set. The JWKS is fetched
// through an auto-refreshing cache, so repeated validations do not hammer
// the backend.
type Validator struct {
	jwksURL       string
	issuer        string
	audience      string
	identityClaim string
	jwksCache     *jwk.Cache
	identities    *identity.Client
	logger        *slog.Logger
}

// NewValidator registers the JWKS URL with an auto-refreshing cache and
// returns the validator. The context bounds the lifetime of the cache's
// background refresh.
func NewValidator(ctx context.Context, cfg Config) (*Validator, error) {
	if cfg.JWKSURL == "" {
		return nil, ErrMissingJWKSURL
	}

	cache := jwk.NewCache(ctx)
	if err := cache.Register(cfg.JWKSURL); err != nil {
		return nil, fmt.Errorf("failed to register JWKS URL: %w", err)
	}

	claim := cfg.IdentityClaim
	if claim == "" {
		claim = DefaultIdentityClaim
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Validator{
		jwksURL:       cfg.JWKSURL,
		issuer:        cfg.Issuer,
		audience:      cfg.Audience,
		identityClaim: claim,
		jwksCache:     cache,
		identities:    cfg.Identities,
		logger:        logger,
	}, nil
}

// keyFromJWKS resolves the signing key for a token from the cached key set.
func (v *Validator) keyFromJWKS(ctx context.Context, token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}

	kid, ok := token.Header["kid"].(string)
	if !ok {
		return nil, errors.New("token header missing kid")
	}

	keySet, err := v.jwksCache.Get(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}

	key, found := keySet.LookupKeyID(kid)
	if !found {
		return nil, fmt.Errorf("key ID %s not found in JWKS", kid)
	}

	var rawKey any
	if err := key.Raw(&rawKey); err != nil {
		return nil, fmt.Errorf("failed to get raw key: %w", err)
	}
	return rawKey, nil
}

// ValidateToken parses and validates a JWT, returning its claims.
func (v *Validator) ValidateToken(ctx context.Context, tokenString string) (jwt.MapClaims, error) {
	if tokenString == "" {
		return nil, ErrNoToken
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return v.keyFromJWKS(ctx, token)
	})
	if err != nil {
		v.logger.Debug("token validation failed",
			logging.Operation("validate_jwt"),
			logging.Token(tokenString),
			logging.Err(err))
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if v.issuer != "" {
		issuer, err := claims.GetIssuer()
		if err != nil || issuer != v.issuer {
			return nil, ErrInvalidIssuer
		}
	}

	if v.audience != "" {
		audience, err := claims.GetAudience()
		if err != nil {
			return nil, ErrInvalidAudience
		}
		if !containsAudience(audience, v.audience) {
			return nil, ErrInvalidAudience
		}
	}

	return claims, nil
}

// Authenticate validates the token, extracts the identity claim, and
// resolves it to an Ory identity, creating the identity on first sight.
func (v *Validator) Authenticate(ctx context.Context, tokenString string) (*identity.Identity, error) {
	claims, err := v.ValidateToken(ctx, tokenString)
	if err != nil {
		return nil, err
	}

	identifier, ok := claims[v.identityClaim].(string)
	if !ok || identifier == "" {
		return nil, fmt.Errorf("%w: %q", ErrMissingClaim, v.identityClaim)
	}

	if v.identities == nil {
		return nil, errors.New("jwtauth: no identity client configured")
	}

	ident, err := v.identities.Ensure(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve identity: %w", err)
	}

	v.logger.Debug("identity resolved from JWT",
		logging.Operation("authenticate_jwt"),
		logging.IdentityHash(identifier))

	return ident, nil
}

func containsAudience(audience jwt.ClaimStrings, want string) bool {
	for _, aud := range audience {
		if aud == want {
			return true
		}
	}
	return false
}
