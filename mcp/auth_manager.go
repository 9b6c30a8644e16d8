package mcp

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Authorization failures. ErrUnauthenticated means no acceptable credential
// was presented at all; ErrUnauthorized means the credential was understood
// but does not grant access. Transports map them to 401 and 403.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUnauthorized    = errors.New("unauthorized")
)

// AuthConfig configures the bearer-token gate.
type AuthConfig struct {
	Enabled        bool
	JWTSecret      []byte
	RequiredScopes []string
	// TokenCacheTTL bounds how long a verified token is trusted without
	// re-verification. Zero disables the cache.
	TokenCacheTTL time.Duration
}

// AuthContext describes the verified caller of a request.
type AuthContext struct {
	Subject   string
	Scopes    []string
	ExpiresAt time.Time
}

// HasScope reports whether the caller holds the named scope.
func (a *AuthContext) HasScope(scope string) bool {
	for _, s := range a.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

type cachedToken struct {
	authCtx   AuthContext
	expiresAt time.Time
}

// AuthManager verifies bearer tokens statelessly: a token is accepted purely
// on its HS256 signature, expiry and scopes, with no token store behind it.
// A small TTL-bounded cache skips repeated signature checks for hot tokens.
type AuthManager struct {
	config AuthConfig

	mu    sync.RWMutex
	cache map[string]cachedToken
}

const tokenCacheMaxEntries = 1024

// NewAuthManager creates an AuthManager for the given configuration.
func NewAuthManager(config AuthConfig) (*AuthManager, error) {
	if config.Enabled && len(config.JWTSecret) == 0 {
		return nil, fmt.Errorf("auth is enabled but no JWT secret is configured")
	}
	return &AuthManager{
		config: config,
		cache:  make(map[string]cachedToken),
	}, nil
}

// Enabled reports whether the gate is active.
func (am *AuthManager) Enabled() bool {
	return am.config.Enabled
}

// Authorize checks an Authorization header value and returns the verified
// caller. When the gate is disabled every request passes with an anonymous
// context. Errors wrap ErrUnauthenticated (missing or malformed credential,
// bad signature) or ErrUnauthorized (expired token, insufficient scope).
func (am *AuthManager) Authorize(authorizationHeader string) (*AuthContext, error) {
	if !am.config.Enabled {
		return &AuthContext{Subject: "anonymous"}, nil
	}

	tokenString, err := extractBearerToken(authorizationHeader)
	if err != nil {
		return nil, err
	}

	if authCtx, ok := am.cachedVerification(tokenString); ok {
		if err := am.checkScopes(authCtx); err != nil {
			return nil, err
		}
		return authCtx, nil
	}

	authCtx, expiresAt, err := am.verifyToken(tokenString)
	if err != nil {
		return nil, err
	}

	am.storeVerification(tokenString, authCtx, expiresAt)

	if err := am.checkScopes(authCtx); err != nil {
		return nil, err
	}
	return authCtx, nil
}

func extractBearerToken(header string) (string, error) {
	if header == "" {
		return "", fmt.Errorf("%w: missing Authorization header", ErrUnauthenticated)
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("%w: expected a Bearer credential", ErrUnauthenticated)
	}
	return strings.TrimSpace(token), nil
}

func (am *AuthManager) verifyToken(tokenString string) (*AuthContext, time.Time, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return am.config.JWTSecret, nil
	})
	if err != nil {
		// An expired token was a valid credential once; that is a
		// permission failure, not a missing credential.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, time.Time{}, fmt.Errorf("%w: token expired", ErrUnauthorized)
		}
		return nil, time.Time{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if !token.Valid {
		return nil, time.Time{}, fmt.Errorf("%w: invalid token", ErrUnauthenticated)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, time.Time{}, fmt.Errorf("%w: unexpected claims format", ErrUnauthenticated)
	}

	authCtx := &AuthContext{}
	if sub, ok := claims["sub"].(string); ok {
		authCtx.Subject = sub
	}
	if scope, ok := claims["scope"].(string); ok && scope != "" {
		authCtx.Scopes = strings.Fields(scope)
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		authCtx.ExpiresAt = exp.Time
	}

	return authCtx, authCtx.ExpiresAt, nil
}

func (am *AuthManager) checkScopes(authCtx *AuthContext) error {
	for _, required := range am.config.RequiredScopes {
		if !authCtx.HasScope(required) {
			return fmt.Errorf("%w: missing scope %q", ErrUnauthorized, required)
		}
	}
	return nil
}

func (am *AuthManager) cachedVerification(tokenString string) (*AuthContext, bool) {
	if am.config.TokenCacheTTL <= 0 {
		return nil, false
	}

	am.mu.RLock()
	entry, ok := am.cache[tokenString]
	am.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	authCtx := entry.authCtx
	return &authCtx, true
}

func (am *AuthManager) storeVerification(tokenString string, authCtx *AuthContext, tokenExpiry time.Time) {
	if am.config.TokenCacheTTL <= 0 {
		return
	}

	expiresAt := time.Now().Add(am.config.TokenCacheTTL)
	if !tokenExpiry.IsZero() && tokenExpiry.Before(expiresAt) {
		expiresAt = tokenExpiry
	}

	am.mu.Lock()
	defer am.mu.Unlock()
	if len(am.cache) >= tokenCacheMaxEntries {
		// Cheap eviction keeps the cache bounded without an LRU list.
		for k := range am.cache {
			delete(am.cache, k)
			break
		}
	}
	am.cache[tokenString] = cachedToken{authCtx: *authCtx, expiresAt: expiresAt}
}

// GenerateToken mints an HS256 token signed with the configured secret. The
// server never hands these out at runtime; this exists for operators and
// tests that need a valid credential.
func (am *AuthManager) GenerateToken(subject string, scopes []string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   subject,
		"scope": strings.Join(scopes, " "),
		"iat":   now.Unix(),
		"exp":   now.Add(expiresIn).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(am.config.JWTSecret)
}
