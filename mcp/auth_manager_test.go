package mcp

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-key")

func newTestAuthManager(t *testing.T, cfg AuthConfig) *AuthManager {
	t.Helper()
	am, err := NewAuthManager(cfg)
	require.NoError(t, err)
	return am
}

func TestNewAuthManager(t *testing.T) {
	t.Run("requires a secret when enabled", func(t *testing.T) {
		_, err := NewAuthManager(AuthConfig{Enabled: true})
		assert.Error(t, err)
	})

	t.Run("disabled gate needs no secret", func(t *testing.T) {
		_, err := NewAuthManager(AuthConfig{})
		assert.NoError(t, err)
	})
}

func TestAuthorizeDisabled(t *testing.T) {
	am := newTestAuthManager(t, AuthConfig{})

	authCtx, err := am.Authorize("")
	require.NoError(t, err)
	assert.Equal(t, "anonymous", authCtx.Subject)
}

func TestAuthorize(t *testing.T) {
	am := newTestAuthManager(t, AuthConfig{Enabled: true, JWTSecret: testSecret})

	t.Run("missing header", func(t *testing.T) {
		_, err := am.Authorize("")
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("non-bearer scheme", func(t *testing.T) {
		_, err := am.Authorize("Basic dXNlcjpwYXNz")
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := am.Authorize("Bearer not.a.jwt")
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		other := newTestAuthManager(t, AuthConfig{Enabled: true, JWTSecret: []byte("other-secret")})
		token, err := other.GenerateToken("alice", nil, time.Hour)
		require.NoError(t, err)

		_, err = am.Authorize("Bearer " + token)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})

	t.Run("expired token is a permission failure", func(t *testing.T) {
		token, err := am.GenerateToken("alice", nil, -time.Hour)
		require.NoError(t, err)

		_, err = am.Authorize("Bearer " + token)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := am.GenerateToken("alice", []string{"time:read", "time:convert"}, time.Hour)
		require.NoError(t, err)

		authCtx, err := am.Authorize("Bearer " + token)
		require.NoError(t, err)
		assert.Equal(t, "alice", authCtx.Subject)
		assert.True(t, authCtx.HasScope("time:read"))
		assert.False(t, authCtx.HasScope("time:admin"))
	})

	t.Run("non-HMAC algorithm is rejected", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "eve"})
		token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = am.Authorize("Bearer " + token)
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestAuthorizeRequiredScopes(t *testing.T) {
	am := newTestAuthManager(t, AuthConfig{
		Enabled:        true,
		JWTSecret:      testSecret,
		RequiredScopes: []string{"time:read"},
	})

	t.Run("token without the scope is forbidden", func(t *testing.T) {
		token, err := am.GenerateToken("bob", []string{"other:scope"}, time.Hour)
		require.NoError(t, err)

		_, err = am.Authorize("Bearer " + token)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("token with the scope passes", func(t *testing.T) {
		token, err := am.GenerateToken("bob", []string{"time:read"}, time.Hour)
		require.NoError(t, err)

		_, err = am.Authorize("Bearer " + token)
		assert.NoError(t, err)
	})
}

func TestAuthorizeTokenCache(t *testing.T) {
	am := newTestAuthManager(t, AuthConfig{
		Enabled:       true,
		JWTSecret:     testSecret,
		TokenCacheTTL: time.Minute,
	})

	token, err := am.GenerateToken("carol", []string{"time:read"}, time.Hour)
	require.NoError(t, err)

	first, err := am.Authorize("Bearer " + token)
	require.NoError(t, err)

	// Second pass is served from the cache and must agree with the first.
	second, err := am.Authorize("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, first.Subject, second.Subject)
	assert.Equal(t, first.Scopes, second.Scopes)

	am.mu.RLock()
	cached := len(am.cache)
	am.mu.RUnlock()
	assert.Equal(t, 1, cached)
}
