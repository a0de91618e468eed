package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestJWT() *JWTService {
	return NewJWTService(JWTConfig{SecretKey: "test-secret", AccessTokenExp: time.Hour, TokenIssuer: "schoollib"})
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := newTestJWT()
	token, expiresIn, err := svc.GenerateAccessToken(42, "librarian")
	require.NoError(t, err)
	assert.Equal(t, int64(3600), expiresIn)

	claims, err := svc.ValidateAndExtractClaims(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "librarian", claims.Username)
	assert.Equal(t, "schoollib", claims.Issuer)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	svc := newTestJWT()
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := svc.GenerateAccessToken(1, "old")
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.ValidateAndExtractClaims(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenSignedWithOtherSecretIsRejected(t *testing.T) {
	other := NewJWTService(JWTConfig{SecretKey: "other", AccessTokenExp: time.Hour})
	token, _, err := other.GenerateAccessToken(1, "x")
	require.NoError(t, err)

	_, err = newTestJWT().ValidateAndExtractClaims(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExtractBearerToken(t *testing.T) {
	tok, err := ExtractBearerToken("Bearer a.b.c")
	require.NoError(t, err)
	assert.Equal(t, "a.b.c", tok)

	tok, err = ExtractBearerToken("a.b.c")
	require.NoError(t, err)
	assert.Equal(t, "a.b.c", tok)

	_, err = ExtractBearerToken("Basic dXNlcg==")
	assert.ErrorIs(t, err, ErrInvalidFormat)
	_, err = ExtractBearerToken("")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := hashWithCost("s3cret-pass", bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "s3cret-pass"))
	assert.False(t, CheckPassword(hash, "wrong"))
}
