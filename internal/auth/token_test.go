package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)

	token, expiresAt, err := tm.GenerateToken()
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.True(t, expiresAt.After(time.Now()))

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	require.True(t, claims.Admin)
	require.Equal(t, "admin", claims.Subject)
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	token, _, err := NewTokenManager("secret-a", 60).GenerateToken()
	require.NoError(t, err)

	_, err = NewTokenManager("secret-b", 60).ParseToken(token)
	require.Error(t, err)
}

func TestTokenRejectsGarbage(t *testing.T) {
	_, err := NewTokenManager("secret", 60).ParseToken("not.a.token")
	require.Error(t, err)
}

func TestAdminKeyHashAndVerify(t *testing.T) {
	hash, err := HashAdminKey("super-secret-key", 10)
	require.NoError(t, err)

	require.NoError(t, VerifyAdminKey(hash, "super-secret-key"))
	require.Error(t, VerifyAdminKey(hash, "wrong-key"))
}
