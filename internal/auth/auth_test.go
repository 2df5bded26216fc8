package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := CreateAccessToken("secret", 42, "judge", time.Hour)
	require.NoError(t, err)

	claims, err := DecodeAccessToken("secret", tok)
	require.NoError(t, err)
	assert.Equal(t, "judge", claims.Role)

	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestDecodeRejectsWrongSecret(t *testing.T) {
	tok, err := CreateAccessToken("secret", 42, "judge", time.Hour)
	require.NoError(t, err)

	_, err = DecodeAccessToken("other", tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecodeRejectsExpired(t *testing.T) {
	tok, err := CreateAccessToken("secret", 42, "judge", -time.Minute)
	require.NoError(t, err)

	_, err = DecodeAccessToken("secret", tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecodeUnverifiedIgnoresSignatureButNotExpiry(t *testing.T) {
	tok, err := CreateAccessToken("any-old-secret", 7, "admin", time.Hour)
	require.NoError(t, err)

	claims, err := DecodeUnverified(tok)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Role)

	expired, err := CreateAccessToken("any-old-secret", 7, "admin", -time.Minute)
	require.NoError(t, err)
	_, err = DecodeUnverified(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2hunter2")
	require.NoError(t, err)
	assert.True(t, VerifyPassword("hunter2hunter2", hash))
	assert.False(t, VerifyPassword("wrong", hash))
}

func TestHashTokenIsStableHex(t *testing.T) {
	a := HashToken("tok")
	b := HashToken("tok")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, HashToken("other"))
}
