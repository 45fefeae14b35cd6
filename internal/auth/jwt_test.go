package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret, userID, username string) string {
	t.Helper()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestVerifier_Verify(t *testing.T) {
	v := NewVerifier("sekret")

	id, err := v.Verify(signToken(t, "sekret", "u1", "alice"))
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "u1", Username: "alice"}, id)
}

func TestVerifier_UsernameFallsBackToUserID(t *testing.T) {
	v := NewVerifier("sekret")

	id, err := v.Verify(signToken(t, "sekret", "u1", ""))
	require.NoError(t, err)
	assert.Equal(t, "u1", id.Username)
}

func TestVerifier_Rejects(t *testing.T) {
	v := NewVerifier("sekret")

	_, err := v.Verify(signToken(t, "wrong-secret", "u1", "alice"))
	assert.Error(t, err)

	_, err = v.Verify("not-a-token")
	assert.Error(t, err)

	_, err = v.Verify(signToken(t, "sekret", "", "alice"))
	assert.Error(t, err, "a token without a user id is useless")
}

func TestParseBearerToken(t *testing.T) {
	token, err := ParseBearerToken("Bearer abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	_, err = ParseBearerToken("")
	assert.Error(t, err)
	_, err = ParseBearerToken("Basic abc")
	assert.Error(t, err)
}
