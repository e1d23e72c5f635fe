package auth

import (
	"testing"
	"time"

	"ctfbot/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := CreateToken("guild", "user")
	require.NoError(t, err)

	claims, err := ClaimsFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, "guild", claims.ServerId)
	assert.Equal(t, "user", claims.UserId)
	assert.InDelta(t, time.Now().Add(TokenLifetime).Unix(), claims.Exp, 5)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"server_id": "guild",
		"user_id":   "user",
		"exp":       time.Now().Add(-time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(config.Env().JWTSecret))
	require.NoError(t, err)

	_, err = ClaimsFromToken(signed)
	assert.Error(t, err)
}

func TestForeignSignatureIsRejected(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"server_id": "guild",
		"exp":       time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("not the secret"))
	require.NoError(t, err)

	_, err = ClaimsFromToken(signed)
	assert.Error(t, err)
}

func TestTokenWithoutServerIsRejected(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "user",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(config.Env().JWTSecret))
	require.NoError(t, err)

	_, err = ClaimsFromToken(signed)
	assert.Error(t, err)
}
