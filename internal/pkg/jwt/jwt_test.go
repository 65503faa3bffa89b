package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := NewJWTService("secret", time.Hour)

	token, expiresAt, err := svc.GenerateAccessToken(Claims{UserID: "user-1", CompanyID: "company-1"})
	require.NoError(t, err)
	assert.Greater(t, expiresAt, time.Now().Unix())

	claims, err := svc.ParseAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "company-1", claims.CompanyID)
}

func TestParseAccessToken_Rejects(t *testing.T) {
	svc := NewJWTService("secret", time.Hour)

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTService("other-secret", time.Hour)
		token, _, err := other.GenerateAccessToken(Claims{UserID: "u", CompanyID: "c"})
		require.NoError(t, err)

		_, err = svc.ParseAccessToken(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		expired := NewJWTService("secret", -time.Hour)
		token, _, err := expired.GenerateAccessToken(Claims{UserID: "u", CompanyID: "c"})
		require.NoError(t, err)

		_, err = svc.ParseAccessToken(token)
		assert.Error(t, err)
	})

	t.Run("refresh token", func(t *testing.T) {
		_, token, err := svc.JWTAuth().Encode(map[string]interface{}{
			"user_id": "u",
			"type":    "refresh",
			"exp":     time.Now().Add(time.Hour).Unix(),
		})
		require.NoError(t, err)

		_, err = svc.ParseAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing company", func(t *testing.T) {
		token, _, err := svc.GenerateAccessToken(Claims{UserID: "u"})
		require.NoError(t, err)

		_, err = svc.ParseAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
