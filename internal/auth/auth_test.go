package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Annany2002/cadastro-backend/api/models"
	"github.com/Annany2002/cadastro-backend/internal/domain"
)

const secret = "test_secret_key_for_unit_tests_1234567890"

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("s3nha-forte")
	require.NoError(t, err)
	assert.NotEqual(t, "s3nha-forte", hash)
	assert.True(t, CheckPasswordHash("s3nha-forte", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
	assert.False(t, CheckPasswordHash("s3nha-forte", "not-a-hash"))
}

func TestJWTRoundTrip(t *testing.T) {
	token, err := GenerateJWT(domain.Account{ID: 7, Username: "ana"}, secret, time.Minute)
	require.NoError(t, err)

	claims, err := ValidateJWT(token, secret)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.AccountID)
	assert.Equal(t, "ana", claims.Username)
}

func TestValidateJWTErrors(t *testing.T) {
	expired, err := GenerateJWT(domain.Account{ID: 7, Username: "ana"}, secret, -time.Minute)
	require.NoError(t, err)

	noAccount, err := jwt.NewWithClaims(jwt.SigningMethodHS256, models.CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	good, err := GenerateJWT(domain.Account{ID: 7, Username: "ana"}, secret, time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		secret string
		want   error
	}{
		{"malformed", "not.a.jwt", secret, ErrTokenMalformed},
		{"expired", expired, secret, ErrTokenExpired},
		{"wrong secret", good, "another-secret", ErrTokenInvalid},
		{"missing account", noAccount, secret, ErrTokenClaimsInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateJWT(tt.token, tt.secret)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
