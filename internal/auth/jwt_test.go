package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signHS256(t *testing.T, secret string, claimsMap jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claimsMap)
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestVerifyValidToken(t *testing.T) {
	req := require.New(t)
	v, err := NewVerifierHS256(testSecret)
	req.NoError(err)

	tokenStr := signHS256(t, testSecret, jwt.MapClaims{
		"userId": "user-1",
		"email":  "user1@example.com",
		"exp":    time.Now().Add(time.Hour).Unix(),
	})

	ident, err := v.Verify(tokenStr)
	req.NoError(err)
	req.Equal("user-1", ident.UserID)
	req.Equal("user1@example.com", ident.Email)
}

func TestVerifyRejects(t *testing.T) {
	req := require.New(t)
	v, err := NewVerifierHS256(testSecret)
	req.NoError(err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"garbage", "not.a.token"},
		{"wrong secret", signHS256(t, "other-secret", jwt.MapClaims{"userId": "u"})},
		{"expired", signHS256(t, testSecret, jwt.MapClaims{
			"userId": "u",
			"exp":    time.Now().Add(-time.Hour).Unix(),
		})},
		{"no userId claim", signHS256(t, testSecret, jwt.MapClaims{"email": "a@b.c"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			require.Error(t, err)
		})
	}
}

func TestParseBearer(t *testing.T) {
	req := require.New(t)

	token, err := ParseBearer("Bearer abc123")
	req.NoError(err)
	req.Equal("abc123", token)

	token, err = ParseBearer("bearer abc123")
	req.NoError(err)
	req.Equal("abc123", token)

	_, err = ParseBearer("")
	req.Error(err)

	_, err = ParseBearer("Token abc123")
	req.Error(err)
}
