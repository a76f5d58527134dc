package auth

import (
	"crypto/rsa"
	"errors"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is what a verified credential resolves to.
type Identity struct {
	UserID string
	Email  string
}

type claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Verifier validates bearer tokens issued by the auth service. HS256 with a
// shared secret or RS256 with the issuer's public key, depending on config.
type Verifier struct {
	secret []byte
	pub    *rsa.PublicKey
}

func NewVerifierHS256(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("empty jwt secret")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

func NewVerifierRS256(pubKeyPath string) (*Verifier, error) {
	b, err := os.ReadFile(pubKeyPath)
	if err != nil {
		return nil, err
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(b)
	if err != nil {
		return nil, err
	}
	return &Verifier{pub: pub}, nil
}

// Verify parses and validates the token and returns the identity it carries.
func (v *Verifier) Verify(tokenStr string) (*Identity, error) {
	if tokenStr == "" {
		return nil, ErrInvalidToken
	}

	keyFunc := func(t *jwt.Token) (interface{}, error) {
		if v.pub != nil {
			if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return v.pub, nil
		}
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	}

	token, err := jwt.ParseWithClaims(tokenStr, &claims{}, keyFunc)
	if err != nil {
		return nil, ErrInvalidToken
	}
	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid || c.UserID == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{UserID: c.UserID, Email: c.Email}, nil
}

// ParseBearer extracts the token from an Authorization header value.
func ParseBearer(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header empty")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", errors.New("invalid authorization header format")
	}
	return parts[1], nil
}
