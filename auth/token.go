// Package auth resolves opaque bearer credentials to user identifiers.
// Issuing accounts and credentials belongs to the identity service; the relay
// only validates tokens it is handed.
package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	relayerrors "chat-relay/errors"
)

// Claims is the payload carried inside a relay token.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Verifier checks tokens against a shared HMAC secret.
// An empty secret disables verification entirely, which is how tests and
// local development run.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	if secret == "" {
		return &Verifier{}
	}
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) Enabled() bool { return len(v.secret) > 0 }

// ResolveBearer extracts and validates the token from an Authorization header
// value and returns the user id it names.
func (v *Verifier) ResolveBearer(header string) (string, error) {
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
	if token == "" {
		return "", relayerrors.ErrInvalidToken
	}
	return v.Resolve(token)
}

// Resolve validates the signature and expiration of a token string.
func (v *Verifier) Resolve(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return "", relayerrors.ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return "", relayerrors.ErrInvalidToken
	}
	return claims.UserID, nil
}

// Sign creates a token for userID. It exists for the demo client and tests;
// production tokens come from the identity service.
func (v *Verifier) Sign(userID string, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "chat-relay",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
