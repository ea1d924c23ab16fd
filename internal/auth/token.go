// Package auth implements stateless bearer-token authentication: signing and
// verifying tokens, resolving the caller's principal on each request, and
// deciding which request paths require an identity.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenMalformed indicates a token that cannot be parsed.
	ErrTokenMalformed = errors.New("malformed token")
	// ErrBadSignature indicates a signature that does not match the
	// configured key.
	ErrBadSignature = errors.New("invalid token signature")
	// ErrTokenExpired indicates a well-formed, correctly signed token whose
	// expiry has passed.
	ErrTokenExpired = errors.New("token expired")
)

// TokenCodec issues and verifies HS256-signed tokens carrying a subject and
// expiry. The signing key is fixed at construction and never rotated. Claims
// use second-level precision.
type TokenCodec struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewTokenCodec(key []byte, ttl time.Duration) *TokenCodec {
	return &TokenCodec{key: key, ttl: ttl, now: time.Now}
}

// WithClock returns a copy of the codec using the given clock. Used in tests.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	return &TokenCodec{key: c.key, ttl: c.ttl, now: now}
}

// Issue produces a signed token with claims {sub, iat, exp} where
// exp = now + ttl.
func (c *TokenCodec) Issue(subject string) (string, error) {
	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
	})
	return token.SignedString(c.key)
}

// Verify parses and validates a token, returning its subject and expiry.
// The signature is checked before any claim is trusted; failures fold into
// ErrTokenMalformed, ErrBadSignature or ErrTokenExpired.
func (c *TokenCodec) Verify(tokenString string) (string, time.Time, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return c.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", time.Time{}, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return "", time.Time{}, ErrBadSignature
		default:
			return "", time.Time{}, ErrTokenMalformed
		}
	}
	if !token.Valid || claims.Subject == "" || claims.ExpiresAt == nil {
		return "", time.Time{}, ErrTokenMalformed
	}
	return claims.Subject, claims.ExpiresAt.Time, nil
}

// ValidForSubject reports whether the token is valid and was issued for the
// given subject. Used by the filter to re-check a token against the resolved
// account name before installing an identity.
func (c *TokenCodec) ValidForSubject(tokenString, subject string) bool {
	got, _, err := c.Verify(tokenString)
	return err == nil && got == subject
}
