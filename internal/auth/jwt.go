// Package auth issues and checks the browser session token, hashes passwords,
// and wraps the optional GitHub sign-in.
//
// SESSION TOKEN FLOW:
//  1. POST /api/auth/login succeeds → the handler issues a JWT whose subject is
//     the identity ID and stores it in the HttpOnly "token" cookie
//  2. On later requests RequireAuth validates the JWT and asks the session
//     service whether that identity is still the active one
//  3. Logout clears the active session, so every outstanding cookie stops
//     working even before it expires
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"<identity id>","iss":"bookburst","exp":1234567890}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/juju/clock"
)

const (
	issuer = "bookburst"

	// SessionTTL is how long a session cookie stays valid.
	SessionTTL = 7 * 24 * time.Hour

	minSecretLength = 16
)

// ErrTokenExpired is returned by Verify for a well-signed token past its expiry.
var ErrTokenExpired = errors.New("auth: token expired")

// Token is a signed session token and the moment it stops being accepted.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// TokenService signs and verifies session tokens with one HMAC secret.
// Issue and Verify read the time from the same clock.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

// NewTokenService creates a TokenService issuing tokens valid for SessionTTL.
func NewTokenService(secret string, clk clock.Clock) (*TokenService, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("auth: JWT secret must be at least %d characters", minSecretLength)
	}
	return &TokenService{secret: []byte(secret), ttl: SessionTTL, clock: clk}, nil
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

// Issue signs a token whose subject is identityID.
func (s *TokenService) Issue(identityID string) (Token, error) {
	now := s.clock.Now()
	expires := now.Add(s.ttl)

	c := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identityID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return Token{}, fmt.Errorf("auth: signing token: %w", err)
	}
	return Token{Value: signed, ExpiresAt: expires}, nil
}

// Verify checks a token's signature, issuer and expiry and returns the
// identity ID it was issued for.
//
// Only HS256 is accepted, so "none" and algorithm-confusion tokens fail.
func (s *TokenService) Verify(value string) (string, error) {
	var c sessionClaims
	_, err := jwt.ParseWithClaims(value, &c,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrTokenExpired
	case err != nil:
		return "", fmt.Errorf("auth: invalid token: %w", err)
	case c.Subject == "":
		return "", errors.New("auth: token has no subject")
	}
	return c.Subject, nil
}
