// Package jwtx wraps github.com/golang-jwt/jwt/v5 with a small HMAC codec.
//
// The auth service signs access and refresh tokens with two separate
// secrets, so a refresh token can never be presented where an access token
// is expected. Each token kind gets its own Codec value.
package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrExpired reports a structurally valid, correctly signed token whose
	// expiry has passed. Callers distinguish this from the other failures
	// because the remedy differs: refresh instead of re-authenticate.
	ErrExpired = errors.New("jwtx: token expired")

	// ErrInvalidSignature reports a token signed with the wrong secret.
	ErrInvalidSignature = errors.New("jwtx: invalid signature")

	// ErrMalformed reports a token that could not be parsed at all.
	ErrMalformed = errors.New("jwtx: malformed token")
)

// Claims is the decoded payload of a token.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// Remaining returns the lifetime the token still has at time now.
// Negative when already expired.
func (c Claims) Remaining(now time.Time) time.Duration {
	return c.ExpiresAt.Sub(now)
}

// Codec mints and verifies HS256-signed tokens with a single secret.
type Codec struct {
	secret []byte
}

func NewCodec(secret []byte) Codec {
	return Codec{secret: secret}
}

// Mint serializes and signs a token for the given subject. Deterministic
// for identical inputs and secret.
func (c Codec) Mint(subject string, issuedAt, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	return token.SignedString(c.secret)
}

// Parse verifies the signature and expiry of a token and returns its claims.
// Failures map onto ErrExpired, ErrInvalidSignature and ErrMalformed.
func (c Codec) Parse(raw string) (Claims, error) {
	var registered jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &registered,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Claims{}, ErrInvalidSignature
		default:
			return Claims{}, ErrMalformed
		}
	}

	if registered.Subject == "" {
		return Claims{}, ErrMalformed
	}

	claims := Claims{Subject: registered.Subject}
	if registered.ExpiresAt != nil {
		claims.ExpiresAt = registered.ExpiresAt.Time
	}
	if registered.IssuedAt != nil {
		claims.IssuedAt = registered.IssuedAt.Time
	}
	return claims, nil
}
