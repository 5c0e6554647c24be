// Package auth checks access tokens client-side before a channel dials.
// The client cannot verify the server signature; it only reads the claims
// to avoid burning a connection attempt on a token the server will reject.
package auth

import (
	"errors"
	"time"

	"github.com/dgrijalva/jwt-go"
)

var (
	ErrNoToken      = errors.New("no access token")
	ErrBadToken     = errors.New("access token is not a valid JWT")
	ErrTokenExpired = errors.New("access token expired")
)

// DefaultExpiryBuffer keeps us from dialing with a token that will expire
// mid-handshake.
const DefaultExpiryBuffer = 30 * time.Second

// CheckToken reports whether raw is usable for at least buffer from now.
// A token without an exp claim is accepted; expiry is then the server's
// call (close code 4003 handles it).
func CheckToken(raw string, buffer time.Duration) error {
	if raw == "" {
		return ErrNoToken
	}
	claims := jwt.MapClaims{}
	parser := jwt.Parser{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return ErrBadToken
	}
	exp, ok := claims["exp"]
	if !ok {
		return nil
	}
	expUnix, ok := exp.(float64)
	if !ok {
		return ErrBadToken
	}
	if time.Now().Add(buffer).After(time.Unix(int64(expUnix), 0)) {
		return ErrTokenExpired
	}
	return nil
}

// TokenSource yields the current access token for a connection attempt.
// A refresh layer can sit behind it; the supervisor only calls it right
// before dialing.
type TokenSource func() string

// Static wraps a fixed token as a TokenSource.
func Static(raw string) TokenSource {
	return func() string { return raw }
}
