package testutil

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MintToken signs claims with secret using HS256.
func MintToken(t testing.TB, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

// AdminToken returns a token carrying role=admin that expires after ttl.
// A negative ttl yields an already expired token.
func AdminToken(t testing.TB, secret string, ttl time.Duration) string {
	t.Helper()
	return MintToken(t, secret, jwt.MapClaims{
		"sub":  "admin",
		"role": "admin",
		"exp":  time.Now().Add(ttl).Unix(),
	})
}
