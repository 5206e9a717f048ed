// Package tokentest mints tokens for tests in other packages.
package tokentest

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testKey = []byte("billadmin-test-key")

// Mint signs claims with a throwaway HS256 key.
func Mint(t testing.TB, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testKey)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return raw
}

// Expiring mints a token whose exp is now+ttl, plus any extra claims.
func Expiring(t testing.TB, now time.Time, ttl time.Duration, extra jwt.MapClaims) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": "user-1", "exp": now.Add(ttl).Unix()}
	for k, v := range extra {
		claims[k] = v
	}
	return Mint(t, claims)
}
