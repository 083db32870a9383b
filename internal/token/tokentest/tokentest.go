// Package tokentest mints signed tokens for tests.
package tokentest

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

var key = []byte("storefront-test-key")

// Mint returns a signed token for userID with the given role and expiry.
// A zero exp omits the expiration claim and an empty role omits the role claim.
func Mint(tb testing.TB, userID, role string, exp time.Time) string {
	tb.Helper()

	tok := jwt.New()
	if err := tok.Set("id", userID); err != nil {
		tb.Fatalf("set id: %v", err)
	}
	if role != "" {
		if err := tok.Set("role", role); err != nil {
			tb.Fatalf("set role: %v", err)
		}
	}
	if !exp.IsZero() {
		if err := tok.Set(jwt.ExpirationKey, exp); err != nil {
			tb.Fatalf("set exp: %v", err)
		}
	}
	if err := tok.Set(jwt.IssuedAtKey, time.Now()); err != nil {
		tb.Fatalf("set iat: %v", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, key))
	if err != nil {
		tb.Fatalf("sign token: %v", err)
	}
	return string(signed)
}

// Valid returns a token for userID that expires in an hour.
func Valid(tb testing.TB, userID, role string) string {
	tb.Helper()
	return Mint(tb, userID, role, time.Now().Add(time.Hour))
}

// Expired returns a token for userID that expired an hour ago.
func Expired(tb testing.TB, userID, role string) string {
	tb.Helper()
	return Mint(tb, userID, role, time.Now().Add(-time.Hour))
}
