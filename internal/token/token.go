// Package token reads identity claims from a bearer token without verifying
// its signature. Verification happens on the API side.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Claim names issued by the storefront API.
const (
	ClaimUserID = "id"
	ClaimRole   = "role"
)

var (
	// ErrEmpty is returned for an absent token
	ErrEmpty = errors.New("empty token")
	// ErrMalformed is returned when the payload cannot be decoded
	ErrMalformed = errors.New("malformed token")
	// ErrNoUserID is returned when the payload has no user id claim
	ErrNoUserID = errors.New("token has no user id")
)

// Claims are the identity claims carried by a token.
type Claims struct {
	UserID    string
	Role      string
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// Expired reports whether the expiration claim is before now. A token without
// an expiration claim never expires.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && c.ExpiresAt.Before(now)
}

// Result is the outcome of Decode: either claims or a decode error.
type Result struct {
	Claims Claims
	Err    error
}

// OK reports whether decoding succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Expired reports whether the token must be treated as expired. Tokens that
// fail to decode are always expired.
func (r Result) Expired(now time.Time) bool {
	return !r.OK() || r.Claims.Expired(now)
}

// Decode parses raw and extracts its claims. It never panics; failures are
// reported in Result.Err.
func Decode(raw string) Result {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Result{Err: ErrEmpty}
	}

	tok, err := jwt.Parse([]byte(raw), jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		return Result{Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}

	claims := Claims{
		ExpiresAt: tok.Expiration(),
		IssuedAt:  tok.IssuedAt(),
	}

	if v, ok := tok.Get(ClaimUserID); ok {
		claims.UserID = stringClaim(v)
	}
	if claims.UserID == "" {
		return Result{Err: ErrNoUserID}
	}
	if v, ok := tok.Get(ClaimRole); ok {
		claims.Role = stringClaim(v)
	}

	return Result{Claims: claims}
}

func stringClaim(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case fmt.Stringer:
		return val.String()
	default:
		return ""
	}
}
