package token

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// The signature segment is never checked here. Tokens are issued and verified
// by the billing backend; the client only reads the payload.
var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// Decode returns the claims carried in the payload segment of raw.
// Any structural problem is reported as ErrMalformed.
func Decode(raw string) (Claims, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformed, len(parts))
	}

	payload, err := segmentParser.DecodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: decode payload: %v", ErrMalformed, err)
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("%w: parse payload: %v", ErrMalformed, err)
	}
	if claims == nil {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformed)
	}
	return claims, nil
}

// IsExpired reports whether raw must no longer be used at now.
//
// A token that cannot be decoded is expired. A decodable token without a
// numeric exp claim is not. Otherwise the token is expired once exp*1000 is at
// or before now in milliseconds.
func IsExpired(raw string, now time.Time) bool {
	claims, err := Decode(raw)
	if err != nil {
		return true
	}
	exp, ok := numeric(claims, "exp")
	if !ok {
		return false
	}
	return exp*1000 <= float64(now.UnixMilli())
}

// ExpiresAt returns the exp claim of raw, if the token decodes and carries one.
func ExpiresAt(raw string) (time.Time, bool) {
	claims, err := Decode(raw)
	if err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
