package token

import (
	"encoding/json"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the decoded payload segment of a token. Values keep their JSON
// shape: strings, float64 numbers, bools, []any and map[string]any.
type Claims = jwt.MapClaims

// numeric reads a numeric claim. Non-numeric values count as absent.
func numeric(c Claims, key string) (float64, bool) {
	switch v := c[key].(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
