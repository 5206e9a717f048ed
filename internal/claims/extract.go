package claims

import "github.com/mehmetcc/billadmin/internal/token"

// lookup normalizes the value under the first present key. The result is never
// nil so callers can serialize it as [] rather than null.
func lookup(c token.Claims, keys []string) []string {
	for _, key := range keys {
		v, ok := c[key]
		if !ok {
			continue
		}
		return normalize(v)
	}
	return []string{}
}

func normalize(v any) []string {
	out := []string{}
	switch val := v.(type) {
	case string:
		if val != "" {
			out = append(out, val)
		}
	case []any:
		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
	case []string:
		for _, s := range val {
			if s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
