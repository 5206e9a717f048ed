package token

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mehmetcc/billadmin/internal/token/tokentest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawToken(header, payload string) string {
	enc := base64.RawURLEncoding
	return enc.EncodeToString([]byte(header)) + "." + enc.EncodeToString([]byte(payload)) + ".c2ln"
}

func TestDecode(t *testing.T) {
	raw := tokentest.Mint(t, jwt.MapClaims{"sub": "42", "permissions": []string{"Invoices.View"}})

	claims, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "42", claims["sub"])
	assert.Equal(t, []any{"Invoices.View"}, claims["permissions"])
}

func TestDecode_IgnoresSignatureAndHeader(t *testing.T) {
	raw := rawToken("not json at all", `{"role":"Admin"}`)

	claims, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, "Admin", claims["role"])
}

func TestDecode_PaddedPayload(t *testing.T) {
	payload := base64.URLEncoding.EncodeToString([]byte(`{"a":"bc"}`))
	require.Contains(t, payload, "=")

	claims, err := Decode("e30." + payload + ".sig")
	require.NoError(t, err)
	assert.Equal(t, "bc", claims["a"])
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "one segment", raw: "abc"},
		{name: "two segments", raw: "abc.def"},
		{name: "four segments", raw: "a.b.c.d"},
		{name: "payload not base64", raw: "e30.!!!.sig"},
		{name: "payload not json", raw: rawToken("{}", "hello")},
		{name: "payload json array", raw: rawToken("{}", `["a"]`)},
		{name: "payload json null", raw: rawToken("{}", "null")},
		{name: "empty payload", raw: "e30..sig"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestIsExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	t.Run("future exp is not expired", func(t *testing.T) {
		raw := tokentest.Expiring(t, now, time.Hour, nil)
		assert.False(t, IsExpired(raw, now))
	})

	t.Run("past exp is expired", func(t *testing.T) {
		raw := tokentest.Expiring(t, now, -time.Second, nil)
		assert.True(t, IsExpired(raw, now))
	})

	t.Run("exp equal to now is expired", func(t *testing.T) {
		raw := tokentest.Mint(t, jwt.MapClaims{"exp": now.Unix()})
		assert.True(t, IsExpired(raw, now))
	})

	t.Run("exp compared in milliseconds", func(t *testing.T) {
		raw := rawToken("{}", `{"exp":1700000000.5}`)
		assert.False(t, IsExpired(raw, now.Add(499*time.Millisecond)))
		assert.True(t, IsExpired(raw, now.Add(500*time.Millisecond)))
	})

	t.Run("missing exp is not expired", func(t *testing.T) {
		raw := tokentest.Mint(t, jwt.MapClaims{"sub": "1"})
		assert.False(t, IsExpired(raw, now))
	})

	t.Run("non-numeric exp counts as missing", func(t *testing.T) {
		raw := rawToken("{}", `{"exp":"soon"}`)
		assert.False(t, IsExpired(raw, now))
	})

	t.Run("malformed tokens are expired", func(t *testing.T) {
		for _, raw := range []string{"", "x", "a.b", "a.!!.c", rawToken("{}", "nope")} {
			assert.True(t, IsExpired(raw, now), raw)
		}
	})
}

func TestExpiresAt(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	at, ok := ExpiresAt(tokentest.Expiring(t, now, time.Hour, nil))
	require.True(t, ok)
	assert.True(t, at.Equal(now.Add(time.Hour)))

	_, ok = ExpiresAt(tokentest.Mint(t, jwt.MapClaims{"sub": "1"}))
	assert.False(t, ok)

	_, ok = ExpiresAt("garbage")
	assert.False(t, ok)
}
