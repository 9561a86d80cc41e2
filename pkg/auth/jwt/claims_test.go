package jwt

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClaims_InsertionOrder(t *testing.T) {
	c := NewClaims()
	c.Set("sub", "joe").Set("admin", true).Set("n", int64(7))
	require.Equal(t, []string{"sub", "admin", "n"}, c.Names())

	// replacing keeps the original position
	c.Set("admin", false)
	require.Equal(t, []string{"sub", "admin", "n"}, c.Names())
	v, ok := c.Get("admin")
	require.True(t, ok)
	require.Equal(t, false, v)
}

func TestClaimsFromMap_Deterministic(t *testing.T) {
	m := map[string]any{"z": int64(1), "a": "x", "m": true}
	c := ClaimsFromMap(m)
	require.Equal(t, []string{"a", "m", "z"}, c.Names())
}

func TestClaims_MapIsCopy(t *testing.T) {
	c := NewClaims().Set("sub", "joe")
	out := c.Map()
	out["sub"] = "mallory"
	v, _ := c.Get("sub")
	require.Equal(t, "joe", v)
}

func TestValidateStringClaim(t *testing.T) {
	cases := []struct {
		name  string
		value string
		ok    bool
	}{
		{"plain value", "joe", true},
		{"empty", "", true},
		{"https uri", "https://example.com", true},
		{"uri with path and query", "https://example.com/a/b?x=1#f", true},
		{"scheme without authority", "foo:bar", false},
		{"application claim with colon", "a:b", false},
		{"leading colon", ":bar", false},
		{"digit scheme", "1ab://x", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateStringClaim("iss", tc.value)
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.True(t, errors.Is(err, ErrInvalidClaimValue))
			}
		})
	}
}

func TestEncodePrimitive(t *testing.T) {
	cases := []struct {
		name  string
		value any
		want  string
	}{
		{"string", "joe", `"joe"`},
		{"bool", true, `true`},
		{"int64", int64(42), `42`},
		{"int", 42, `42`},
		{"float", 1.5, `1.5`},
		{"json number", json.Number("9000000000000000001"), `9000000000000000001`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := encodePrimitive("c", tc.value)
			require.NoError(t, err)
			require.Equal(t, tc.want, string(raw))
		})
	}
}

func TestEncodePrimitive_Rejections(t *testing.T) {
	_, err := encodePrimitive("c", nil)
	require.True(t, errors.Is(err, ErrInvalidClaimValue))

	_, err = encodePrimitive("c", []int{1, 2})
	require.True(t, errors.Is(err, ErrUnsupportedClaimValue))

	_, err = encodePrimitive("c", map[string]string{})
	require.True(t, errors.Is(err, ErrUnsupportedClaimValue))

	_, err = encodePrimitive("iss", "foo:bar")
	require.True(t, errors.Is(err, ErrInvalidClaimValue))
}

func TestDecodePrimitive(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want any
	}{
		{"string", `"joe"`, "joe"},
		{"true", `true`, true},
		{"false", `false`, false},
		{"integral", `1000010`, int64(1000010)},
		{"negative", `-5`, int64(-5)},
		{"float", `1.25`, 1.25},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := decodePrimitive("c", json.RawMessage(tc.raw))
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestDecodePrimitive_NoTranslation(t *testing.T) {
	for _, raw := range []string{`[1,2]`, `{"a":1}`, `null`} {
		_, err := decodePrimitive("c", json.RawMessage(raw))
		require.True(t, errors.Is(err, ErrMalformedToken), "raw %s", raw)
	}
}

func TestParseObject_PreservesOrder(t *testing.T) {
	members, err := parseObject([]byte(`{"b":1,"a":"x","z":true}`))
	require.NoError(t, err)
	names := make([]string, 0, len(members))
	for _, m := range members {
		names = append(names, m.name)
	}
	require.Equal(t, []string{"b", "a", "z"}, names)
}

func TestParseObject_Rejections(t *testing.T) {
	cases := []string{
		`[1,2]`,
		`"string"`,
		`{"a":}`,
		`{"a":1`,
		`not json`,
		``,
	}
	for _, raw := range cases {
		_, err := parseObject([]byte(raw))
		require.True(t, errors.Is(err, ErrMalformedToken), "raw %q", raw)
	}
}
