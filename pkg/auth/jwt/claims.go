package jwt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Claims is an ordered collection of named values used for both the
// header and claims segments of a token. Insertion order is preserved
// and is the order members are rendered to JSON, so generation is
// byte-for-byte reproducible given the same inputs.
//
// Values are restricted to string, bool, the integer and float kinds,
// and values handled by a registered ClaimCodec. Setting an existing
// name replaces the value but keeps its original position.
type Claims struct {
	names  []string
	values map[string]any
}

// NewClaims returns an empty claim collection.
func NewClaims() *Claims {
	return &Claims{values: make(map[string]any)}
}

// ClaimsFromMap builds a collection from a plain map. Names are sorted
// so the result is deterministic despite Go map iteration order.
func ClaimsFromMap(m map[string]any) *Claims {
	c := NewClaims()
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c.Set(name, m[name])
	}
	return c
}

// Set adds or replaces a value. Replacing keeps the original position.
func (c *Claims) Set(name string, value any) *Claims {
	if _, ok := c.values[name]; !ok {
		c.names = append(c.names, name)
	}
	c.values[name] = value
	return c
}

// Get returns the value for name.
func (c *Claims) Get(name string) (any, bool) {
	v, ok := c.values[name]
	return v, ok
}

// Names returns the member names in insertion order.
func (c *Claims) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Len returns the number of members.
func (c *Claims) Len() int {
	return len(c.names)
}

// Map returns the members as a plain map. The map is a copy; mutating
// it does not affect the collection.
func (c *Claims) Map() map[string]any {
	out := make(map[string]any, len(c.values))
	for name, v := range c.values {
		out[name] = copyClaimValue(v)
	}
	return out
}

func (c *Claims) clone() *Claims {
	out := NewClaims()
	for _, name := range c.names {
		out.Set(name, copyClaimValue(c.values[name]))
	}
	return out
}

// copyClaimValue keeps claim values from being shared mutable state
// across the token boundary. String lists (the audience form) are
// copied; scalars and sealed codec values pass through.
func copyClaimValue(value any) any {
	if s, ok := value.([]string); ok {
		out := make([]string, len(s))
		copy(out, s)
		return out
	}
	return value
}

// The JWT StringOrURI rule: a string claim containing a colon must be
// an absolute URI. The grammar here requires a scheme followed by an
// authority ("scheme://..."); scheme-only forms such as "foo:bar" are
// rejected. Values without a colon pass through unchanged.
var uriPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*://[^?#]*(\?[^#]*)?(#.*)?$`)

func validateStringClaim(name, value string) error {
	if !strings.Contains(value, ":") {
		return nil
	}
	if uriPattern.MatchString(value) {
		return nil
	}
	return fmt.Errorf("%w: claim %q value %q contains ':' but is not an absolute URI",
		ErrInvalidClaimValue, name, value)
}

// encodePrimitive renders a claim value written without a registered
// codec. Only JSON primitives pass through.
func encodePrimitive(name string, value any) (json.RawMessage, error) {
	switch v := value.(type) {
	case nil:
		return nil, fmt.Errorf("%w: claim %q was set with a null value, use absence instead",
			ErrInvalidClaimValue, name)
	case string:
		if err := validateStringClaim(name, v); err != nil {
			return nil, err
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: claim %q: %w", ErrUnsupportedClaimValue, name, err)
		}
		return raw, nil
	case bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64, json.Number:
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: claim %q: %w", ErrUnsupportedClaimValue, name, err)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("%w: claim %q is using type %T, which has no mechanism for translation",
			ErrUnsupportedClaimValue, name, value)
	}
}

// decodePrimitive reads a claim value that has no registered codec.
// Integral numbers become int64, other numbers float64. Arrays and
// objects have no translation and are a structural defect.
func decodePrimitive(name string, raw json.RawMessage) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: claim %q has an empty value", ErrMalformedToken, name)
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return nil, fmt.Errorf("%w: claim %q is not a valid string", ErrMalformedToken, name)
		}
		return s, nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return nil, fmt.Errorf("%w: claim %q is not a valid boolean", ErrMalformedToken, name)
		}
		return b, nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return nil, fmt.Errorf("%w: claim %q is not a valid number", ErrMalformedToken, name)
		}
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: claim %q is not a valid number", ErrMalformedToken, name)
		}
		return f, nil
	default:
		return nil, fmt.Errorf("%w: claim %q has a json shape with no mechanism for translation",
			ErrMalformedToken, name)
	}
}

type jsonMember struct {
	name string
	raw  json.RawMessage
}

// parseObject reads a JSON object preserving member order. The stream
// must contain exactly one object and nothing else.
func parseObject(data []byte) ([]jsonMember, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: segment is not valid json", ErrMalformedToken)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: segment is not a json object", ErrMalformedToken)
	}

	var members []jsonMember
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: segment is not valid json", ErrMalformedToken)
		}
		name, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: segment is not a json object", ErrMalformedToken)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: segment is not valid json", ErrMalformedToken)
		}
		members = append(members, jsonMember{name: name, raw: raw})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: segment is not valid json", ErrMalformedToken)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: segment has trailing data", ErrMalformedToken)
	}
	return members, nil
}
