package jwt

import "time"

// Token is an immutable json web token. Tokens are created only by the
// Manager, either freshly generated or parsed from a serialized string.
//
// Verified is true for freshly generated tokens. For parsed tokens it
// is true iff the signature recomputed under the presented secret and
// the token's own algorithm matched, or the token was unsigned and the
// caller presented no secret. Signature mismatch is not an error; it is
// this flag.
type Token struct {
	headers    *Claims
	claims     *Claims
	serialized string
	verified   bool
}

// Header returns the named header value. "alg" is always present.
func (t *Token) Header(name string) (any, bool) {
	v, ok := t.headers.Get(name)
	return copyClaimValue(v), ok
}

// Claim returns the named claim value.
func (t *Token) Claim(name string) (any, bool) {
	v, ok := t.claims.Get(name)
	return copyClaimValue(v), ok
}

// Headers returns a copy of the header map.
func (t *Token) Headers() map[string]any {
	return t.headers.Map()
}

// Claims returns a copy of the claim map.
func (t *Token) Claims() map[string]any {
	return t.claims.Map()
}

// HeaderNames returns the header names in serialization order.
func (t *Token) HeaderNames() []string {
	return t.headers.Names()
}

// ClaimNames returns the claim names in serialization order.
func (t *Token) ClaimNames() []string {
	return t.claims.Names()
}

// Algorithm returns the "alg" header value.
func (t *Token) Algorithm() string {
	v, _ := t.headers.Get("alg")
	s, _ := v.(string)
	return s
}

// Serialized returns the exact compact form of the token.
func (t *Token) Serialized() string {
	return t.serialized
}

// String returns the compact form of the token.
func (t *Token) String() string {
	return t.serialized
}

// Verified reports whether the signature was verified.
func (t *Token) Verified() bool {
	return t.verified
}

// Issuer returns the "iss" claim.
func (t *Token) Issuer() (string, bool) {
	return t.stringClaim("iss")
}

// Subject returns the "sub" claim.
func (t *Token) Subject() (string, bool) {
	return t.stringClaim("sub")
}

// ID returns the "jti" claim.
func (t *Token) ID() (string, bool) {
	return t.stringClaim("jti")
}

// Audience returns the "aud" claim as a list; single-string tokens are
// read as a one-element list.
func (t *Token) Audience() ([]string, bool) {
	v, ok := t.claims.Get("aud")
	if !ok {
		return nil, false
	}
	switch aud := v.(type) {
	case []string:
		out := make([]string, len(aud))
		copy(out, aud)
		return out, true
	case string:
		return []string{aud}, true
	default:
		return nil, false
	}
}

// ExpiresAt returns the "exp" claim as a time.
func (t *Token) ExpiresAt() (time.Time, bool) {
	return t.timeClaim("exp")
}

// NotBefore returns the "nbf" claim as a time.
func (t *Token) NotBefore() (time.Time, bool) {
	return t.timeClaim("nbf")
}

// IssuedAt returns the "iat" claim as a time.
func (t *Token) IssuedAt() (time.Time, bool) {
	return t.timeClaim("iat")
}

func (t *Token) stringClaim(name string) (string, bool) {
	v, ok := t.claims.Get(name)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (t *Token) timeClaim(name string) (time.Time, bool) {
	v, ok := t.claims.Get(name)
	if !ok {
		return time.Time{}, false
	}
	switch n := v.(type) {
	case int64:
		return time.Unix(n, 0), true
	case float64:
		return time.Unix(int64(n), 0), true
	default:
		return time.Time{}, false
	}
}
