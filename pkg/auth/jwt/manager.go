// Package jwt generates and parses compact JWS tokens with pluggable
// per-claim translation.
//
// The manager handles string, number and boolean claim values
// automatically; any other shape needs a codec registered for its claim
// name. Structural problems (bad segments, bad base64url, bad JSON,
// unsupported algorithms) surface as errors, while signature mismatch
// and timing outcomes are queryable state on the parsed token.
package jwt

import (
	"bytes"
	"crypto/hmac"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Manager is a factory for tokens. A single instance is shared by many
// concurrent request handlers; all state is fixed after the setup phase
// (construction plus codec registration), so calls are reentrant and
// never block. The manager never retains secrets across calls.
type Manager struct {
	defaultConfig  GenerationConfig
	codecs         map[string]ClaimCodec
	now            func() time.Time
	allowShortKeys bool
}

// ManagerOption configures a Manager at construction time.
type ManagerOption func(*Manager)

// WithDefaultConfiguration sets the config used when Generate is called
// without one. The default otherwise is no timing claims and HS256.
func WithDefaultConfiguration(cfg GenerationConfig) ManagerOption {
	return func(m *Manager) {
		m.defaultConfig = cfg
	}
}

// WithClock replaces the time source. Generation under a fixed clock is
// byte-for-byte reproducible.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// WithInsecureShortKeys disables the minimum key length check, for
// interop with peers that use short secrets. Not a default path.
func WithInsecureShortKeys() ManagerOption {
	return func(m *Manager) {
		m.allowShortKeys = true
	}
}

// NewManager creates a manager. A codec for "aud" (array of strings,
// accepting a bare string on read) is pre-registered.
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		codecs: make(map[string]ClaimCodec),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.codecs["aud"] = audienceCodec{}
	return m
}

// RegisterClaimCodec binds a codec to a claim name. Registration
// happens during the setup phase, before the manager is shared; a name
// can be registered once.
func (m *Manager) RegisterClaimCodec(name string, codec ClaimCodec) error {
	if name == "" {
		return fmt.Errorf("%w: need a claim name", ErrConfiguration)
	}
	if codec == nil {
		return fmt.Errorf("%w: need a codec for claim %q", ErrConfiguration, name)
	}
	if _, ok := m.codecs[name]; ok {
		return fmt.Errorf("%w: a codec was already registered for claim %q", ErrConfiguration, name)
	}
	m.codecs[name] = codec
	return nil
}

// Generate creates a token from claims using the default configuration.
func (m *Manager) Generate(claims *Claims, secret []byte) (*Token, error) {
	return m.GenerateWith(nil, claims, secret, nil)
}

// GenerateWith creates a token from headers and claims under the given
// configuration (the manager default when nil). Caller-provided
// collections are copied; callers retain ownership of their originals.
//
// The configured header "alg" and the configured claims iss, jti, iat,
// nbf and exp override caller-provided values when the matching config
// option is set.
func (m *Manager) GenerateWith(headers, claims *Claims, secret []byte, cfg *GenerationConfig) (*Token, error) {
	effective := m.defaultConfig
	if cfg != nil {
		effective = *cfg
	}
	if err := effective.validate(); err != nil {
		return nil, err
	}

	if headers == nil {
		headers = NewClaims()
	} else {
		headers = headers.clone()
	}
	if claims == nil {
		claims = NewClaims()
	} else {
		claims = claims.clone()
	}

	algorithm := effective.algorithm()
	if !algorithm.IsNone() {
		if len(secret) == 0 {
			return nil, fmt.Errorf("%w: signing of type %q is configured but the secret is missing",
				ErrConfiguration, algorithm.Name())
		}
		if !m.allowShortKeys {
			if err := algorithm.checkKey(secret); err != nil {
				return nil, err
			}
		}
	}
	headers.Set("alg", algorithm.Name())
	// "typ" is deliberately not written; it matters only for encryption,
	// which is not supported.

	headerSegment, err := m.renderSegment(headers)
	if err != nil {
		return nil, err
	}

	if effective.Issuer != "" {
		claims.Set("iss", effective.Issuer)
	}
	if effective.GenerateID {
		claims.Set("jti", uuid.NewString())
	}
	now := m.now().Unix()
	if effective.IncludeIssuedTime {
		claims.Set("iat", now)
	}
	delay := int64(0)
	if effective.ValidDelaySeconds != nil {
		delay = *effective.ValidDelaySeconds
		claims.Set("nbf", now+delay)
	}
	if effective.ValidDurationSeconds != nil {
		claims.Set("exp", now+delay+*effective.ValidDurationSeconds)
	}

	claimsSegment, err := m.renderSegment(claims)
	if err != nil {
		return nil, err
	}

	serialized := headerSegment + "." + claimsSegment
	if algorithm.IsNone() {
		serialized += "."
	} else {
		signature := algorithm.Sign(secret, []byte(serialized))
		serialized += "." + EncodeSegment(signature)
	}

	return &Token{
		headers:    headers,
		claims:     claims,
		serialized: serialized,
		verified:   true,
	}, nil
}

// Parse reads a compact serialized token, translating members through
// registered codecs and verifying the signature under the algorithm the
// token itself declares. Signature mismatch does not fail the parse; it
// yields a token with Verified() == false. Expiration and not-before
// are not enforced here either, that is the caller's policy decision.
//
// An unsigned ("alg":"none") token parses as verified only when the
// caller presents no secret; a caller expecting signed tokens never
// accepts an unsigned one.
func (m *Manager) Parse(serialized string, secret []byte) (*Token, error) {
	if serialized == "" {
		return nil, fmt.Errorf("%w: empty token string", ErrMalformedToken)
	}
	segments := strings.Split(serialized, ".")
	if len(segments) < 2 {
		return nil, fmt.Errorf("%w: token contains wrong number of segments", ErrMalformedToken)
	}

	headers, err := m.parseSegment(segments[0])
	if err != nil {
		return nil, err
	}
	algValue, ok := headers.Get("alg")
	if !ok {
		return nil, fmt.Errorf("%w: token is missing the signing algorithm", ErrMalformedToken)
	}
	algName, ok := algValue.(string)
	if !ok {
		return nil, fmt.Errorf("%w: token signing algorithm is not a string", ErrMalformedToken)
	}
	algorithm, err := LookupAlgorithm(algName)
	if err != nil {
		return nil, err
	}

	// Unsigned tokens have two segments; the trailing dot produces an
	// empty third slot which is accepted but ignored. Signed tokens have
	// exactly three.
	if algorithm.IsNone() {
		if len(segments) != 2 && !(len(segments) == 3 && segments[2] == "") {
			return nil, fmt.Errorf("%w: token contains wrong number of segments", ErrMalformedToken)
		}
	} else if len(segments) != 3 {
		return nil, fmt.Errorf("%w: token contains wrong number of segments", ErrMalformedToken)
	}

	claims, err := m.parseSegment(segments[1])
	if err != nil {
		return nil, err
	}

	var verified bool
	if algorithm.IsNone() {
		verified = len(secret) == 0
	} else {
		if len(secret) == 0 {
			return nil, fmt.Errorf("%w: signing of type %q was indicated but the secret is missing",
				ErrConfiguration, algorithm.Name())
		}
		if !m.allowShortKeys {
			if err := algorithm.checkKey(secret); err != nil {
				return nil, err
			}
		}
		signature, err := DecodeSegment(segments[2])
		if err != nil {
			return nil, err
		}
		expected := algorithm.Sign(secret, []byte(segments[0]+"."+segments[1]))
		verified = hmac.Equal(expected, signature)
	}

	return &Token{
		headers:    headers,
		claims:     claims,
		serialized: serialized,
		verified:   verified,
	}, nil
}

// renderSegment converts a member collection into a base64url encoded
// compact JSON object, members in insertion order, nulls explicit.
func (m *Manager) renderSegment(items *Claims) (string, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range items.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(name)
		buf.Write(key)
		buf.WriteByte(':')

		value := items.values[name]
		var raw []byte
		var err error
		if codec, ok := m.codecs[name]; ok {
			raw, err = codec.EncodeClaim(value)
			if err != nil {
				return "", fmt.Errorf("%w: claim %q: %w", ErrClaimEncoding, name, err)
			}
		} else {
			raw, err = encodePrimitive(name, value)
			if err != nil {
				return "", err
			}
		}
		if len(raw) == 0 {
			raw = []byte("null")
		}
		buf.Write(raw)
	}
	buf.WriteByte('}')
	return EncodeSegment(buf.Bytes()), nil
}

// parseSegment base64url decodes a segment, parses the JSON object and
// translates each member through its codec or the primitive fallback.
func (m *Manager) parseSegment(segment string) (*Claims, error) {
	data, err := DecodeSegment(segment)
	if err != nil {
		return nil, err
	}
	members, err := parseObject(data)
	if err != nil {
		return nil, err
	}
	out := NewClaims()
	for _, member := range members {
		if codec, ok := m.codecs[member.name]; ok {
			value, err := codec.DecodeClaim(member.raw)
			if err != nil {
				return nil, fmt.Errorf("%w: claim %q: %w", ErrClaimDecoding, member.name, err)
			}
			out.Set(member.name, value)
		} else {
			value, err := decodePrimitive(member.name, member.raw)
			if err != nil {
				return nil, err
			}
			out.Set(member.name, value)
		}
	}
	return out, nil
}
