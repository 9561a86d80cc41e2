package jwt

import "errors"

// Error kinds surfaced by the token manager. Structural defects and
// misconfiguration return errors; signature mismatch and timing outcomes
// do not (they are queryable state on Token).
var (
	// ErrMalformedToken covers structural defects: wrong segment count,
	// bad base64url, bad JSON, or a claim shape with no translation.
	ErrMalformedToken = errors.New("jwt: malformed token")

	// ErrUnsupportedAlgorithm is returned when a token names an "alg"
	// value that is not in the algorithm registry.
	ErrUnsupportedAlgorithm = errors.New("jwt: unsupported algorithm")

	// ErrConfiguration covers caller mistakes made before any token is
	// involved: missing or short secrets, duplicate codec registration,
	// negative validity durations.
	ErrConfiguration = errors.New("jwt: invalid configuration")

	// ErrClaimEncoding is returned when a registered codec fails to
	// render a claim value to JSON.
	ErrClaimEncoding = errors.New("jwt: claim encoding failed")

	// ErrClaimDecoding is returned when a registered codec fails to
	// read a claim value from JSON.
	ErrClaimDecoding = errors.New("jwt: claim decoding failed")

	// ErrInvalidClaimValue is returned for string claims that violate
	// the StringOrURI rule and for null claim values.
	ErrInvalidClaimValue = errors.New("jwt: invalid claim value")

	// ErrUnsupportedClaimValue is returned when a claim value has a
	// runtime type with no translation and no registered codec.
	ErrUnsupportedClaimValue = errors.New("jwt: unsupported claim value")
)
