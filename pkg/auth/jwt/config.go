package jwt

import "fmt"

// GenerationConfig is the declarative policy applied when generating a
// token. Options left at their zero value are not applied; the manager
// writes the configured claims in the fixed order iss, jti, iat, nbf,
// exp, overriding caller-provided values when the matching option is
// set.
type GenerationConfig struct {
	// Issuer is written to "iss" when non-empty.
	Issuer string

	// GenerateID writes a fresh random UUID string to "jti".
	GenerateID bool

	// IncludeIssuedTime writes the current unix seconds to "iat".
	IncludeIssuedTime bool

	// ValidDelaySeconds, when present, writes now+delay to "nbf".
	// Must be non-negative.
	ValidDelaySeconds *int64

	// ValidDurationSeconds, when present, writes now+delay+duration to
	// "exp" (delay defaults to zero for this computation only). Must be
	// non-negative.
	ValidDurationSeconds *int64

	// Algorithm selects the signing algorithm. The zero value resolves
	// to HS256; pass None explicitly to produce unsigned tokens.
	Algorithm SigningAlgorithm
}

// Seconds is a convenience for the optional duration fields.
func Seconds(n int64) *int64 {
	return &n
}

func (c GenerationConfig) algorithm() SigningAlgorithm {
	if c.Algorithm.name == "" {
		return HS256
	}
	return c.Algorithm
}

func (c GenerationConfig) validate() error {
	if c.ValidDelaySeconds != nil && *c.ValidDelaySeconds < 0 {
		return fmt.Errorf("%w: valid delay must be non-negative, got %d",
			ErrConfiguration, *c.ValidDelaySeconds)
	}
	if c.ValidDurationSeconds != nil && *c.ValidDurationSeconds < 0 {
		return fmt.Errorf("%w: valid duration must be non-negative, got %d",
			ErrConfiguration, *c.ValidDurationSeconds)
	}
	return nil
}
