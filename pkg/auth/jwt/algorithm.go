package jwt

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
)

// SigningAlgorithm identifies the MAC family used to authenticate the
// header and claims segments. The zero value means "not configured" and
// resolves to HS256 when used through a GenerationConfig.
//
// This registry is the only place that knows MAC primitives and minimum
// key lengths; adding an algorithm touches nothing else.
type SigningAlgorithm struct {
	name      string
	newHash   func() hash.Hash
	minKeyLen int
}

// Supported algorithms. Identifiers are case-sensitive wire strings.
var (
	None  = SigningAlgorithm{name: "none"}
	HS256 = SigningAlgorithm{name: "HS256", newHash: sha256.New, minKeyLen: 32}
	HS384 = SigningAlgorithm{name: "HS384", newHash: sha512.New384, minKeyLen: 48}
	HS512 = SigningAlgorithm{name: "HS512", newHash: sha512.New, minKeyLen: 64}
)

var algorithms = map[string]SigningAlgorithm{
	"none":  None,
	"HS256": HS256,
	"HS384": HS384,
	"HS512": HS512,
}

// LookupAlgorithm resolves a wire identifier to its algorithm.
func LookupAlgorithm(name string) (SigningAlgorithm, error) {
	algorithm, ok := algorithms[name]
	if !ok {
		return SigningAlgorithm{}, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
	}
	return algorithm, nil
}

// Name returns the wire identifier, or "none" for the NONE variant.
func (a SigningAlgorithm) Name() string {
	if a.name == "" {
		return "none"
	}
	return a.name
}

// IsNone reports whether the algorithm produces an empty signature.
func (a SigningAlgorithm) IsNone() bool {
	return a.newHash == nil
}

// MinKeyLen returns the minimum secret length in bytes, zero for NONE.
func (a SigningAlgorithm) MinKeyLen() int {
	return a.minKeyLen
}

// Sign computes the keyed MAC over message. NONE returns nil.
func (a SigningAlgorithm) Sign(key, message []byte) []byte {
	if a.IsNone() {
		return nil
	}
	mac := hmac.New(a.newHash, key)
	_, _ = mac.Write(message)
	return mac.Sum(nil)
}

// checkKey enforces the algorithm's minimum key length. Interop with
// short keys is possible only when the manager opts out of this check.
func (a SigningAlgorithm) checkKey(key []byte) error {
	if a.IsNone() {
		return nil
	}
	if len(key) < a.minKeyLen {
		return fmt.Errorf("%w: %s requires a key of at least %d bytes, got %d",
			ErrConfiguration, a.name, a.minKeyLen, len(key))
	}
	return nil
}
