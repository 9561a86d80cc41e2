package capabilities

import (
	"fmt"
	"strings"
)

const wordBits = 64

// Set is a compact subset of one family's capabilities, stored as a
// fixed-width bitset over the family's ordinals. Sets are sealed at
// construction: once built, nothing can change the contained bits, so
// a set placed in a token stays exactly what was issued and may be
// shared freely. Granting more capabilities means issuing a new set.
type Set struct {
	family *Family
	words  []uint64
}

// NewSet builds a set over family containing the named capabilities.
// Names outside the family fail with ErrUnknownCapability.
func NewSet(family *Family, names ...string) (*Set, error) {
	if family == nil {
		return nil, fmt.Errorf("%w: need a family", ErrConfiguration)
	}
	s := &Set{
		family: family,
		words:  make([]uint64, (family.Size()+wordBits-1)/wordBits),
	}
	for _, name := range names {
		if err := s.add(name); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Family returns the family the set is defined over.
func (s *Set) Family() *Family {
	return s.family
}

func (s *Set) add(name string) error {
	ordinal, ok := s.family.Ordinal(name)
	if !ok {
		return fmt.Errorf("%w: %q is not in family %q", ErrUnknownCapability, name, s.family.Name())
	}
	s.words[ordinal/wordBits] |= 1 << (ordinal % wordBits)
	return nil
}

// Has reports whether the named capability bit is set. Names outside
// the family are never contained.
func (s *Set) Has(name string) bool {
	ordinal, ok := s.family.Ordinal(name)
	if !ok {
		return false
	}
	return s.words[ordinal/wordBits]&(1<<(ordinal%wordBits)) != 0
}

// ContainsAll reports whether every capability in required is also in
// s: (s AND required) == required. The empty set is contained in any
// set. Sets over different families never contain each other.
func (s *Set) ContainsAll(required *Set) bool {
	if required == nil {
		return true
	}
	if required.family != s.family {
		return false
	}
	for i, word := range required.words {
		if s.words[i]&word != word {
			return false
		}
	}
	return true
}

// Names returns the contained capability names in family order.
func (s *Set) Names() []string {
	var out []string
	for _, name := range s.family.names {
		if s.Has(name) {
			out = append(out, name)
		}
	}
	return out
}

// String renders the set for logs and test failures.
func (s *Set) String() string {
	return s.family.Name() + "[" + strings.Join(s.Names(), " ") + "]"
}
