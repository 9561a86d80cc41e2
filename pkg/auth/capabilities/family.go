// Package capabilities implements named permission families and the
// compact bitset representation of a subset of one family.
//
// A family is an ordered, closed collection of capability names; every
// name gets a stable zero-based ordinal. Families are immutable once
// built, so they can be shared freely across request handlers.
package capabilities

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration covers family construction mistakes: empty or
	// duplicate capability names, missing family name.
	ErrConfiguration = errors.New("capabilities: invalid configuration")

	// ErrUnknownCapability is returned when a capability name is not
	// part of the family.
	ErrUnknownCapability = errors.New("capabilities: unknown capability")
)

// Family is a sealed, ordered collection of capability names.
type Family struct {
	name     string
	names    []string
	ordinals map[string]int
}

// FamilyBuilder accumulates capability names in order. Errors are
// deferred to Build so calls chain.
type FamilyBuilder struct {
	name  string
	names []string
	seen  map[string]struct{}
	err   error
}

// NewFamilyBuilder starts a family with the given name.
func NewFamilyBuilder(name string) *FamilyBuilder {
	b := &FamilyBuilder{name: name, seen: make(map[string]struct{})}
	if name == "" {
		b.err = fmt.Errorf("%w: need a family name", ErrConfiguration)
	}
	return b
}

// Add appends capability names. Each name must be non-empty and unique
// within the family; its position assigns the ordinal.
func (b *FamilyBuilder) Add(names ...string) *FamilyBuilder {
	for _, name := range names {
		if b.err != nil {
			return b
		}
		if name == "" {
			b.err = fmt.Errorf("%w: empty capability name in family %q", ErrConfiguration, b.name)
			return b
		}
		if _, ok := b.seen[name]; ok {
			b.err = fmt.Errorf("%w: capability %q appears twice in family %q", ErrConfiguration, name, b.name)
			return b
		}
		b.seen[name] = struct{}{}
		b.names = append(b.names, name)
	}
	return b
}

// Build seals the family.
func (b *FamilyBuilder) Build() (*Family, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.names) == 0 {
		return nil, fmt.Errorf("%w: family %q has no capabilities", ErrConfiguration, b.name)
	}
	names := make([]string, len(b.names))
	copy(names, b.names)
	ordinals := make(map[string]int, len(names))
	for i, name := range names {
		ordinals[name] = i
	}
	return &Family{name: b.name, names: names, ordinals: ordinals}, nil
}

// Name returns the family name.
func (f *Family) Name() string {
	return f.name
}

// Size returns the number of capabilities in the family.
func (f *Family) Size() int {
	return len(f.names)
}

// Ordinal returns the stable zero-based ordinal of a capability.
func (f *Family) Ordinal(capability string) (int, bool) {
	ordinal, ok := f.ordinals[capability]
	return ordinal, ok
}

// Capability returns the name at the given ordinal.
func (f *Family) Capability(ordinal int) (string, bool) {
	if ordinal < 0 || ordinal >= len(f.names) {
		return "", false
	}
	return f.names[ordinal], true
}

// Names returns the capability names in family order.
func (f *Family) Names() []string {
	out := make([]string, len(f.names))
	copy(out, f.names)
	return out
}
