// Package accesscontrol evaluates capability requirements declared on
// service operations against verified tokens.
//
// Requirements are plain data registered at route-construction time,
// the data-driven equivalent of attaching metadata to methods. All
// registration happens during the setup phase; after that a Guard is
// immutable and safe for concurrent use on the request path.
package accesscontrol

import (
	"errors"
	"fmt"
	"time"

	"github.com/talvish/tales/pkg/auth/capabilities"
	"github.com/talvish/tales/pkg/auth/jwt"
)

// ErrConfiguration covers registration mistakes: rebinding a claim or
// family, requirements against unbound claims, capability names the
// family does not know. These surface at startup, never at request
// time.
var ErrConfiguration = errors.New("accesscontrol: invalid configuration")

// Requirement states that the token claim under Claim must carry a
// capability set containing every named capability.
type Requirement struct {
	Claim        string
	Capabilities []string
}

// Guard holds the claim-to-family bindings and per-operation
// requirement tables, and evaluates tokens against them.
type Guard struct {
	families      map[string]*capabilities.Family
	claimByFamily map[string]string
	operations    map[string][]Requirement
	now           func() time.Time
	allowUnsigned bool
}

// GuardOption configures a Guard at construction time.
type GuardOption func(*Guard)

// WithGuardClock replaces the time source used for the validity window.
func WithGuardClock(now func() time.Time) GuardOption {
	return func(g *Guard) {
		g.now = now
	}
}

// WithUnsignedTokens opts in to authorizing tokens whose algorithm is
// "none". Without this, such tokens are always treated as unverified,
// even when the parser accepted them.
func WithUnsignedTokens() GuardOption {
	return func(g *Guard) {
		g.allowUnsigned = true
	}
}

// NewGuard creates an empty guard.
func NewGuard(opts ...GuardOption) *Guard {
	g := &Guard{
		families:      make(map[string]*capabilities.Family),
		claimByFamily: make(map[string]string),
		operations:    make(map[string][]Requirement),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// BindClaim associates a claim name with the capability family its
// values belong to. The mapping is injective: a claim binds one family
// and a family binds one claim.
func (g *Guard) BindClaim(claim string, family *capabilities.Family) error {
	if claim == "" {
		return fmt.Errorf("%w: need a claim name", ErrConfiguration)
	}
	if family == nil {
		return fmt.Errorf("%w: need a family for claim %q", ErrConfiguration, claim)
	}
	if bound, ok := g.families[claim]; ok {
		return fmt.Errorf("%w: claim %q is already bound to family %q", ErrConfiguration, claim, bound.Name())
	}
	if bound, ok := g.claimByFamily[family.Name()]; ok {
		return fmt.Errorf("%w: family %q is already bound to claim %q", ErrConfiguration, family.Name(), bound)
	}
	g.families[claim] = family
	g.claimByFamily[family.Name()] = claim
	return nil
}

// RegisterOperation attaches requirements to an operation identifier.
// Claims must already be bound and every capability name must be known
// to the bound family; bad names are rejected here, not at request
// time.
func (g *Guard) RegisterOperation(operation string, requirements ...Requirement) error {
	if operation == "" {
		return fmt.Errorf("%w: need an operation identifier", ErrConfiguration)
	}
	if _, ok := g.operations[operation]; ok {
		return fmt.Errorf("%w: operation %q is already registered", ErrConfiguration, operation)
	}
	if err := g.checkRequirements(requirements); err != nil {
		return fmt.Errorf("operation %q: %w", operation, err)
	}
	g.operations[operation] = append([]Requirement(nil), requirements...)
	return nil
}

func (g *Guard) checkRequirements(requirements []Requirement) error {
	for _, req := range requirements {
		family, ok := g.families[req.Claim]
		if !ok {
			return fmt.Errorf("%w: claim %q is not bound to a capability family", ErrConfiguration, req.Claim)
		}
		if len(req.Capabilities) == 0 {
			return fmt.Errorf("%w: claim %q requires at least one capability", ErrConfiguration, req.Claim)
		}
		for _, name := range req.Capabilities {
			if _, ok := family.Ordinal(name); !ok {
				return fmt.Errorf("%w: capability %q is not in family %q", ErrConfiguration, name, family.Name())
			}
		}
	}
	return nil
}

// AuthorizeOperation evaluates a token against the requirements
// registered for an operation. Operations with no registration are
// unprotected and always grant.
func (g *Guard) AuthorizeOperation(operation string, token *jwt.Token) Decision {
	requirements, ok := g.operations[operation]
	if !ok || len(requirements) == 0 {
		return grant()
	}
	return g.Authorize(token, requirements)
}

// Authorize evaluates a token against explicit requirements. The token
// must be verified and inside its validity window; then, for each
// requirement, its claim must be a capability set of the bound family
// containing every required capability. The window is inclusive of nbf
// and exclusive of exp.
func (g *Guard) Authorize(token *jwt.Token, requirements []Requirement) Decision {
	if len(requirements) == 0 {
		return grant()
	}
	if token == nil || !token.Verified() {
		return deny(ReasonUnverified, "")
	}
	if token.Algorithm() == "none" && !g.allowUnsigned {
		return deny(ReasonUnverified, "")
	}

	now := g.now()
	if nbf, ok := token.NotBefore(); ok && now.Before(nbf) {
		return deny(ReasonNotYetValid, "nbf")
	}
	if exp, ok := token.ExpiresAt(); ok && !now.Before(exp) {
		return deny(ReasonExpired, "exp")
	}

	for _, req := range requirements {
		value, ok := token.Claim(req.Claim)
		if !ok {
			return deny(ReasonMissingClaim, req.Claim)
		}
		set, ok := value.(*capabilities.Set)
		if !ok {
			return deny(ReasonFamilyMismatch, req.Claim)
		}
		family, bound := g.families[req.Claim]
		if !bound || set.Family() != family {
			return deny(ReasonFamilyMismatch, req.Claim)
		}
		var missing []string
		for _, name := range req.Capabilities {
			if !set.Has(name) {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			return denyMissing(req.Claim, missing)
		}
	}
	return grant()
}
