package capabilities

import (
	"encoding/json"
	"fmt"
)

// SetCodec translates capability sets for a single family to and from
// their JSON claim form: an array of capability name strings in family
// order. It satisfies the token manager's ClaimCodec interface; one
// codec is registered per capability-carrying claim name.
type SetCodec struct {
	family *Family
}

// NewSetCodec builds a codec bound to a family.
func NewSetCodec(family *Family) SetCodec {
	return SetCodec{family: family}
}

// EncodeClaim renders a *Set of the codec's family as a JSON array of
// capability names.
func (c SetCodec) EncodeClaim(value any) (json.RawMessage, error) {
	set, ok := value.(*Set)
	if !ok {
		return nil, fmt.Errorf("expected a capability set, got %T", value)
	}
	if set.Family() != c.family {
		return nil, fmt.Errorf("capability set belongs to family %q, codec is for %q",
			set.Family().Name(), c.family.Name())
	}
	names := set.Names()
	if names == nil {
		names = []string{}
	}
	return json.Marshal(names)
}

// DecodeClaim reads a JSON array of capability names into a *Set.
// A name unknown to the family fails with ErrUnknownCapability.
func (c SetCodec) DecodeClaim(raw json.RawMessage) (any, error) {
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, fmt.Errorf("expected an array of capability names: %w", err)
	}
	return NewSet(c.family, names...)
}
