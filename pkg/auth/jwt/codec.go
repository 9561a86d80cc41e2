package jwt

import (
	"encoding/json"
	"fmt"
)

// ClaimCodec translates a claim value between its in-memory form and
// its JSON form. One codec may be registered per claim name; claims
// without a codec fall back to JSON primitive handling.
//
// A codec owns the full shape of its claim, including any string
// validation; the StringOrURI rule is applied only to values routed
// through the primitive fallback.
type ClaimCodec interface {
	// EncodeClaim renders the value as a JSON element.
	EncodeClaim(value any) (json.RawMessage, error)

	// DecodeClaim reads the value from a JSON element.
	DecodeClaim(raw json.RawMessage) (any, error)
}

// audienceCodec handles the "aud" claim. The JWT spec permits either a
// single string or an array of strings on the wire; this codec accepts
// both on read and always emits the array form on write.
type audienceCodec struct{}

func (audienceCodec) EncodeClaim(value any) (json.RawMessage, error) {
	switch v := value.(type) {
	case string:
		return json.Marshal([]string{v})
	case []string:
		return json.Marshal(v)
	default:
		return nil, fmt.Errorf("expected string or []string, got %T", value)
	}
}

func (audienceCodec) DecodeClaim(raw json.RawMessage) (any, error) {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return []string{single}, nil
	}
	return nil, fmt.Errorf("expected string or array of strings")
}
