package jwt

import (
	"encoding/base64"
	"fmt"
)

// Segment encoding is RFC 4648 section 5 base64url without padding.
// Outputs never contain '='; inputs containing '=' or any character
// outside the URL-safe alphabet are rejected.

// EncodeSegment renders bytes as an unpadded base64url segment.
func EncodeSegment(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeSegment decodes an unpadded base64url segment. Missing padding
// is expected; any character outside the alphabet fails decoding.
func DecodeSegment(segment string) ([]byte, error) {
	data, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return nil, fmt.Errorf("%w: segment is not valid base64url", ErrMalformedToken)
	}
	return data, nil
}
