package errors

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteUsesCodeStatusAndShape(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(rec, AuthForbidden, "token lacks a required capability", "req-1", map[string]string{
		"claim":  "ops_caps",
		"reason": "insufficient_capabilities",
	})

	require.Equal(t, 403, rec.Code)
	require.Contains(t, rec.Header().Get("content-type"), "application/json")

	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Equal(t, AuthForbidden, env.Error.Code)
	require.Equal(t, "security", env.Error.Kind)
	require.Equal(t, "req-1", env.Error.RequestID)

	// details are sorted by key
	require.Len(t, env.Error.Details, 2)
	require.Equal(t, "claim", env.Error.Details[0].K)
	require.Equal(t, "reason", env.Error.Details[1].K)
}

func TestNewEnvelopeUnknownCodeFallsBack(t *testing.T) {
	env := NewEnvelope(Code("no.such.code"), "boom", "", nil)
	require.Equal(t, Internal, env.Error.Code)
	require.Equal(t, "server", env.Error.Kind)
}

func TestNewEnvelopeBoundsMessage(t *testing.T) {
	env := NewEnvelope(Internal, strings.Repeat("x", 2*maxMessageLen), "", nil)
	require.Len(t, env.Error.Message, maxMessageLen)
}

func TestMetaCoversEveryCode(t *testing.T) {
	codes := []Code{
		AuthUnauthorized, AuthForbidden, AuthTokenInvalid, AuthTokenExpired, AuthTokenRevoked,
		RequestInvalid, RequestUnsupported, MethodNotAllowed, OperationNotFound, RequestBodyTooLarge,
		ConfigInvalid, ConfigNotFound, Internal, DependencyDown,
	}
	for _, code := range codes {
		meta, ok := Meta(code)
		require.True(t, ok, "code %s has no metadata", code)
		require.NotZero(t, meta.HTTPStatus)
		require.NotEmpty(t, meta.Kind)
	}
}
