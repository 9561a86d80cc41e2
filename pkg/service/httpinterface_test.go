package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/talvish/tales/pkg/auth/accesscontrol"
	"github.com/talvish/tales/pkg/auth/capabilities"
	"github.com/talvish/tales/pkg/auth/jwt"
	"github.com/talvish/tales/pkg/auth/revocation"
)

const ifaceSecret = "0123456789abcdef0123456789abcdef"

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details []struct {
			K string `json:"k"`
			V string `json:"v"`
		} `json:"details"`
	} `json:"error"`
}

type interfaceFixture struct {
	iface   *Interface
	manager *jwt.Manager
	family  *capabilities.Family
}

func newInterfaceFixture(t *testing.T, opts ...InterfaceOption) *interfaceFixture {
	t.Helper()

	family, err := capabilities.NewFamilyBuilder("ops").
		Add("read", "write", "admin").
		Build()
	require.NoError(t, err)

	manager := jwt.NewManager(jwt.WithDefaultConfiguration(jwt.GenerationConfig{
		Issuer:               "tales",
		GenerateID:           true,
		ValidDurationSeconds: jwt.Seconds(3600),
	}))
	require.NoError(t, manager.RegisterClaimCodec("ops_caps", capabilities.NewSetCodec(family)))

	guard := accesscontrol.NewGuard()
	require.NoError(t, guard.BindClaim("ops_caps", family))

	iface := NewInterface(manager, guard, []byte(ifaceSecret), zap.NewNop(), opts...)

	echoSubject := func(w http.ResponseWriter, r *http.Request) {
		token, ok := TokenFromContext(r.Context())
		require.True(t, ok)
		subject, _ := token.Subject()
		WriteJSON(w, http.StatusOK, map[string]string{"subject": subject})
	}
	require.NoError(t, iface.RegisterOperation("docs.read", http.MethodGet, "/docs", echoSubject,
		accesscontrol.Requirement{Claim: "ops_caps", Capabilities: []string{"read"}}))
	require.NoError(t, iface.RegisterOperation("docs.delete", http.MethodDelete, "/docs", echoSubject,
		accesscontrol.Requirement{Claim: "ops_caps", Capabilities: []string{"admin"}}))
	require.NoError(t, iface.RegisterOperation("ping", http.MethodGet, "/ping",
		func(w http.ResponseWriter, _ *http.Request) {
			WriteJSON(w, http.StatusOK, map[string]bool{"pong": true})
		}))

	return &interfaceFixture{iface: iface, manager: manager, family: family}
}

func (f *interfaceFixture) issue(t *testing.T, subject string, caps ...string) string {
	t.Helper()
	set, err := capabilities.NewSet(f.family, caps...)
	require.NoError(t, err)
	claims := jwt.NewClaims().Set("sub", subject).Set("ops_caps", set)
	token, err := f.manager.Generate(claims, []byte(ifaceSecret))
	require.NoError(t, err)
	return token.Serialized()
}

func (f *interfaceFixture) do(method, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.iface.Router().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestSecuredOperationGrantsWithCapability(t *testing.T) {
	f := newInterfaceFixture(t)
	rec := f.do(http.MethodGet, "/docs", f.issue(t, "user-1", "read"))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "user-1", body["subject"])
}

func TestSecuredOperationWithoutToken(t *testing.T) {
	f := newInterfaceFixture(t)

	rec := f.do(http.MethodGet, "/docs", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "auth.unauthorized", decodeError(t, rec).Error.Code)

	// a non-bearer scheme is the same as no token
	req := httptest.NewRequest(http.MethodGet, "/docs", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec = httptest.NewRecorder()
	f.iface.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSecuredOperationStructurallyInvalidToken(t *testing.T) {
	f := newInterfaceFixture(t)
	rec := f.do(http.MethodGet, "/docs", "not-a-token")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "auth.token_invalid", decodeError(t, rec).Error.Code)
}

func TestSecuredOperationWrongSecret(t *testing.T) {
	f := newInterfaceFixture(t)

	other := jwt.NewManager(jwt.WithDefaultConfiguration(jwt.GenerationConfig{
		GenerateID:           true,
		ValidDurationSeconds: jwt.Seconds(3600),
	}))
	require.NoError(t, other.RegisterClaimCodec("ops_caps", capabilities.NewSetCodec(f.family)))
	set, err := capabilities.NewSet(f.family, "read")
	require.NoError(t, err)
	token, err := other.Generate(jwt.NewClaims().Set("ops_caps", set),
		[]byte("ffffffffffffffffffffffffffffffff"))
	require.NoError(t, err)

	rec := f.do(http.MethodGet, "/docs", token.Serialized())
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "auth.unauthorized", decodeError(t, rec).Error.Code)
}

func TestSecuredOperationInsufficientCapabilities(t *testing.T) {
	f := newInterfaceFixture(t)
	rec := f.do(http.MethodDelete, "/docs", f.issue(t, "user-1", "read", "write"))

	require.Equal(t, http.StatusForbidden, rec.Code)
	env := decodeError(t, rec)
	require.Equal(t, "auth.forbidden", env.Error.Code)

	details := make(map[string]string, len(env.Error.Details))
	for _, kv := range env.Error.Details {
		details[kv.K] = kv.V
	}
	require.Equal(t, "insufficient_capabilities", details["reason"])
	require.Equal(t, "ops_caps", details["claim"])
	require.Equal(t, "admin", details["missing"])
}

func TestSecuredOperationExpiredToken(t *testing.T) {
	f := newInterfaceFixture(t)

	past := jwt.NewManager(
		jwt.WithDefaultConfiguration(jwt.GenerationConfig{
			GenerateID:           true,
			ValidDurationSeconds: jwt.Seconds(3600),
		}),
		jwt.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) }))
	require.NoError(t, past.RegisterClaimCodec("ops_caps", capabilities.NewSetCodec(f.family)))
	set, err := capabilities.NewSet(f.family, "read")
	require.NoError(t, err)
	token, err := past.Generate(jwt.NewClaims().Set("ops_caps", set), []byte(ifaceSecret))
	require.NoError(t, err)

	rec := f.do(http.MethodGet, "/docs", token.Serialized())
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "auth.token_expired", decodeError(t, rec).Error.Code)
}

func TestSecuredOperationRevokedToken(t *testing.T) {
	store := revocation.NewMemoryStore()
	f := newInterfaceFixture(t, WithRevocation(store))

	raw := f.issue(t, "user-1", "read")
	token, err := f.manager.Parse(raw, []byte(ifaceSecret))
	require.NoError(t, err)
	id, ok := token.ID()
	require.True(t, ok)

	// valid until revoked
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/docs", raw).Code)

	require.NoError(t, store.Revoke(context.Background(), id, time.Now().Add(time.Hour)))
	rec := f.do(http.MethodGet, "/docs", raw)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "auth.token_revoked", decodeError(t, rec).Error.Code)
}

func TestUnprotectedOperationNeedsNoToken(t *testing.T) {
	f := newInterfaceFixture(t)
	rec := f.do(http.MethodGet, "/ping", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownOperationAndMethod(t *testing.T) {
	f := newInterfaceFixture(t)

	rec := f.do(http.MethodGet, "/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "request.operation_not_found", decodeError(t, rec).Error.Code)

	rec = f.do(http.MethodPost, "/ping", "")
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	require.Equal(t, "request.method_not_allowed", decodeError(t, rec).Error.Code)
}

func TestStatusCountersTrackOutcomes(t *testing.T) {
	f := newInterfaceFixture(t)

	f.do(http.MethodGet, "/docs", f.issue(t, "user-1", "read"))
	f.do(http.MethodDelete, "/docs", f.issue(t, "user-1", "read"))
	f.do(http.MethodGet, "/docs", "")

	snapshot := f.iface.Status().Snapshot()
	require.Equal(t, uint64(3), snapshot["requests"])
	require.Equal(t, uint64(1), snapshot["auth_granted"])
	require.Equal(t, uint64(1), snapshot["auth_denied"])
	require.Equal(t, uint64(1), snapshot["unauthorized"])
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]int{"n": 1})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Header().Get("content-type"), "application/json")
	require.JSONEq(t, `{"n":1}`, rec.Body.String())
}

func TestAdminEndpoints(t *testing.T) {
	f := newInterfaceFixture(t)

	rec := f.do(http.MethodGet, "/admin/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/admin/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Counters map[string]uint64 `json:"counters"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Contains(t, body.Counters, "requests")
}
