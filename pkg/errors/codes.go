// Package errors defines the stable error codes shared by Tales
// services and the JSON envelope they travel in. Once published, codes
// are API-stable.
package errors

// Code is a stable, dot-separated error code.
type Code string

// CodeMeta carries the metadata used for HTTP mapping and docs.
type CodeMeta struct {
	HTTPStatus  int    `json:"http_status"`
	Kind        string `json:"kind"` // client|server|security
	Description string `json:"description"`
}

// ---- AUTH ----
const (
	AuthUnauthorized Code = "auth.unauthorized"
	AuthForbidden    Code = "auth.forbidden"
	AuthTokenInvalid Code = "auth.token_invalid"
	AuthTokenExpired Code = "auth.token_expired"
	AuthTokenRevoked Code = "auth.token_revoked"
)

// ---- REQUESTS ----
const (
	RequestInvalid      Code = "request.invalid"
	RequestUnsupported  Code = "request.unsupported"
	MethodNotAllowed    Code = "request.method_not_allowed"
	OperationNotFound   Code = "request.operation_not_found"
	RequestBodyTooLarge Code = "request.body_too_large"
)

// ---- CONFIG ----
const (
	ConfigInvalid  Code = "config.invalid"
	ConfigNotFound Code = "config.not_found"
)

// ---- INTERNAL ----
const (
	Internal       Code = "internal"
	DependencyDown Code = "dependency.down"
)

var codeMeta = map[Code]CodeMeta{
	AuthUnauthorized: {HTTPStatus: 401, Kind: "security", Description: "credentials missing or not verifiable"},
	AuthForbidden:    {HTTPStatus: 403, Kind: "security", Description: "token lacks a required capability"},
	AuthTokenInvalid: {HTTPStatus: 400, Kind: "security", Description: "token is structurally invalid"},
	AuthTokenExpired: {HTTPStatus: 401, Kind: "security", Description: "token is outside its validity window"},
	AuthTokenRevoked: {HTTPStatus: 401, Kind: "security", Description: "token id has been revoked"},

	RequestInvalid:      {HTTPStatus: 400, Kind: "client", Description: "request body or parameters invalid"},
	RequestUnsupported:  {HTTPStatus: 415, Kind: "client", Description: "unsupported media type"},
	MethodNotAllowed:    {HTTPStatus: 405, Kind: "client", Description: "method not allowed"},
	OperationNotFound:   {HTTPStatus: 404, Kind: "client", Description: "no such operation"},
	RequestBodyTooLarge: {HTTPStatus: 413, Kind: "client", Description: "request body exceeds the limit"},

	ConfigInvalid:  {HTTPStatus: 500, Kind: "server", Description: "service configuration invalid"},
	ConfigNotFound: {HTTPStatus: 500, Kind: "server", Description: "service configuration missing"},

	Internal:       {HTTPStatus: 500, Kind: "server", Description: "internal error"},
	DependencyDown: {HTTPStatus: 503, Kind: "server", Description: "a required dependency is unavailable"},
}

// Meta returns the metadata for a code.
func Meta(code Code) (CodeMeta, bool) {
	meta, ok := codeMeta[code]
	return meta, ok
}
