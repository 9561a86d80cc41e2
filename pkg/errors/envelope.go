package errors

import (
	"encoding/json"
	"net/http"
	"sort"
)

const (
	maxMessageLen   = 512
	maxDetails      = 32
	maxDetailKeyLen = 64
	maxDetailValLen = 256
)

// KV is a deterministic key/value detail pair.
type KV struct {
	K string `json:"k"`
	V string `json:"v"`
}

// ErrorBody is the payload of an error envelope.
type ErrorBody struct {
	Code      Code   `json:"code"`
	Message   string `json:"message"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Details   []KV   `json:"details,omitempty"`
}

// ErrorEnvelope is the JSON body written for every error response.
type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// NewEnvelope builds a bounded error envelope. Details are encoded as
// sorted key/value pairs so responses are deterministic.
func NewEnvelope(code Code, message, requestID string, details map[string]string) ErrorEnvelope {
	meta, ok := Meta(code)
	if !ok {
		meta = CodeMeta{HTTPStatus: 500, Kind: "server"}
		code = Internal
	}

	body := ErrorBody{
		Code:      code,
		Message:   truncate(message, maxMessageLen),
		Kind:      meta.Kind,
		RequestID: truncate(requestID, 128),
	}

	if len(details) > 0 {
		keys := make([]string, 0, len(details))
		for k := range details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if len(keys) > maxDetails {
			keys = keys[:maxDetails]
		}
		for _, k := range keys {
			body.Details = append(body.Details, KV{
				K: truncate(k, maxDetailKeyLen),
				V: truncate(details[k], maxDetailValLen),
			})
		}
	}

	return ErrorEnvelope{Error: body}
}

// Write renders the envelope for a code to an HTTP response, using the
// status the code maps to.
func Write(w http.ResponseWriter, code Code, message, requestID string, details map[string]string) {
	meta, ok := Meta(code)
	status := 500
	if ok {
		status = meta.HTTPStatus
	}
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(NewEnvelope(code, message, requestID, details))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
