package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/talvish/tales/pkg/auth/accesscontrol"
	"github.com/talvish/tales/pkg/auth/jwt"
	"github.com/talvish/tales/pkg/auth/revocation"
	talerr "github.com/talvish/tales/pkg/errors"
)

type contextKey int

const tokenContextKey contextKey = iota

// TokenFromContext returns the verified token a secured operation ran
// under.
func TokenFromContext(ctx context.Context) (*jwt.Token, bool) {
	token, ok := ctx.Value(tokenContextKey).(*jwt.Token)
	return token, ok
}

// Interface routes HTTP requests to registered operations, enforcing
// each operation's capability requirements before its handler runs.
// All registration happens before the router is served.
type Interface struct {
	router  *mux.Router
	manager *jwt.Manager
	guard   *accesscontrol.Guard
	secret  []byte
	logger  *zap.Logger
	status  *Status
	revoked revocation.Store
}

// InterfaceOption configures an Interface.
type InterfaceOption func(*Interface)

// WithRevocation checks each token's id against a deny-list after
// authorization.
func WithRevocation(store revocation.Store) InterfaceOption {
	return func(i *Interface) {
		i.revoked = store
	}
}

// NewInterface creates an HTTP interface over a token manager and a
// guard. The secret is used to verify inbound bearer tokens.
func NewInterface(manager *jwt.Manager, guard *accesscontrol.Guard, secret []byte, logger *zap.Logger, opts ...InterfaceOption) *Interface {
	if logger == nil {
		logger = zap.NewNop()
	}
	i := &Interface{
		router:  mux.NewRouter(),
		manager: manager,
		guard:   guard,
		secret:  secret,
		logger:  logger,
		status:  NewStatus(),
	}
	for _, opt := range opts {
		opt(i)
	}

	i.router.Use(i.recoverer, i.counter)
	i.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i.status.ClientError()
		talerr.Write(w, talerr.OperationNotFound, "no such operation", "", nil)
	})
	i.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i.status.ClientError()
		talerr.Write(w, talerr.MethodNotAllowed, "method not allowed", "", nil)
	})

	i.router.HandleFunc("/admin/status", i.handleStatus).Methods(http.MethodGet)
	i.router.HandleFunc("/admin/healthz", i.handleHealth).Methods(http.MethodGet)
	return i
}

// Router returns the assembled handler.
func (i *Interface) Router() http.Handler {
	return i.router
}

// Status returns the interface's counters.
func (i *Interface) Status() *Status {
	return i.status
}

// RegisterOperation mounts a handler under an operation identifier.
// When requirements are given, the operation's requirements table is
// registered with the guard (validated now, not at request time) and
// the handler runs only for tokens the guard grants.
func (i *Interface) RegisterOperation(operation, method, path string, handler http.HandlerFunc, requirements ...accesscontrol.Requirement) error {
	if len(requirements) > 0 {
		if err := i.guard.RegisterOperation(operation, requirements...); err != nil {
			return err
		}
		handler = i.secured(operation, handler)
	}
	i.router.HandleFunc(path, handler).Methods(method).Name(operation)
	return nil
}

func (i *Interface) secured(operation string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			i.status.Unauthorized()
			talerr.Write(w, talerr.AuthUnauthorized, "bearer token required", "", nil)
			return
		}

		token, err := i.manager.Parse(raw, i.secret)
		if err != nil {
			switch {
			case errors.Is(err, jwt.ErrMalformedToken),
				errors.Is(err, jwt.ErrUnsupportedAlgorithm),
				errors.Is(err, jwt.ErrClaimDecoding):
				i.status.ClientError()
				talerr.Write(w, talerr.AuthTokenInvalid, "token is not valid", "", nil)
			default:
				i.status.Unauthorized()
				talerr.Write(w, talerr.AuthUnauthorized, "token could not be verified", "", nil)
			}
			return
		}

		decision := i.guard.AuthorizeOperation(operation, token)
		if !decision.Granted {
			i.writeDenial(w, operation, decision)
			return
		}

		if i.revoked != nil {
			if id, ok := token.ID(); ok {
				revoked, err := i.revoked.Revoked(r.Context(), id)
				if err != nil {
					i.status.ServerError()
					i.logger.Error("revocation_lookup_failed", zap.String("operation", operation), zap.Error(err))
					talerr.Write(w, talerr.DependencyDown, "revocation store unavailable", "", nil)
					return
				}
				if revoked {
					i.status.Denied()
					talerr.Write(w, talerr.AuthTokenRevoked, "token has been revoked", "", nil)
					return
				}
			}
		}

		i.status.Granted()
		next(w, r.WithContext(context.WithValue(r.Context(), tokenContextKey, token)))
	}
}

func (i *Interface) writeDenial(w http.ResponseWriter, operation string, decision accesscontrol.Decision) {
	i.status.Denied()
	i.logger.Info("authorization_denied",
		zap.String("operation", operation),
		zap.String("reason", string(decision.Reason)),
		zap.String("claim", decision.Claim),
		zap.Strings("missing", decision.Missing))

	switch decision.Reason {
	case accesscontrol.ReasonExpired, accesscontrol.ReasonNotYetValid:
		talerr.Write(w, talerr.AuthTokenExpired, "token is outside its validity window", "", map[string]string{
			"reason": string(decision.Reason),
		})
	case accesscontrol.ReasonUnverified:
		i.status.Unauthorized()
		talerr.Write(w, talerr.AuthUnauthorized, "token could not be verified", "", nil)
	default:
		details := map[string]string{"reason": string(decision.Reason)}
		if decision.Claim != "" {
			details["claim"] = decision.Claim
		}
		if len(decision.Missing) > 0 {
			details["missing"] = strings.Join(decision.Missing, ",")
		}
		talerr.Write(w, talerr.AuthForbidden, "token lacks a required capability", "", details)
	}
}

func (i *Interface) handleStatus(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"counters": i.status.Snapshot()})
}

func (i *Interface) handleHealth(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (i *Interface) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				i.status.ServerError()
				i.logger.Error("handler_panic",
					zap.Any("panic", rec),
					zap.ByteString("stack", debug.Stack()))
				talerr.Write(w, talerr.Internal, "internal server error", "", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (i *Interface) counter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i.status.Request()
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// WriteJSON renders a JSON response body with the given status. Shared
// by the interface's own endpoints and by operation handlers.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
