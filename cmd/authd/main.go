// Command authd issues, verifies and revokes capability-bearing
// tokens, and demonstrates mounting capability-guarded operations on
// the Tales HTTP interface.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	// revocation store drivers; selection is config-driven
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/talvish/tales/pkg/auth/accesscontrol"
	"github.com/talvish/tales/pkg/auth/capabilities"
	"github.com/talvish/tales/pkg/auth/jwt"
	"github.com/talvish/tales/pkg/auth/revocation"
	"github.com/talvish/tales/pkg/config"
	talerr "github.com/talvish/tales/pkg/errors"
	"github.com/talvish/tales/pkg/service"
	"github.com/talvish/tales/pkg/telemetry"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
)

type app struct {
	cfg     config.Config
	logger  *zap.Logger
	manager *jwt.Manager
	guard   *accesscontrol.Guard
	family  *capabilities.Family
	secret  []byte
	revoked revocation.Store
}

func main() {
	configPath := flag.String("config", "", "path to the service configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("config_load_failed", err)
	}

	logger, err := telemetry.NewLogger(cfg.Service, cfg.Log.Level)
	if err != nil {
		fatal("logger_build_failed", err)
	}
	defer func() { _ = logger.Sync() }()

	a, err := build(cfg, logger)
	if err != nil {
		logger.Error("startup_failed", zap.Error(err))
		os.Exit(1)
	}

	iface, err := a.routes()
	if err != nil {
		logger.Error("route_registration_failed", zap.Error(err))
		os.Exit(1)
	}

	svc := service.New(cfg.Service, iface.Router(), cfg.HTTP, logger)
	if err := svc.Start(); err != nil {
		logger.Error("start_failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("authd_started",
		zap.String("version", buildVersion),
		zap.String("commit", buildCommit),
		zap.String("environment", cfg.Environment))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-stop:
		logger.Info("shutdown_signal", zap.String("signal", sig.String()))
	case err := <-svc.Failure():
		logger.Error("listener_failed", zap.Error(err))
	}

	if err := svc.Stop(context.Background()); err != nil {
		logger.Error("shutdown_failed", zap.Error(err))
		os.Exit(1)
	}
}

func build(cfg config.Config, logger *zap.Logger) (*app, error) {
	secret := []byte(cfg.Auth.Secret)
	if strings.ToLower(cfg.Environment) != "local" && len(secret) == 0 {
		return nil, fmt.Errorf("auth secret is required in environment %q", cfg.Environment)
	}

	// empty means unset; the zero-value algorithm resolves to HS256
	var algorithm jwt.SigningAlgorithm
	if cfg.Auth.Algorithm != "" {
		var err error
		algorithm, err = jwt.LookupAlgorithm(cfg.Auth.Algorithm)
		if err != nil {
			return nil, err
		}
	}

	familyBuilder := capabilities.NewFamilyBuilder(cfg.Auth.CapabilityFam)
	familyBuilder.Add(cfg.Auth.Capabilities...)
	family, err := familyBuilder.Build()
	if err != nil {
		return nil, err
	}

	manager := jwt.NewManager(jwt.WithDefaultConfiguration(jwt.GenerationConfig{
		Issuer:               cfg.Auth.Issuer,
		GenerateID:           true,
		IncludeIssuedTime:    true,
		ValidDurationSeconds: jwt.Seconds(int64(cfg.Auth.TokenTTL.Std() / time.Second)),
		Algorithm:            algorithm,
	}))
	if err := manager.RegisterClaimCodec(cfg.Auth.CapabilityClaim, capabilities.NewSetCodec(family)); err != nil {
		return nil, err
	}

	guard := accesscontrol.NewGuard()
	if err := guard.BindClaim(cfg.Auth.CapabilityClaim, family); err != nil {
		return nil, err
	}

	store, err := buildRevocationStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		manager: manager,
		guard:   guard,
		family:  family,
		secret:  secret,
		revoked: store,
	}, nil
}

func buildRevocationStore(cfg config.Config, logger *zap.Logger) (revocation.Store, error) {
	if cfg.Auth.RevocationDriver == "" {
		logger.Info("revocation_store", zap.String("backend", "memory"))
		return revocation.NewMemoryStore(), nil
	}

	db, err := sql.Open(cfg.Auth.RevocationDriver, cfg.Auth.RevocationDSN)
	if err != nil {
		return nil, err
	}
	store, err := revocation.NewSQLStore(db)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	logger.Info("revocation_store", zap.String("backend", cfg.Auth.RevocationDriver))
	return store, nil
}

func (a *app) routes() (*service.Interface, error) {
	iface := service.NewInterface(a.manager, a.guard, a.secret, a.logger,
		service.WithRevocation(a.revoked))

	claim := a.cfg.Auth.CapabilityClaim
	registrations := []struct {
		operation string
		method    string
		path      string
		handler   http.HandlerFunc
		reqs      []accesscontrol.Requirement
	}{
		{"token.issue", http.MethodPost, "/v0/token", a.handleIssue, nil},
		{"token.verify", http.MethodPost, "/v0/verify", a.handleVerify, nil},
		{"token.revoke", http.MethodPost, "/v0/revoke", a.handleRevoke,
			[]accesscontrol.Requirement{{Claim: claim, Capabilities: []string{"admin"}}}},
		{"ping", http.MethodGet, "/v0/ping", a.handlePing,
			[]accesscontrol.Requirement{{Claim: claim, Capabilities: []string{"read"}}}},
	}
	for _, reg := range registrations {
		if err := iface.RegisterOperation(reg.operation, reg.method, reg.path, reg.handler, reg.reqs...); err != nil {
			return nil, err
		}
	}
	return iface, nil
}

type issueRequest struct {
	Subject      string   `json:"subject"`
	Capabilities []string `json:"capabilities,omitempty"`
}

type issueResponse struct {
	Token     string `json:"token"`
	TokenID   string `json:"token_id,omitempty"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

func (a *app) handleIssue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if !a.readJSON(w, r, &req) {
		return
	}
	if req.Subject == "" {
		talerr.Write(w, talerr.RequestInvalid, "subject is required", "", nil)
		return
	}

	set, err := capabilities.NewSet(a.family, req.Capabilities...)
	if err != nil {
		talerr.Write(w, talerr.RequestInvalid, err.Error(), "", nil)
		return
	}

	claims := jwt.NewClaims().
		Set("sub", req.Subject).
		Set(a.cfg.Auth.CapabilityClaim, set)
	token, err := a.manager.Generate(claims, a.secret)
	if err != nil {
		a.logger.Error("token_generation_failed", zap.Error(err))
		talerr.Write(w, talerr.Internal, "could not generate token", "", nil)
		return
	}

	resp := issueResponse{Token: token.Serialized()}
	if id, ok := token.ID(); ok {
		resp.TokenID = id
	}
	if exp, ok := token.ExpiresAt(); ok {
		resp.ExpiresAt = exp.Unix()
	}
	service.WriteJSON(w, http.StatusOK, resp)
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	Verified bool           `json:"verified"`
	Claims   map[string]any `json:"claims,omitempty"`
}

func (a *app) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !a.readJSON(w, r, &req) {
		return
	}
	token, err := a.manager.Parse(req.Token, a.secret)
	if err != nil {
		talerr.Write(w, talerr.AuthTokenInvalid, "token is not valid", "", nil)
		return
	}

	resp := verifyResponse{Verified: token.Verified()}
	if token.Verified() {
		claims := token.Claims()
		if set, ok := claims[a.cfg.Auth.CapabilityClaim].(*capabilities.Set); ok {
			claims[a.cfg.Auth.CapabilityClaim] = set.Names()
		}
		resp.Claims = claims
	}
	service.WriteJSON(w, http.StatusOK, resp)
}

type revokeRequest struct {
	Token string `json:"token"`
}

func (a *app) handleRevoke(w http.ResponseWriter, r *http.Request) {
	var req revokeRequest
	if !a.readJSON(w, r, &req) {
		return
	}
	token, err := a.manager.Parse(req.Token, a.secret)
	if err != nil || !token.Verified() {
		talerr.Write(w, talerr.AuthTokenInvalid, "token is not valid", "", nil)
		return
	}
	id, ok := token.ID()
	if !ok {
		talerr.Write(w, talerr.RequestInvalid, "token has no id to revoke", "", nil)
		return
	}
	expiresAt, ok := token.ExpiresAt()
	if !ok {
		expiresAt = time.Now().Add(a.cfg.Auth.TokenTTL.Std())
	}

	if err := a.revoked.Revoke(r.Context(), id, expiresAt); err != nil {
		a.logger.Error("revoke_failed", zap.String("token_id", id), zap.Error(err))
		talerr.Write(w, talerr.DependencyDown, "revocation store unavailable", "", nil)
		return
	}
	a.logger.Info("token_revoked", zap.String("token_id", id))
	service.WriteJSON(w, http.StatusOK, map[string]any{"revoked": true, "token_id": id})
}

func (a *app) handlePing(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"pong": true}
	if token, ok := service.TokenFromContext(r.Context()); ok {
		if sub, ok := token.Subject(); ok {
			resp["subject"] = sub
		}
	}
	service.WriteJSON(w, http.StatusOK, resp)
}

func (a *app) readJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, a.cfg.HTTP.MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		talerr.Write(w, talerr.RequestInvalid, "request body is not valid json", "", nil)
		return false
	}
	return true
}

func fatal(msg string, err error) {
	_ = json.NewEncoder(os.Stderr).Encode(map[string]string{
		"level": "error", "msg": msg, "error": err.Error(),
	})
	os.Exit(1)
}
