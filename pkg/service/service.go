// Package service hosts the HTTP harness Tales services run in: a
// lifecycle state machine around an http.Server, request counters, and
// an interface that dispatches to capability-guarded operations.
package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/talvish/tales/pkg/config"
)

// State is the lifecycle state of a service.
type State int32

const (
	StateCreated State = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ErrLifecycle indicates a transition from the wrong state.
var ErrLifecycle = errors.New("service: invalid lifecycle transition")

// Service runs one HTTP listener through its lifecycle. Transitions
// are one-way: Created -> Starting -> Running -> Stopping -> Stopped.
type Service struct {
	name   string
	state  atomic.Int32
	server *http.Server
	logger *zap.Logger
	cfg    config.HTTP

	failure chan error
}

// New wraps a handler in a lifecycle-managed server.
func New(name string, handler http.Handler, cfg config.HTTP, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		name:   name,
		logger: logger,
		cfg:    cfg,
		server: &http.Server{
			Addr:              net.JoinHostPort(cfg.Addr, strconv.Itoa(cfg.Port)),
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout.Std(),
			WriteTimeout:      cfg.WriteTimeout.Std(),
			IdleTimeout:       cfg.IdleTimeout.Std(),
			ReadHeaderTimeout: cfg.ReadTimeout.Std(),
		},
		failure: make(chan error, 1),
	}
}

// State returns the current lifecycle state.
func (s *Service) State() State {
	return State(s.state.Load())
}

// Failure delivers the listener error if the server dies on its own.
func (s *Service) Failure() <-chan error {
	return s.failure
}

// Start begins listening. Valid only from Created.
func (s *Service) Start() error {
	if !s.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return fmt.Errorf("%w: start from %s", ErrLifecycle, s.State())
	}
	s.logger.Info("service_starting", zap.String("name", s.name), zap.String("addr", s.server.Addr))

	listener, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		s.state.Store(int32(StateStopped))
		return fmt.Errorf("service: listen %s: %w", s.server.Addr, err)
	}
	s.state.Store(int32(StateRunning))
	s.logger.Info("service_running", zap.String("name", s.name))

	go func() {
		err := s.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.state.Store(int32(StateStopped))
			s.failure <- err
		}
	}()
	return nil
}

// Stop drains in-flight requests and shuts the listener down, bounded
// by the configured shutdown timeout. Valid only from Running.
func (s *Service) Stop(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return fmt.Errorf("%w: stop from %s", ErrLifecycle, s.State())
	}
	s.logger.Info("service_stopping", zap.String("name", s.name))

	if s.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ShutdownTimeout.Std())
		defer cancel()
	}
	err := s.server.Shutdown(ctx)
	s.state.Store(int32(StateStopped))
	s.logger.Info("service_stopped", zap.String("name", s.name))
	if err != nil {
		return fmt.Errorf("service: shutdown: %w", err)
	}
	return nil
}
