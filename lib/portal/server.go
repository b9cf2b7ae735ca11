// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/bureau-foundation/secret-portal/lib/envfile"
	"github.com/bureau-foundation/secret-portal/lib/session"
)

// DefaultShutdownTimeout bounds how long a consumed portal waits for
// the submitting request to finish.
const DefaultShutdownTimeout = 10 * time.Second

// Config configures a Server.
type Config struct {
	// Address is the TCP listen address. Port 0 picks a free port;
	// read the result from Addr after Ready is closed. Required.
	Address string

	// Guard decides which requests are honoured. Required. The
	// server never closes it.
	Guard *session.Guard

	// Store merges the accepted submission. Defaults to the zero
	// envfile.Store.
	Store *envfile.Store

	// EnvPath is the env file submissions are merged into. Required.
	EnvPath string

	// Page customises the entry form.
	Page PageOptions

	// ShutdownTimeout defaults to DefaultShutdownTimeout.
	ShutdownTimeout time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Outcome describes how a portal ended.
type Outcome struct {
	// State is the session state when the server stopped. Armed
	// means the context was cancelled before anything happened.
	State session.State

	// Result is set when a submission was saved.
	Result envfile.Result

	// Err is the persistence failure, if the accepted submission
	// could not be saved.
	Err error
}

// Saved reports whether a submission reached the env file.
func (o Outcome) Saved() bool {
	return o.State == session.Consumed && o.Err == nil
}

// Server is the HTTP side of a portal session. Serve it once.
type Server struct {
	address         string
	guard           *session.Guard
	store           *envfile.Store
	envPath         string
	singleKey       string
	page            *page
	handler         http.Handler
	logger          *slog.Logger
	shutdownTimeout time.Duration

	ready chan struct{}
	addr  net.Addr

	// settled is closed once the consuming request has finished its
	// merge and recorded the result.
	settled    chan struct{}
	settleOnce sync.Once
	mu         sync.Mutex
	result     envfile.Result
	mergeErr   error
}

// New validates config and builds a Server. Nothing is bound until
// Serve.
func New(config Config) (*Server, error) {
	if config.Address == "" {
		return nil, errors.New("portal: Address is required")
	}
	if config.Guard == nil {
		return nil, errors.New("portal: Guard is required")
	}
	if config.EnvPath == "" {
		return nil, errors.New("portal: EnvPath is required")
	}
	if config.Page.SingleKey != "" && !envfile.ValidKey(config.Page.SingleKey) {
		return nil, fmt.Errorf("portal: single key %q must match %s", config.Page.SingleKey, envfile.KeyPattern)
	}

	store := config.Store
	if store == nil {
		store = &envfile.Store{}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	shutdownTimeout := config.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}

	formPage, err := newPage(config.Page, config.EnvPath, config.Guard.Deadline())
	if err != nil {
		return nil, fmt.Errorf("portal: %w", err)
	}

	server := &Server{
		address:         config.Address,
		guard:           config.Guard,
		store:           store,
		envPath:         config.EnvPath,
		singleKey:       config.Page.SingleKey,
		page:            formPage,
		logger:          logger,
		shutdownTimeout: shutdownTimeout,
		ready:           make(chan struct{}),
		settled:         make(chan struct{}),
	}
	server.handler = server.routes()
	return server, nil
}

// Handler returns the portal's request handler, for use without Serve.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address. Only valid after Ready is closed.
func (s *Server) Addr() net.Addr {
	return s.addr
}

// settle records the merge result of the consuming request.
func (s *Server) settle(result envfile.Result, err error) {
	s.settleOnce.Do(func() {
		s.mu.Lock()
		s.result = result
		s.mergeErr = err
		s.mu.Unlock()
		close(s.settled)
	})
}

// Serve binds the listener and serves until the session leaves Armed
// or ctx is cancelled. A consumed session shuts down gracefully once
// the submitting request completes; an expired session closes
// immediately. The returned error is non-nil when the listener fails
// or the accepted submission could not be saved.
func (s *Server) Serve(ctx context.Context) (Outcome, error) {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return Outcome{State: s.guard.State()}, fmt.Errorf("listening on %s: %w", s.address, err)
	}
	s.addr = listener.Addr()
	close(s.ready)

	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       30 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelDebug),
	}

	s.logger.Info("portal listening", "address", s.addr.String(), "deadline", s.guard.Deadline())

	serveDone := make(chan error, 1)
	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveDone <- err
		}
		close(serveDone)
	}()

	select {
	case <-s.guard.Done():
		if s.guard.State() == session.Expired {
			s.logger.Info("portal closing after timeout")
			server.Close()
			return Outcome{State: session.Expired}, nil
		}
		s.logger.Info("portal closing after submission")
	case <-ctx.Done():
		s.logger.Info("portal shutting down", "cause", context.Cause(ctx))
	case err := <-serveDone:
		if err != nil {
			return Outcome{State: s.guard.State()}, fmt.Errorf("serving: %w", err)
		}
		return Outcome{State: s.guard.State()}, nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("portal shutdown error", "error", err)
		server.Close()
	}

	return s.outcome(shutdownCtx)
}

// outcome reads the final state once serving has stopped. If the
// session was consumed it waits for the merge to be recorded.
func (s *Server) outcome(ctx context.Context) (Outcome, error) {
	state := s.guard.State()
	if state != session.Consumed {
		return Outcome{State: state}, nil
	}
	select {
	case <-s.settled:
	case <-ctx.Done():
		select {
		case <-s.settled:
		default:
			return Outcome{State: state}, errors.New("timed out waiting for the submission to be saved")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	outcome := Outcome{State: state, Result: s.result, Err: s.mergeErr}
	if s.mergeErr != nil {
		return outcome, fmt.Errorf("saving submission: %w", s.mergeErr)
	}
	return outcome, nil
}
