// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/secret-portal/lib/accesstoken"
	"github.com/bureau-foundation/secret-portal/lib/clock"
)

// DefaultTimeout is how long a session stays Armed without a
// submission.
const DefaultTimeout = 300 * time.Second

// State is the lifecycle position of a session.
type State int

const (
	Armed State = iota
	Consumed
	Expired
)

func (s State) String() string {
	switch s {
	case Armed:
		return "armed"
	case Consumed:
		return "consumed"
	case Expired:
		return "expired"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	// ErrInvalidToken: the presented token is not the session token.
	ErrInvalidToken = errors.New("invalid token")

	// ErrSessionConsumed: the session already accepted a submission.
	ErrSessionConsumed = errors.New("session already consumed")

	// ErrSessionExpired: the session timed out.
	ErrSessionExpired = errors.New("session expired")
)

// Config configures a Guard.
type Config struct {
	// Token is the only credential the session accepts. Required.
	// The Guard takes ownership and closes it in Close.
	Token *accesstoken.Token

	// Timeout is how long the session stays Armed. Defaults to
	// DefaultTimeout when zero.
	Timeout time.Duration

	// Clock defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Guard owns the session state. Create one with New; it is safe for
// concurrent use.
type Guard struct {
	token     *accesstoken.Token
	clock     clock.Clock
	logger    *slog.Logger
	createdAt time.Time
	deadline  time.Time
	timer     *clock.Timer

	mu    sync.Mutex
	state State
	done  chan struct{}
}

// New creates an Armed session and starts its timeout.
func New(config Config) (*Guard, error) {
	if config.Token == nil {
		return nil, errors.New("session: token is required")
	}
	if config.Timeout < 0 {
		return nil, fmt.Errorf("session: timeout must not be negative, got %s", config.Timeout)
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	sessionClock := config.Clock
	if sessionClock == nil {
		sessionClock = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := sessionClock.Now()
	guard := &Guard{
		token:     config.Token,
		clock:     sessionClock,
		logger:    logger,
		createdAt: now,
		deadline:  now.Add(timeout),
		state:     Armed,
		done:      make(chan struct{}),
	}
	guard.timer = sessionClock.AfterFunc(timeout, guard.expire)
	return guard, nil
}

// Authorize reports whether presented is the session token and the
// session is still Armed. It never changes state.
func (g *Guard) Authorize(presented string) bool {
	return g.check(presented) == nil
}

// check classifies a presented token against the current state. The
// token comparison always runs first.
func (g *Guard) check(presented string) error {
	matches := g.token.Matches(presented)

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.checkLocked(matches)
}

func (g *Guard) checkLocked(matches bool) error {
	if !matches {
		return ErrInvalidToken
	}
	switch g.state {
	case Consumed:
		return ErrSessionConsumed
	case Expired:
		return ErrSessionExpired
	}
	return nil
}

// Reason returns why presented would be refused, or nil if it would be
// accepted. Callers use it for server-side logging only; every refusal
// must look the same to the client.
func (g *Guard) Reason(presented string) error {
	return g.check(presented)
}

// Consume atomically re-checks presented and moves the session from
// Armed to Consumed. Only the first successful call returns nil; every
// later call, and any call after expiry, returns an error and has no
// effect.
func (g *Guard) Consume(presented string) error {
	matches := g.token.Matches(presented)

	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkLocked(matches); err != nil {
		return err
	}
	g.state = Consumed
	g.timer.Stop()
	close(g.done)
	g.logger.Info("session consumed",
		"elapsed", g.clock.Now().Sub(g.createdAt).Round(time.Millisecond).String(),
	)
	return nil
}

// expire is the timeout callback.
func (g *Guard) expire() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != Armed {
		return
	}
	g.state = Expired
	close(g.done)
	g.logger.Info("session expired", "deadline", g.deadline)
}

// Done is closed when the session leaves Armed.
func (g *Guard) Done() <-chan struct{} {
	return g.done
}

// State returns the current state.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// CreatedAt returns when the session was armed.
func (g *Guard) CreatedAt() time.Time { return g.createdAt }

// Deadline returns when the session expires if not consumed first.
func (g *Guard) Deadline() time.Time { return g.deadline }

// Remaining returns the time left before expiry, or zero once the
// session is terminal.
func (g *Guard) Remaining() time.Duration {
	if g.State() != Armed {
		return 0
	}
	remaining := g.deadline.Sub(g.clock.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Close stops the timer and wipes the token. A closed Guard refuses
// every token. Close does not change State.
func (g *Guard) Close() error {
	g.timer.Stop()
	return g.token.Close()
}
