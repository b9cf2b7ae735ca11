// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tunnel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bureau-foundation/secret-portal/lib/config"
)

const (
	// CloudflaredTimeout bounds the wait for cloudflared's URL.
	CloudflaredTimeout = 15 * time.Second

	// NgrokTimeout bounds the wait for ngrok's local API to list an
	// HTTPS tunnel.
	NgrokTimeout = 10 * time.Second

	// DefaultNgrokAPI is ngrok's local inspection API.
	DefaultNgrokAPI = "http://127.0.0.1:4040/api/tunnels"
)

// Options configures Start.
type Options struct {
	// Provider selects the agent. config.TunnelNone is an error.
	Provider config.Tunnel

	// LocalPort is the port the portal listens on.
	LocalPort int

	// Binary overrides the agent executable. By default the provider
	// name is looked up on PATH; cloudflared is also tried in the home
	// directory.
	Binary string

	// Timeout overrides the provider's wait for a public URL.
	Timeout time.Duration

	// NgrokAPI overrides DefaultNgrokAPI.
	NgrokAPI string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Tunnel is a running tunnel agent.
type Tunnel struct {
	// URL is the public HTTPS base URL, without a trailing slash.
	URL string

	provider config.Tunnel
	cmd      *exec.Cmd
	exited   chan struct{}
	waitErr  error
	logger   *slog.Logger

	closeOnce sync.Once
}

// ErrNoURL is returned when the agent did not report a public URL in
// time.
var ErrNoURL = errors.New("tunnel did not report a public URL")

// Start launches the agent and waits for its public URL. On failure the
// agent is stopped before Start returns.
func Start(ctx context.Context, options Options) (*Tunnel, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("tunnel", string(options.Provider))

	if options.LocalPort <= 0 {
		return nil, fmt.Errorf("tunnel: invalid local port %d", options.LocalPort)
	}

	switch options.Provider {
	case config.TunnelCloudflared:
		return startCloudflared(ctx, options, logger)
	case config.TunnelNgrok:
		return startNgrok(ctx, options, logger)
	case config.TunnelNone, "":
		return nil, errors.New("tunnel: no provider selected")
	default:
		return nil, fmt.Errorf("tunnel: unknown provider %q", options.Provider)
	}
}

// resolveBinary finds the agent executable.
func resolveBinary(options Options) (string, error) {
	if options.Binary != "" {
		return options.Binary, nil
	}
	name := string(options.Provider)
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}
	if options.Provider == config.TunnelCloudflared {
		if home, err := os.UserHomeDir(); err == nil {
			candidate := filepath.Join(home, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
	}
	return "", fmt.Errorf("tunnel: %s not found on PATH; install it or choose another --tunnel", name)
}

// launch starts cmd and reaps it in the background.
func launch(cmd *exec.Cmd, provider config.Tunnel, logger *slog.Logger) (*Tunnel, error) {
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", provider, err)
	}
	tunnel := &Tunnel{
		provider: provider,
		cmd:      cmd,
		exited:   make(chan struct{}),
		logger:   logger,
	}
	go func() {
		tunnel.waitErr = cmd.Wait()
		close(tunnel.exited)
	}()
	logger.Info("tunnel agent started", "pid", cmd.Process.Pid)
	return tunnel, nil
}

// Exited is closed when the agent process exits.
func (t *Tunnel) Exited() <-chan struct{} {
	return t.exited
}

// Close stops the agent and waits for it to exit.
func (t *Tunnel) Close() error {
	t.closeOnce.Do(func() {
		select {
		case <-t.exited:
			return
		default:
		}
		if err := t.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			t.logger.Warn("stopping tunnel agent", "error", err)
		}
		<-t.exited
		t.logger.Info("tunnel agent stopped")
	})
	return nil
}

// exitError describes why the agent exited early.
func (t *Tunnel) exitError() error {
	if t.waitErr != nil {
		return fmt.Errorf("%s exited: %w", t.provider, t.waitErr)
	}
	return fmt.Errorf("%s exited", t.provider)
}

func waitTimeout(options Options, fallback time.Duration) time.Duration {
	if options.Timeout > 0 {
		return options.Timeout
	}
	return fallback
}

// trimURL normalises a reported URL to a base without a trailing slash.
func trimURL(url string) string {
	return strings.TrimRight(url, "/")
}
