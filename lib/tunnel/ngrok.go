// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tunnel

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/bureau-foundation/secret-portal/lib/netutil"
)

const ngrokPollInterval = 500 * time.Millisecond

// ngrokTunnels is the subset of ngrok's /api/tunnels response we read.
type ngrokTunnels struct {
	Tunnels []struct {
		PublicURL string `json:"public_url"`
		Proto     string `json:"proto"`
	} `json:"tunnels"`
}

// FetchNgrokURL asks ngrok's local API for its HTTPS tunnel URL. It
// returns "" with no error while the tunnel is still coming up.
func FetchNgrokURL(ctx context.Context, client *http.Client, apiURL string) (string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return "", err
	}
	response, err := client.Do(request)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ngrok API: %s: %s", response.Status, netutil.ErrorBody(response.Body))
	}

	var listing ngrokTunnels
	if err := netutil.DecodeResponse(response.Body, &listing); err != nil {
		return "", fmt.Errorf("decoding ngrok API response: %w", err)
	}
	for _, tunnel := range listing.Tunnels {
		if strings.HasPrefix(tunnel.PublicURL, "https://") {
			return tunnel.PublicURL, nil
		}
	}
	return "", nil
}

func startNgrok(ctx context.Context, options Options, logger *slog.Logger) (*Tunnel, error) {
	binary, err := resolveBinary(options)
	if err != nil {
		return nil, err
	}
	apiURL := options.NgrokAPI
	if apiURL == "" {
		apiURL = DefaultNgrokAPI
	}

	cmd := exec.Command(binary, "http", strconv.Itoa(options.LocalPort), "--log", "stdout", "--log-format", "json")
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	tunnel, err := launch(cmd, options.Provider, logger)
	if err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, waitTimeout(options, NgrokTimeout))
	defer cancel()

	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(ngrokPollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		url, err := FetchNgrokURL(waitCtx, client, apiURL)
		if err != nil {
			lastErr = err
			logger.Debug("ngrok API not ready", "error", err)
		}
		if url != "" {
			tunnel.URL = trimURL(url)
			logger.Info("tunnel ready", "url", tunnel.URL)
			return tunnel, nil
		}

		select {
		case <-ticker.C:
		case <-tunnel.exited:
			return nil, tunnel.exitError()
		case <-waitCtx.Done():
			tunnel.Close()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if lastErr != nil {
				return nil, fmt.Errorf("ngrok: %w (last error: %v)", ErrNoURL, lastErr)
			}
			return nil, fmt.Errorf("ngrok: %w", ErrNoURL)
		}
	}
}
