// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tunnel

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/bureau-foundation/secret-portal/lib/netutil"
)

const (
	// HostEnv overrides public host discovery. It may include a port.
	HostEnv = "PORTAL_HOST"

	// DefaultCheckIPURL answers with the caller's public IPv4 address.
	DefaultCheckIPURL = "http://checkip.amazonaws.com"

	checkIPTimeout = 2 * time.Second
	probeTimeout   = 3 * time.Second
)

// Discovery configures PublicBaseURL. The zero value uses the process
// environment and DefaultCheckIPURL.
type Discovery struct {
	Getenv     func(string) string
	CheckIPURL string
	Client     *http.Client
	Logger     *slog.Logger
}

// PublicBaseURL returns the base URL visitors should use to reach a
// portal listening on port when no tunnel is running. The host comes
// from PORTAL_HOST, else the public IP reported by the check-IP
// service, else localhost. A PORTAL_HOST that carries its own port is
// used as is.
func (d Discovery) PublicBaseURL(ctx context.Context, port int) string {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	getenv := d.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	if host := strings.TrimSpace(getenv(HostEnv)); host != "" {
		if _, _, err := net.SplitHostPort(host); err == nil {
			return "http://" + host
		}
		return netutil.BaseURL(host, port)
	}

	address, err := d.lookupPublicIP(ctx)
	if err != nil {
		logger.Warn("public address lookup failed, using localhost", "error", err)
		return netutil.BaseURL("localhost", port)
	}
	return netutil.BaseURL(address, port)
}

func (d Discovery) lookupPublicIP(ctx context.Context) (string, error) {
	checkURL := d.CheckIPURL
	if checkURL == "" {
		checkURL = DefaultCheckIPURL
	}
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}

	ctx, cancel := context.WithTimeout(ctx, checkIPTimeout)
	defer cancel()
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, checkURL, nil)
	if err != nil {
		return "", err
	}
	response, err := client.Do(request)
	if err != nil {
		return "", err
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s: %s", checkURL, response.Status)
	}
	body, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return "", err
	}
	address := strings.TrimSpace(string(body))
	if net.ParseIP(address) == nil {
		return "", fmt.Errorf("%s returned %q, not an IP address", checkURL, address)
	}
	return address, nil
}

// Probe reports whether baseURL reaches an HTTP server. Any HTTP
// response counts, including the portal's own denial.
func Probe(ctx context.Context, client *http.Client, baseURL string) error {
	if client == nil {
		client = http.DefaultClient
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/", nil)
	if err != nil {
		return err
	}
	response, err := client.Do(request)
	if err != nil {
		return err
	}
	response.Body.Close()
	return nil
}
