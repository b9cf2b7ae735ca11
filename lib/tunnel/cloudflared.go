// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tunnel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strconv"
)

var quickTunnelURL = regexp.MustCompile(`https://[a-z0-9-]+\.trycloudflare\.com`)

// ScanQuickTunnelURL reads cloudflared's log output and sends the first
// trycloudflare.com URL it finds on found. It keeps draining the reader
// until EOF so the agent never blocks on a full pipe.
func ScanQuickTunnelURL(reader io.Reader, found chan<- string, logger *slog.Logger) {
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	sent := false
	for scanner.Scan() {
		line := scanner.Text()
		logger.Debug("cloudflared", "line", line)
		if sent {
			continue
		}
		if url := quickTunnelURL.FindString(line); url != "" {
			found <- url
			sent = true
		}
	}
}

func startCloudflared(ctx context.Context, options Options, logger *slog.Logger) (*Tunnel, error) {
	binary, err := resolveBinary(options)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(binary, "tunnel", "--no-autoupdate", "--url", "http://localhost:"+strconv.Itoa(options.LocalPort))
	// A plain pipe rather than StderrPipe: the reaper goroutine calls
	// Wait while the scanner is still reading.
	stderr, stderrWriter, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("cloudflared stderr: %w", err)
	}
	cmd.Stderr = stderrWriter
	tunnel, err := launch(cmd, options.Provider, logger)
	stderrWriter.Close()
	if err != nil {
		stderr.Close()
		return nil, err
	}

	found := make(chan string, 1)
	go func() {
		defer stderr.Close()
		ScanQuickTunnelURL(stderr, found, logger)
	}()

	waitCtx, cancel := context.WithTimeout(ctx, waitTimeout(options, CloudflaredTimeout))
	defer cancel()

	select {
	case url := <-found:
		tunnel.URL = trimURL(url)
		logger.Info("tunnel ready", "url", tunnel.URL)
		return tunnel, nil
	case <-tunnel.exited:
		return nil, tunnel.exitError()
	case <-waitCtx.Done():
		tunnel.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("cloudflared: %w", ErrNoURL)
	}
}
