// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tunnel

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/secret-portal/lib/config"
	"github.com/bureau-foundation/secret-portal/lib/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeAgent writes a shell script standing in for a tunnel agent.
func fakeAgent(t *testing.T, body string) string {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	path := filepath.Join(t.TempDir(), "agent")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("writing fake agent: %v", err)
	}
	return path
}

func TestScanQuickTunnelURL(t *testing.T) {
	output := strings.Join([]string{
		"2026-03-01T12:00:00Z INF Requesting new quick Tunnel on trycloudflare.com...",
		"2026-03-01T12:00:01Z INF +--------------------------------------------------------+",
		"2026-03-01T12:00:01Z INF |  https://quiet-river-42.trycloudflare.com              |",
		"2026-03-01T12:00:01Z INF +--------------------------------------------------------+",
		"2026-03-01T12:00:02Z INF https://other-host.trycloudflare.com",
	}, "\n")

	found := make(chan string, 1)
	done := make(chan struct{})
	go func() {
		ScanQuickTunnelURL(strings.NewReader(output), found, discardLogger())
		close(done)
	}()

	testutil.RequireClosed(t, done, 5*time.Second, "scanner drained")
	url := testutil.RequireReceive(t, found, time.Second, "url")
	if url != "https://quiet-river-42.trycloudflare.com" {
		t.Errorf("url = %q", url)
	}
	select {
	case extra := <-found:
		t.Errorf("second url sent: %q", extra)
	default:
	}
}

func TestScanQuickTunnelURLIgnoresOtherHosts(t *testing.T) {
	found := make(chan string, 1)
	ScanQuickTunnelURL(strings.NewReader("see https://www.cloudflare.com/ and https://evil.example/trycloudflare.com\n"), found, discardLogger())
	select {
	case url := <-found:
		t.Errorf("unexpected url %q", url)
	default:
	}
}

func TestStartCloudflared(t *testing.T) {
	agent := fakeAgent(t, `echo "INF Requesting new quick Tunnel" >&2
echo "INF |  https://quiet-river-42.trycloudflare.com  |" >&2
exec sleep 60`)

	tunnel, err := Start(context.Background(), Options{
		Provider:  config.TunnelCloudflared,
		LocalPort: 8080,
		Binary:    agent,
		Logger:    discardLogger(),
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if tunnel.URL != "https://quiet-river-42.trycloudflare.com" {
		t.Errorf("URL = %q", tunnel.URL)
	}
	tunnel.Close()
	testutil.RequireClosed(t, tunnel.Exited(), 5*time.Second, "agent exit")
	tunnel.Close()
}

func TestStartCloudflaredAgentExits(t *testing.T) {
	agent := fakeAgent(t, `echo "ERR failed to connect" >&2
exit 3`)

	_, err := Start(context.Background(), Options{
		Provider:  config.TunnelCloudflared,
		LocalPort: 8080,
		Binary:    agent,
		Logger:    discardLogger(),
	})
	if err == nil {
		t.Fatal("Start succeeded with an agent that exited")
	}
	if !strings.Contains(err.Error(), "exited") {
		t.Errorf("error = %v, want an exit error", err)
	}
}

func TestStartCloudflaredTimeout(t *testing.T) {
	agent := fakeAgent(t, `exec sleep 60`)

	_, err := Start(context.Background(), Options{
		Provider:  config.TunnelCloudflared,
		LocalPort: 8080,
		Binary:    agent,
		Timeout:   200 * time.Millisecond,
		Logger:    discardLogger(),
	})
	if !errors.Is(err, ErrNoURL) {
		t.Fatalf("Start error = %v, want ErrNoURL", err)
	}
}

func ngrokAPI(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetchNgrokURL(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"https tunnel", `{"tunnels":[{"public_url":"http://abc.ngrok.io","proto":"http"},{"public_url":"https://abc.ngrok-free.app","proto":"https"}]}`, "https://abc.ngrok-free.app"},
		{"only http", `{"tunnels":[{"public_url":"http://abc.ngrok.io","proto":"http"}]}`, ""},
		{"none yet", `{"tunnels":[]}`, ""},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			server := ngrokAPI(t, test.body)
			got, err := FetchNgrokURL(context.Background(), server.Client(), server.URL)
			if err != nil {
				t.Fatalf("FetchNgrokURL: %v", err)
			}
			if got != test.want {
				t.Errorf("got %q, want %q", got, test.want)
			}
		})
	}
}

func TestFetchNgrokURLErrors(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "starting", http.StatusBadGateway)
	}))
	defer failing.Close()
	if _, err := FetchNgrokURL(context.Background(), failing.Client(), failing.URL); err == nil || !strings.Contains(err.Error(), "starting") {
		t.Errorf("error = %v, want the response body in the error", err)
	}

	garbage := ngrokAPI(t, "not json")
	if _, err := FetchNgrokURL(context.Background(), garbage.Client(), garbage.URL); err == nil {
		t.Error("expected a decode error")
	}
}

func TestStartNgrok(t *testing.T) {
	agent := fakeAgent(t, `exec sleep 60`)
	server := ngrokAPI(t, `{"tunnels":[{"public_url":"https://abc.ngrok-free.app/","proto":"https"}]}`)

	tunnel, err := Start(context.Background(), Options{
		Provider:  config.TunnelNgrok,
		LocalPort: 8080,
		Binary:    agent,
		NgrokAPI:  server.URL,
		Logger:    discardLogger(),
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer tunnel.Close()
	if tunnel.URL != "https://abc.ngrok-free.app" {
		t.Errorf("URL = %q", tunnel.URL)
	}
}

func TestStartNgrokTimeout(t *testing.T) {
	agent := fakeAgent(t, `exec sleep 60`)
	server := ngrokAPI(t, `{"tunnels":[]}`)

	_, err := Start(context.Background(), Options{
		Provider:  config.TunnelNgrok,
		LocalPort: 8080,
		Binary:    agent,
		NgrokAPI:  server.URL,
		Timeout:   300 * time.Millisecond,
		Logger:    discardLogger(),
	})
	if !errors.Is(err, ErrNoURL) {
		t.Fatalf("Start error = %v, want ErrNoURL", err)
	}
}

func TestStartRejectsBadOptions(t *testing.T) {
	tests := []struct {
		name    string
		options Options
	}{
		{"no provider", Options{Provider: config.TunnelNone, LocalPort: 80}},
		{"unknown provider", Options{Provider: "wormhole", LocalPort: 80}},
		{"no port", Options{Provider: config.TunnelNgrok}},
	}
	for _, test := range tests {
		test.options.Logger = discardLogger()
		if _, err := Start(context.Background(), test.options); err == nil {
			t.Errorf("%s: Start succeeded", test.name)
		}
	}
}

func TestStartMissingBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	_, err := Start(context.Background(), Options{
		Provider:  config.TunnelCloudflared,
		LocalPort: 8080,
		Logger:    discardLogger(),
	})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("error = %v, want not found", err)
	}
}
