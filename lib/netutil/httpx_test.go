// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"bytes"
	"errors"
	"net"
	"strings"
	"testing"
)

type failReader struct{}

func (failReader) Read([]byte) (int, error) { return 0, errors.New("read failed") }

func TestReadResponse(t *testing.T) {
	t.Run("normal body", func(t *testing.T) {
		data, err := ReadResponse(strings.NewReader(`{"status":"ok"}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != `{"status":"ok"}` {
			t.Fatalf("got %q, want %q", data, `{"status":"ok"}`)
		}
	})

	t.Run("bounded", func(t *testing.T) {
		data, err := ReadResponse(bytes.NewReader(make([]byte, MaxResponseSize+10)))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if int64(len(data)) != MaxResponseSize {
			t.Fatalf("read %d bytes, want %d", len(data), MaxResponseSize)
		}
	})

	t.Run("read error propagates", func(t *testing.T) {
		if _, err := ReadResponse(failReader{}); err == nil {
			t.Fatal("expected error from failing reader")
		}
	})
}

func TestDecodeResponse(t *testing.T) {
	var result struct {
		PublicURL string `json:"public_url"`
	}
	if err := DecodeResponse(strings.NewReader(`{"public_url":"https://a.example"}`), &result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.PublicURL != "https://a.example" {
		t.Fatalf("public_url: got %q", result.PublicURL)
	}
	if err := DecodeResponse(strings.NewReader(`not json`), &result); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if err := DecodeResponse(failReader{}, &result); err == nil {
		t.Fatal("expected error from failing reader")
	}
}

func TestErrorBody(t *testing.T) {
	if got := ErrorBody(strings.NewReader("  bad gateway\n")); got != "bad gateway" {
		t.Fatalf("got %q, want %q", got, "bad gateway")
	}
	if got := ErrorBody(failReader{}); got != "" {
		t.Fatalf("got %q from failing reader, want empty", got)
	}
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"localhost", 8080, "http://localhost:8080"},
		{"203.0.113.7", 80, "http://203.0.113.7:80"},
		{"::1", 9000, "http://[::1]:9000"},
		{"[2001:db8::1]", 443, "http://[2001:db8::1]:443"},
	}
	for _, test := range tests {
		if got := BaseURL(test.host, test.port); got != test.want {
			t.Errorf("BaseURL(%q, %d) = %q, want %q", test.host, test.port, got, test.want)
		}
	}
}

func TestPort(t *testing.T) {
	port, err := Port(&net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4321})
	if err != nil || port != 4321 {
		t.Fatalf("Port(TCPAddr) = %d, %v; want 4321", port, err)
	}
	port, err = Port(&net.UnixAddr{Name: "/tmp/socket", Net: "unix"})
	if err == nil {
		t.Fatalf("Port(UnixAddr) = %d, want an error", port)
	}
}
