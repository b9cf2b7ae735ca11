// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package accesstoken

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"
)

func TestGenerate(t *testing.T) {
	token, err := Generate(rand.Reader)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	defer token.Close()

	encoded := token.String()
	if len(encoded) != EncodedLength {
		t.Fatalf("token length = %d, want %d", len(encoded), EncodedLength)
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("token is not unpadded base64url: %v", err)
	}
	if len(raw) != EntropyBytes {
		t.Errorf("decoded token has %d bytes, want %d", len(raw), EntropyBytes)
	}
}

func TestGenerateUnique(t *testing.T) {
	seen := make(map[string]bool)
	for range 32 {
		token, err := Generate(rand.Reader)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		value := token.String()
		token.Close()
		if seen[value] {
			t.Fatalf("duplicate token generated")
		}
		seen[value] = true
	}
}

func TestGenerateShortRead(t *testing.T) {
	_, err := Generate(bytes.NewReader(make([]byte, EntropyBytes-1)))
	if err == nil {
		t.Fatal("expected error when entropy source is exhausted")
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy unavailable") }

func TestGenerateSourceError(t *testing.T) {
	if _, err := Generate(failingReader{}); err == nil {
		t.Fatal("expected error from failing entropy source")
	}
}

func TestMatches(t *testing.T) {
	token, err := Generate(bytes.NewReader(bytes.Repeat([]byte{0x42}, EntropyBytes)))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	defer token.Close()

	value := token.String()
	if !token.Matches(value) {
		t.Fatal("token does not match its own string form")
	}

	flipped := "A" + value[1:]
	if value[0] == 'A' {
		flipped = "B" + value[1:]
	}
	for _, presented := range []string{"", value[:len(value)-1], value + "A", flipped} {
		if token.Matches(presented) {
			t.Errorf("Matches(%q) = true, want false", presented)
		}
	}
}

func TestMatchesAfterClose(t *testing.T) {
	token, err := Generate(rand.Reader)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	value := token.String()
	token.Close()

	if token.Matches(value) {
		t.Fatal("closed token must not match")
	}
}
