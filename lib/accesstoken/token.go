// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package accesstoken

import (
	"encoding/base64"
	"fmt"
	"io"

	"github.com/bureau-foundation/secret-portal/lib/secret"
)

// EntropyBytes is the number of random bytes behind every token.
const EntropyBytes = 32

// EncodedLength is the length of a token's string form.
var EncodedLength = base64.RawURLEncoding.EncodedLen(EntropyBytes)

// Token is a session access token. The zero value is not usable; use
// Generate.
type Token struct {
	encoded *secret.Buffer
}

// Generate reads EntropyBytes from source (crypto/rand.Reader in
// production) and returns the encoded token. A short read is an error:
// a process that cannot obtain entropy must not start a portal.
func Generate(source io.Reader) (*Token, error) {
	raw := make([]byte, EntropyBytes)
	defer secret.Zero(raw)

	if _, err := io.ReadFull(source, raw); err != nil {
		return nil, fmt.Errorf("reading token entropy: %w", err)
	}

	encoded := make([]byte, EncodedLength)
	base64.RawURLEncoding.Encode(encoded, raw)

	buffer, err := secret.NewFromBytes(encoded)
	if err != nil {
		return nil, fmt.Errorf("protecting token: %w", err)
	}
	return &Token{encoded: buffer}, nil
}

// Matches reports whether presented is this token, in constant time
// with respect to the token contents.
func (t *Token) Matches(presented string) bool {
	return t.encoded.Equal([]byte(presented))
}

// String returns the URL-safe token. Callers must not log it.
func (t *Token) String() string {
	return t.encoded.String()
}

// Close wipes the token from memory. A closed token matches nothing.
func (t *Token) Close() error {
	return t.encoded.Close()
}
