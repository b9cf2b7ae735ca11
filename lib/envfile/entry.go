// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package envfile

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// KeyPattern is the accepted shape of an environment variable name.
const KeyPattern = `^[A-Za-z_][A-Za-z0-9_]*$`

var keyExpression = regexp.MustCompile(KeyPattern)

var (
	// ErrInvalidKey reports a key that is not an environment variable
	// name.
	ErrInvalidKey = errors.New("invalid key")

	// ErrInvalidValue reports a value that cannot be represented on a
	// single KEY=VALUE line.
	ErrInvalidValue = errors.New("invalid value")
)

// Entry is one submitted secret. Value may be empty.
type Entry struct {
	Key   string
	Value string
}

// ValidKey reports whether key can be written as an environment
// variable name.
func ValidKey(key string) bool {
	return keyExpression.MatchString(key)
}

// Validate checks every entry. The returned error names the entry by
// position; it includes the key only when the key is valid, since an
// invalid key may be a value pasted into the wrong field.
func Validate(entries []Entry) error {
	if len(entries) == 0 {
		return errors.New("no entries")
	}
	for index, entry := range entries {
		if !ValidKey(entry.Key) {
			return fmt.Errorf("entry %d: %w: must match %s", index+1, ErrInvalidKey, KeyPattern)
		}
		if strings.ContainsAny(entry.Value, "\r\n\x00") {
			return fmt.Errorf("entry %d (%s): %w: line breaks and NUL bytes are not allowed", index+1, entry.Key, ErrInvalidValue)
		}
	}
	return nil
}
