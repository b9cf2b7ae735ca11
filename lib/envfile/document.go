// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package envfile

import (
	"strings"
)

// Document is a parsed env file that remembers every original line.
type Document struct {
	lines []line
	index map[string]int
}

type line struct {
	// raw is the original text, emitted unchanged unless dirty.
	raw string

	// key is empty for passthrough lines (comments, blanks, malformed).
	key    string
	value  string
	export bool

	// dirty lines are re-rendered from key and value.
	dirty bool
}

func (l line) render() string {
	if !l.dirty {
		return l.raw
	}
	if l.export {
		return "export " + l.key + "=" + l.value
	}
	return l.key + "=" + l.value
}

// Parse reads env file contents. It never fails: anything that is not
// a KEY=VALUE assignment is kept as an opaque line. When a key appears
// more than once, the first line keeps its position, takes the value
// of the last occurrence, and the later lines are dropped.
func Parse(data []byte) *Document {
	document := &Document{index: make(map[string]int)}
	if len(data) == 0 {
		return document
	}

	text := strings.TrimSuffix(string(data), "\n")
	for _, raw := range strings.Split(text, "\n") {
		parsed, ok := parseAssignment(raw)
		if !ok {
			document.lines = append(document.lines, line{raw: raw})
			continue
		}
		if position, exists := document.index[parsed.key]; exists {
			first := &document.lines[position]
			if first.value != parsed.value {
				first.value = parsed.value
				first.dirty = true
			}
			continue
		}
		document.index[parsed.key] = len(document.lines)
		document.lines = append(document.lines, parsed)
	}
	return document
}

func parseAssignment(raw string) (line, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return line{}, false
	}

	export := false
	if rest, found := strings.CutPrefix(trimmed, "export "); found {
		export = true
		trimmed = strings.TrimLeft(rest, " \t")
	}

	key, value, found := strings.Cut(trimmed, "=")
	if !found {
		return line{}, false
	}
	key = strings.TrimSpace(key)
	if !ValidKey(key) {
		return line{}, false
	}
	return line{
		raw:    raw,
		key:    key,
		value:  strings.TrimSpace(value),
		export: export,
	}, true
}

// Get returns the value recorded for key.
func (d *Document) Get(key string) (string, bool) {
	position, ok := d.index[key]
	if !ok {
		return "", false
	}
	return d.lines[position].value, true
}

// Set assigns value to key. An existing key is updated in place; a new
// key is appended. Reports whether the key was new.
func (d *Document) Set(key, value string) bool {
	if position, ok := d.index[key]; ok {
		d.lines[position].value = value
		d.lines[position].dirty = true
		return false
	}
	d.index[key] = len(d.lines)
	d.lines = append(d.lines, line{key: key, value: value, dirty: true})
	return true
}

// Keys returns the assigned keys in file order.
func (d *Document) Keys() []string {
	keys := make([]string, 0, len(d.index))
	for _, l := range d.lines {
		if l.key != "" {
			keys = append(keys, l.key)
		}
	}
	return keys
}

// Bytes renders the document. Non-empty output always ends in a
// newline.
func (d *Document) Bytes() []byte {
	var builder strings.Builder
	for _, l := range d.lines {
		builder.WriteString(l.render())
		builder.WriteByte('\n')
	}
	return []byte(builder.String())
}
