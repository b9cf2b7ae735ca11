// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package envfile merges key/value secrets into a dotenv-style file.
//
// The file format is one KEY=VALUE per line. Comments, blank lines and
// lines that do not parse as assignments are carried through verbatim
// in their original position. An "export " prefix on an assignment is
// recognized and kept when the value is replaced.
//
// [Store.Merge] is the only writer. It replaces existing keys in place,
// appends new keys in submission order, and writes the result through a
// temporary file in the destination directory that is chmod 0600,
// fsynced and renamed into place, so the destination is never observed
// half-written or with weaker permissions. A BLAKE3 fingerprint of the
// original contents is checked immediately before the rename; if
// another process changed the file in the meantime the merge fails
// with [KindConflict] rather than discarding that change.
//
// Failures are reported as [*PersistenceError] whose [Kind] tells
// apart a missing directory, permission problems, a full disk, a
// read-only filesystem and a destination that is a directory. No error
// produced by this package contains a secret value.
package envfile
