// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package envfile

import (
	"errors"
	"fmt"
	"io/fs"

	"golang.org/x/sys/unix"
)

// ErrPersistence matches every *PersistenceError via errors.Is.
var ErrPersistence = errors.New("persisting env file")

// Kind classifies a persistence failure.
type Kind int

const (
	// KindIO is any failure not covered by a more specific kind.
	KindIO Kind = iota
	// KindDirectoryMissing: the parent directory does not exist and
	// could not be created, or a path component is not a directory.
	KindDirectoryMissing
	// KindPermissionDenied: EACCES or EPERM on the file or directory.
	KindPermissionDenied
	// KindDiskFull: ENOSPC or EDQUOT.
	KindDiskFull
	// KindIsDirectory: the destination path is a directory.
	KindIsDirectory
	// KindReadOnly: the filesystem is mounted read-only.
	KindReadOnly
	// KindConflict: the destination changed between read and rename.
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindDirectoryMissing:
		return "directory missing"
	case KindPermissionDenied:
		return "permission denied"
	case KindDiskFull:
		return "disk full"
	case KindIsDirectory:
		return "destination is a directory"
	case KindReadOnly:
		return "read-only filesystem"
	case KindConflict:
		return "modified concurrently"
	default:
		return "i/o error"
	}
}

// PersistenceError describes a failed merge write.
type PersistenceError struct {
	Kind Kind
	// Op is the step that failed ("reading", "creating temporary file",
	// "renaming", ...).
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Kind)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Path, e.Kind, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Is makes every PersistenceError match ErrPersistence.
func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// classify wraps err with the Kind its errno implies.
func classify(op, path string, err error) *PersistenceError {
	kind := KindIO
	switch {
	case errors.Is(err, unix.EISDIR):
		kind = KindIsDirectory
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, unix.ENOTDIR):
		kind = KindDirectoryMissing
	case errors.Is(err, fs.ErrPermission):
		kind = KindPermissionDenied
	case errors.Is(err, unix.ENOSPC), errors.Is(err, unix.EDQUOT):
		kind = KindDiskFull
	case errors.Is(err, unix.EROFS):
		kind = KindReadOnly
	}
	return &PersistenceError{Kind: kind, Op: op, Path: path, Err: err}
}
