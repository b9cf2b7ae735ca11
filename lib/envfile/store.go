// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package envfile

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/secret-portal/lib/secret"
)

const (
	// FileMode is the permission set of every file Merge writes.
	FileMode fs.FileMode = 0o600

	// DirectoryMode is used when Merge has to create the parent
	// directory.
	DirectoryMode fs.FileMode = 0o700
)

// Result summarizes a successful merge. It carries key names only.
type Result struct {
	// Path is the file that was written, after symlink resolution.
	Path string

	// Written is the number of distinct keys taken from the entries.
	Written int

	// Added lists keys that were appended, in submission order.
	Added []string

	// Updated lists keys whose existing value was replaced.
	Updated []string
}

// Store writes merged env files. The zero value is ready to use.
type Store struct {
	// beforeRename runs after the temporary file is complete and
	// before the conflict check. Tests use it to simulate concurrent
	// writers.
	beforeRename func()
}

// Merge applies entries to the env file at path and atomically
// replaces it. Entries are validated first; an invalid entry returns
// an error wrapping ErrInvalidKey or ErrInvalidValue and touches
// nothing on disk. Filesystem failures are *PersistenceError.
func (s *Store) Merge(path string, entries []Entry) (Result, error) {
	if err := Validate(entries); err != nil {
		return Result{}, err
	}

	target, err := resolveTarget(path)
	if err != nil {
		return Result{}, err
	}

	original, existed, err := readExisting(target)
	if err != nil {
		return Result{}, err
	}
	defer secret.Zero(original)
	fingerprint := blake3.Sum256(original)

	document := Parse(original)
	result := Result{Path: target}
	seen := make(map[string]bool, len(entries))
	for _, entry := range entries {
		added := document.Set(entry.Key, entry.Value)
		if seen[entry.Key] {
			continue
		}
		seen[entry.Key] = true
		if added {
			result.Added = append(result.Added, entry.Key)
		} else {
			result.Updated = append(result.Updated, entry.Key)
		}
	}
	result.Written = len(seen)

	contents := document.Bytes()
	defer secret.Zero(contents)

	if err := s.replace(target, contents, existed, fingerprint); err != nil {
		return Result{}, err
	}
	return result, nil
}

// resolveTarget follows a symlink at path so the link itself survives
// the rename, and rejects directories.
func resolveTarget(path string) (string, error) {
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return path, nil
	}
	if err != nil {
		return "", classify("inspecting", path, err)
	}

	target := path
	if info.Mode()&fs.ModeSymlink != 0 {
		resolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// Dangling link: create the file it points at.
				link, readErr := os.Readlink(path)
				if readErr != nil {
					return "", classify("reading link", path, readErr)
				}
				if !filepath.IsAbs(link) {
					link = filepath.Join(filepath.Dir(path), link)
				}
				return link, nil
			}
			return "", classify("resolving link", path, err)
		}
		target = resolved
		info, err = os.Stat(target)
		if err != nil {
			return "", classify("inspecting", target, err)
		}
	}

	if info.IsDir() {
		return "", &PersistenceError{Kind: KindIsDirectory, Op: "inspecting", Path: target}
	}
	return target, nil
}

func readExisting(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, classify("reading", path, err)
	}
	return data, true, nil
}

// replace writes contents next to path and renames it into place. The
// temporary file is removed on every failure path.
func (s *Store) replace(path string, contents []byte, existed bool, fingerprint [32]byte) error {
	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, DirectoryMode); err != nil {
		return classify("creating directory", directory, err)
	}

	file, err := os.CreateTemp(directory, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return classify("creating temporary file", directory, err)
	}
	temporaryPath := file.Name()
	fail := func(op string, err error) error {
		file.Close()
		os.Remove(temporaryPath)
		return classify(op, path, err)
	}

	if err := file.Chmod(FileMode); err != nil {
		return fail("restricting permissions", err)
	}
	if _, err := file.Write(contents); err != nil {
		return fail("writing temporary file", err)
	}
	if err := file.Sync(); err != nil {
		return fail("syncing temporary file", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return classify("closing temporary file", path, err)
	}

	if s.beforeRename != nil {
		s.beforeRename()
	}

	if err := checkUnchanged(path, existed, fingerprint); err != nil {
		os.Remove(temporaryPath)
		return err
	}

	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return classify("renaming into place", path, err)
	}

	// Make the rename durable across power loss.
	parent, err := os.Open(directory)
	if err == nil {
		parent.Sync()
		parent.Close()
	}
	return nil
}

func checkUnchanged(path string, existed bool, fingerprint [32]byte) error {
	current, nowExists, err := readExisting(path)
	if err != nil {
		return err
	}
	defer secret.Zero(current)

	switch {
	case existed != nowExists:
	case !existed:
		return nil
	default:
		sum := blake3.Sum256(current)
		if bytes.Equal(sum[:], fingerprint[:]) {
			return nil
		}
	}
	return &PersistenceError{
		Kind: KindConflict,
		Op:   "verifying",
		Path: path,
		Err:  fmt.Errorf("file changed while the merge was in progress"),
	}
}
