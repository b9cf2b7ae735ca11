// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"os"
)

// ExitCoder is implemented by errors that carry a specific process
// exit code.
type ExitCoder interface {
	ExitCode() int
}

// Fatal reports err and exits. Errors implementing ExitCoder exit with
// their own code and print nothing: the command has already explained
// itself. Everything else prints "error: err" to stderr and exits 1.
func Fatal(err error) {
	os.Exit(Report(err))
}

// Report prints err the way Fatal does and returns the exit code
// without exiting.
func Report(err error) int {
	if err == nil {
		return 0
	}
	var coder ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return 1
}
