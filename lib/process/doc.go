// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides the binary entrypoint error handler.
//
// Fatal is one of the few places allowed to write to stderr directly:
// it runs when run() fails, possibly before the structured logger
// exists.
package process
