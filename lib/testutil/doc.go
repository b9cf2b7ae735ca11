// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so tests waiting on a server goroutine or a session's Done
// channel fail with a message instead of hanging. They are the only
// place tests use a real wall-clock timeout; everything else runs on
// clock.Fake.
//
// [LockedBuffer] is an io.Writer safe for concurrent use, for capturing
// log output written from handler goroutines.
package testutil
