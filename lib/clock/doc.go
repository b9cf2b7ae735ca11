// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used by the portal
// session. Production code uses Real(); tests use Fake() and move time
// forward explicitly with Advance, so a five-minute session deadline
// can be exercised without waiting five minutes.
//
// Only the operations the portal needs are abstracted: reading the
// current time and scheduling a one-shot callback.
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	guard, _ := session.New(session.Config{Clock: c, ...})
//	c.Advance(guard.Remaining()) // fires the expiry callback synchronously
package clock
