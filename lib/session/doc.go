// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package session implements the single-use portal session.
//
// A [Guard] starts Armed and ends in exactly one terminal state:
// Consumed, after the first authorized submission, or Expired, when
// the timeout elapses first. Both transitions happen under one mutex,
// so a submission racing the timer either wins outright (the timer
// becomes a no-op) or loses outright (the submission is refused and
// nothing is written). [Guard.Done] closes on whichever transition
// happens; the portal server waits on it to shut down.
//
// Token checks are constant time and run even when the session is no
// longer Armed, so a denied request costs the same whatever the
// reason.
package session
