// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil holds the small HTTP and address helpers shared by the
// portal binary and the tunnel launchers.
//
// Response helpers (ReadResponse, DecodeResponse, ErrorBody) bound every
// body read at MaxResponseSize. The only servers the portal talks to are
// local tunnel agents and public address lookups, all of which answer
// with a few hundred bytes.
package netutil
