// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package accesstoken generates the bearer token that gates a portal
// session.
//
// A token is 32 bytes from a cryptographically secure source, encoded
// as unpadded base64url so it can sit in a URL path segment without
// escaping. The encoded form lives in a [secret.Buffer]; the only heap
// copy is the one returned by [Token.String] for the startup URL.
// [Token.Matches] compares presented values in constant time.
package accesstoken
