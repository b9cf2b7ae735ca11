// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package portal serves the one-time secret entry page.
//
// A [Server] exposes exactly two routes under the session token:
//
//	GET  /{token}         the entry form
//	POST /{token}/submit  JSON submission, merged into the env file
//
// Every other request, and every request whose token is wrong or whose
// session is no longer Armed, receives the same 403 denial. The
// [session.Guard] decides which requests are honoured; the server only
// translates its answers into HTTP and shuts down once the guard
// reaches a terminal state. A consumed session drains gracefully so
// the submitting client sees its confirmation. An expired session
// closes the listener immediately.
//
// Submission bodies are capped at [MaxSubmissionSize] and accepted in
// two shapes, both order-preserving:
//
//	{"entries": [{"key": "OPENAI_API_KEY", "value": "sk-..."}]}
//	{"OPENAI_API_KEY": "sk-..."}
//
// Logs carry key names, counts, and request ids. Tokens, URL paths, and
// secret values are never logged.
package portal
