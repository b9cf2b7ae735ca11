// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Secret-portal collects secrets from a person through a one-time web
// form and merges them into a local env file.
//
// It prints a URL carrying a fresh access token, serves a small form at
// that URL, and exits after the first successful submission or when the
// timeout passes. The URL is the only thing written to stdout besides
// the final summary; structured logs go to stderr and never contain the
// token or any secret value.
//
//	secret-portal --key OPENAI_API_KEY --link https://platform.openai.com/api-keys
//	secret-portal --tunnel cloudflared --env-file ./deploy/.env
//
// Exit codes: 0 when secrets were saved, 1 on errors (including a
// submission that could not be written), 2 when the portal timed out,
// 130 when interrupted.
package main
