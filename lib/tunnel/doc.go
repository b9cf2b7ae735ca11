// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tunnel exposes the local portal listener at a public URL.
//
// Two external tunnel agents are supported. Start runs the agent as a
// child process and returns once it reports a public HTTPS URL:
//
//   - cloudflared prints its trycloudflare.com URL on stderr
//   - ngrok publishes its tunnels on a local API at 127.0.0.1:4040
//
// Without a tunnel, [PublicBaseURL] guesses the address visitors should
// use (PORTAL_HOST, then the machine's public IP, then localhost) and
// [Probe] checks whether that address actually reaches the listener.
//
// The agents are opaque: the package neither installs them nor
// interprets their output beyond finding the URL.
package tunnel
