// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config defines the validated configuration record a portal
// run is started from.
//
// Values come from command-line flags, optionally layered over a file
// named by --config. The file is YAML (.yaml, .yml) or JSON with
// comments and trailing commas (.json, .jsonc). There is no automatic
// discovery: without --config only flags and built-in defaults apply.
//
// Paths beginning with "~/" are expanded against the user's home
// directory by [Config.Validate].
package config
