// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command framework behind the secret-portal
// binary: a [Command] with help output and typo suggestions, flags
// declared as tagged struct fields ([FlagsFromParams]), the command
// logger, and [ExitError] for exit codes that are outcomes rather than
// failures.
package cli
