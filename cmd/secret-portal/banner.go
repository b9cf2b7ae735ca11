// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/bureau-foundation/secret-portal/lib/portal"
	"github.com/bureau-foundation/secret-portal/lib/session"
)

type banner struct {
	URL      string
	EnvPath  string
	Timeout  time.Duration
	Deadline time.Time
}

// palette matches the form page.
var (
	accentColor = lipgloss.Color("#58a6ff")
	mutedColor  = lipgloss.Color("#8b949e")
	okColor     = lipgloss.Color("#3fb950")
	badColor    = lipgloss.Color("#f85149")
)

type styles struct {
	title lipgloss.Style
	label lipgloss.Style
	value lipgloss.Style
	ok    lipgloss.Style
	bad   lipgloss.Style
}

// newStyles colours output only when w is a terminal, so piped stdout
// stays plain text for scripts reading the URL.
func newStyles(w io.Writer) styles {
	profile := termenv.Ascii
	if file, ok := w.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		profile = termenv.ANSI256
	}
	renderer := lipgloss.NewRenderer(w, termenv.WithProfile(profile))
	renderer.SetColorProfile(profile)
	return styles{
		title: renderer.NewStyle().Bold(true).Foreground(accentColor),
		label: renderer.NewStyle().Foreground(mutedColor),
		value: renderer.NewStyle().Bold(true),
		ok:    renderer.NewStyle().Bold(true).Foreground(okColor),
		bad:   renderer.NewStyle().Bold(true).Foreground(badColor),
	}
}

func printBanner(w io.Writer, b banner) {
	s := newStyles(w)
	var out strings.Builder
	out.WriteString(s.title.Render("secret portal is live") + "\n")
	line := func(label, value string) {
		out.WriteString("  " + s.label.Render(fmt.Sprintf("%-10s", label)) + value + "\n")
	}
	line("url:", s.value.Render(b.URL))
	line("saving to:", b.EnvPath)
	line("expires:", fmt.Sprintf("after one submission or in %s (%s)", b.Timeout, b.Deadline.Format("15:04:05 MST")))
	out.WriteString("  " + s.label.Render("waiting for secrets...") + "\n")
	io.WriteString(w, out.String())
}

func printSummary(w io.Writer, outcome portal.Outcome, envPath string, timeout time.Duration) {
	s := newStyles(w)
	var message string
	switch {
	case outcome.Saved():
		message = s.ok.Render(fmt.Sprintf("done: saved %d secret(s) to %s", outcome.Result.Written, envPath))
	case outcome.State == session.Consumed:
		message = s.bad.Render("the submission could not be saved; no secrets were written")
	case outcome.State == session.Expired:
		message = s.bad.Render(fmt.Sprintf("timed out after %s with no submission", timeout))
	default:
		message = s.bad.Render("shutting down; no secrets were saved")
	}
	io.WriteString(w, message+"\n")
}
