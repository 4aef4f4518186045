// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	// TitleStyle is used for command headers.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	// LabelStyle is used for left-aligned field labels.
	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(14)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	// RoleStyles colour the role column of `retort state`.
	RoleStyles = map[string]lipgloss.Style{
		"listening": lipgloss.NewStyle().Foreground(lipgloss.Color("242")).Italic(true),
		"user":      lipgloss.NewStyle().Foreground(lipgloss.Color("75")),
		"assistant": lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	}
)

// =============================================================================
// COLOR PROFILE
// =============================================================================

// colorProfile picks the lipgloss profile for w. Output that is not a
// terminal, NO_COLOR and TERM=dumb get plain ASCII.
func colorProfile(w io.Writer) termenv.Profile {
	if _, ok := os.LookupEnv("NO_COLOR"); ok || os.Getenv("TERM") == "dumb" {
		return termenv.Ascii
	}
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return termenv.Ascii
	}
	return termenv.NewOutput(f).ColorProfile()
}

// setupStyles applies the profile for w to every shared style.
func setupStyles(w io.Writer) {
	lipgloss.SetColorProfile(colorProfile(w))
}
