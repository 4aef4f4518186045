// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the overlay.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	Panel lipgloss.Style

	// Bubbles
	ListeningBubble lipgloss.Style
	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	StreamCursor    lipgloss.Style

	// Controls
	Control      lipgloss.Style
	ControlClose lipgloss.Style
	Grip         lipgloss.Style
	Spinner      lipgloss.Style
}

// NewTheme creates a new theme with all styles configured.
func NewTheme() *Theme {
	colorProfile := termenv.ColorProfile()
	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}
	t.initStyles()
	return t
}

// NewThemeWith creates a theme for a fixed background, used when output is
// not a terminal.
func NewThemeWith(dark bool, profile termenv.Profile) *Theme {
	t := &Theme{
		IsDark:       dark,
		HasTrueColor: profile == termenv.TrueColor,
		ColorProfile: profile,
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Panel = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Overlay)

	t.ListeningBubble = lipgloss.NewStyle().
		Foreground(ListeningFg).
		Background(SurfaceDim).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ListeningBorder).
		Italic(true).
		Padding(0, 1)

	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		Background(UserBubbleBg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(UserBubbleBorder).
		Padding(0, 1)

	t.AssistantBubble = lipgloss.NewStyle().
		Foreground(AssistantBubbleFg).
		Background(AssistantBubbleBg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(AssistantBubbleBorder).
		Padding(0, 1)

	t.StreamCursor = lipgloss.NewStyle().
		Foreground(Purple).
		Blink(true)

	t.Control = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.ControlClose = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	t.Grip = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.Spinner = lipgloss.NewStyle().
		Foreground(Purple)
}

// SetSize updates the theme dimensions.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}
