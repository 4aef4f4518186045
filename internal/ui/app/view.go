// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/retort/internal/ui/styles"
)

// View renders the panel above the control footer.
func (m *Model) View() string {
	if m.closing {
		return ""
	}
	view := lipgloss.JoinVertical(lipgloss.Left, m.panel.View(), m.renderFooter())
	if m.zones != nil {
		return m.zones.Scan(view)
	}
	return view
}

// renderFooter draws "A- 14 A+  //" flush right, the grip in the corner.
// The newest toast, if any, takes the space on the left.
func (m *Model) renderFooter() string {
	down := m.theme.Control.Render(styles.Glyphs.FontDown)
	up := m.theme.Control.Render(styles.Glyphs.FontUp)
	grip := m.theme.Grip.Render(styles.Glyphs.Grip)
	if m.zones != nil {
		down = m.zones.Mark(ZoneFontDown, down)
		up = m.zones.Mark(ZoneFontUp, up)
		grip = m.zones.Mark(ZoneGrip, grip)
	}
	size := m.theme.Grip.Render(strconv.Itoa(m.font.Value()))
	controls := down + " " + size + " " + up + "  " + grip

	notice := m.toasts.Render(m.width - lipgloss.Width(controls) - 1)
	if notice == "" {
		return lipgloss.PlaceHorizontal(m.width, lipgloss.Right, controls)
	}
	gap := max(m.width-lipgloss.Width(notice)-lipgloss.Width(controls), 1)
	return notice + strings.Repeat(" ", gap) + controls
}
