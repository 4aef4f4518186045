// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package toast provides the short-lived notices shown in the overlay's
// footer, such as a failed host call or a config reload.
//
// Toasts are owned by the tea.Model and touched only from Update, so the
// manager has no lock. Expiry is driven by the ExpireMsg returned from Add.
package toast

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/retort/internal/ui/styles"
	"github.com/jeranaias/retort/internal/util"
)

// =============================================================================
// TOAST TYPES
// =============================================================================

// Kind selects a toast's colour and icon.
type Kind int

const (
	KindStatus Kind = iota
	KindWarning
	KindError
)

const (
	// StatusDuration is how long status and warning toasts stay visible.
	StatusDuration = 3 * time.Second

	// ErrorDuration is longer so the message can be read.
	ErrorDuration = 6 * time.Second

	// maxToasts bounds the queue; only the newest is drawn.
	maxToasts = 4
)

// Toast is one notice.
type Toast struct {
	ID       int
	Message  string
	Kind     Kind
	Duration time.Duration
}

// ExpireMsg removes the toast with ID once its duration has passed.
type ExpireMsg struct {
	ID int
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager holds the visible toasts, newest first.
type Manager struct {
	toasts []Toast
	nextID int
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{nextID: 1}
}

// Add queues a toast and returns the command that expires it.
func (m *Manager) Add(kind Kind, message string) tea.Cmd {
	d := StatusDuration
	if kind == KindError {
		d = ErrorDuration
	}
	t := Toast{ID: m.nextID, Message: message, Kind: kind, Duration: d}
	m.nextID++

	m.toasts = append([]Toast{t}, m.toasts...)
	if len(m.toasts) > maxToasts {
		m.toasts = m.toasts[:maxToasts]
	}

	id := t.ID
	return tea.Tick(d, func(time.Time) tea.Msg {
		return ExpireMsg{ID: id}
	})
}

// Remove drops a toast by ID. Unknown IDs are ignored.
func (m *Manager) Remove(id int) {
	for i, t := range m.toasts {
		if t.ID == id {
			m.toasts = append(m.toasts[:i], m.toasts[i+1:]...)
			return
		}
	}
}

// Latest returns the newest toast.
func (m *Manager) Latest() (Toast, bool) {
	if len(m.toasts) == 0 {
		return Toast{}, false
	}
	return m.toasts[0], true
}

// Len returns the number of queued toasts.
func (m *Manager) Len() int { return len(m.toasts) }

// =============================================================================
// RENDERING
// =============================================================================

var (
	statusStyle  = lipgloss.NewStyle().Foreground(styles.Cyan)
	warningStyle = lipgloss.NewStyle().Foreground(styles.Amber)
	errorStyle   = lipgloss.NewStyle().Foreground(styles.Rose).Bold(true)
)

// Render draws the newest toast on one line no wider than width. It returns
// "" when there is nothing to show or no room.
func (m *Manager) Render(width int) string {
	t, ok := m.Latest()
	if !ok || width < 4 {
		return ""
	}
	style, icon := statusStyle, "•"
	switch t.Kind {
	case KindWarning:
		style, icon = warningStyle, "!"
	case KindError:
		style, icon = errorStyle, "✕"
	}
	return style.Render(util.TruncateWidth(icon+" "+t.Message, width))
}
