// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role identifies what a bubble represents.
type Role string

const (
	RoleListening Role = "listening"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleListening:
		return "Listening"
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleListening, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// ParseRole maps a wire role name onto a Role. "ai" is accepted as an alias
// for assistant and "status" for listening.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "listening", "status":
		return RoleListening, true
	case "user":
		return RoleUser, true
	case "assistant", "ai":
		return RoleAssistant, true
	}
	return "", false
}

// =============================================================================
// BUBBLE TYPE
// =============================================================================

// Bubble is a single visual unit in the overlay.
type Bubble struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`

	// Animating is set once the bubble has begun its exit animation.
	// An animating bubble is still a member of the log until it is removed.
	Animating bool `json:"animating"`

	// Streaming is true while an assistant stream is appending to this bubble.
	Streaming bool `json:"streaming,omitempty"`
}

// NewBubble creates a bubble with a fresh ID.
// Listening bubbles never carry text; any text passed for them is dropped.
func NewBubble(role Role, text string) *Bubble {
	if role == RoleListening {
		text = ""
	}
	return &Bubble{
		ID:        generateID(),
		Role:      role,
		Text:      text,
		CreatedAt: time.Now(),
	}
}

// NewListeningBubble creates the idle-state indicator bubble.
func NewListeningBubble() *Bubble {
	return NewBubble(RoleListening, "")
}

// NewStreamingBubble creates an empty assistant bubble ready for chunks.
func NewStreamingBubble() *Bubble {
	b := NewBubble(RoleAssistant, "")
	b.Streaming = true
	return b
}

// Append concatenates chunk onto the bubble text.
func (b *Bubble) Append(chunk string) {
	b.Text += chunk
}

// DisplayText returns the text with terminal escape sequences and invalid
// bytes removed. Text keeps the raw concatenation of every chunk so that a
// sequence split across chunks is stripped whole.
func (b *Bubble) DisplayText() string {
	return ansi.Strip(b.Text)
}

// FinalizeStream marks the stream as complete.
func (b *Bubble) FinalizeStream() {
	b.Streaming = false
}

// IsListening reports whether the bubble is the listening indicator.
func (b *Bubble) IsListening() bool {
	return b.Role == RoleListening
}

// Clone returns a copy that shares no memory with b.
func (b *Bubble) Clone() Bubble {
	return *b
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// generateID creates a unique bubble ID.
func generateID() string {
	return "bub_" + uuid.NewString()
}
