// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// CONVERSATION LOG
// =============================================================================

// ConversationLog is the chronological sequence of non-listening bubbles.
// Insertion order is display order. Bubbles that are animating out remain
// members until they are explicitly removed.
type ConversationLog struct {
	bubbles []*Bubble
}

// NewConversationLog creates an empty log.
func NewConversationLog() *ConversationLog {
	return &ConversationLog{
		bubbles: make([]*Bubble, 0, 8),
	}
}

// Append adds a bubble to the end of the log. Listening bubbles are rejected
// because the log never holds the indicator.
func (l *ConversationLog) Append(b *Bubble) bool {
	if b == nil || b.IsListening() {
		return false
	}
	l.bubbles = append(l.bubbles, b)
	return true
}

// Remove removes a bubble by ID. Returns true if it was present.
func (l *ConversationLog) Remove(id string) bool {
	for i, b := range l.bubbles {
		if b.ID == id {
			l.bubbles = append(l.bubbles[:i], l.bubbles[i+1:]...)
			return true
		}
	}
	return false
}

// Get returns the bubble with the given ID, or nil.
func (l *ConversationLog) Get(id string) *Bubble {
	for _, b := range l.bubbles {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// Len returns the number of members, including bubbles mid-exit.
func (l *ConversationLog) Len() int {
	return len(l.bubbles)
}

// RetainedLen returns the number of members not animating out.
func (l *ConversationLog) RetainedLen() int {
	n := 0
	for _, b := range l.bubbles {
		if !b.Animating {
			n++
		}
	}
	return n
}

// Overflow returns the oldest retained bubbles beyond limit, oldest first.
// Bubbles already animating are skipped since they are on their way out.
func (l *ConversationLog) Overflow(limit int) []*Bubble {
	if limit < 0 {
		limit = 0
	}
	excess := l.RetainedLen() - limit
	if excess <= 0 {
		return nil
	}
	out := make([]*Bubble, 0, excess)
	for _, b := range l.bubbles {
		if len(out) == excess {
			break
		}
		if !b.Animating {
			out = append(out, b)
		}
	}
	return out
}

// Snapshot copies every member into a fresh slice.
func (l *ConversationLog) Snapshot() []Bubble {
	out := make([]Bubble, len(l.bubbles))
	for i, b := range l.bubbles {
		out[i] = b.Clone()
	}
	return out
}

// IsEmpty returns true if the log has no members.
func (l *ConversationLog) IsEmpty() bool {
	return len(l.bubbles) == 0
}
