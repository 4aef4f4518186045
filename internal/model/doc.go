// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shown by the overlay.
//
// # Key Types
//
//   - Bubble: one rendered unit (listening indicator, user utterance, assistant reply)
//   - Role: bubble role enumeration (listening, user, assistant)
//   - ConversationLog: ordered, bounded sequence of non-listening bubbles
//
// # Usage
//
//	log := model.NewConversationLog()
//	b := model.NewBubble(model.RoleUser, "hi")
//	log.Append(b)
//	for _, old := range log.Overflow(6) {
//	    old.Animating = true
//	}
//
// The types are not safe for concurrent use. The overlay presenter owns them
// and touches them only from the UI goroutine.
package model
