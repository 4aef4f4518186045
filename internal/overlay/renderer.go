// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package overlay

import (
	"time"

	"github.com/jeranaias/retort/internal/model"
)

// Renderer applies bubble changes to the visual tree.
// Every method receives a copy of the bubble; implementations must key on
// Bubble.ID and must not keep references into presenter state.
type Renderer interface {
	// Mount adds a bubble at the bottom of the panel.
	Mount(b model.Bubble) error

	// Refresh redraws a mounted bubble after its text changed.
	Refresh(b model.Bubble) error

	// BeginExit starts the exit animation. The bubble stays visible until
	// Unmount is called.
	BeginExit(b model.Bubble, d time.Duration) error

	// Unmount removes a bubble. Unmounting an unknown bubble is a no-op.
	Unmount(b model.Bubble) error

	// ScrollToBottom keeps the newest content visible.
	ScrollToBottom() error
}

// NopRenderer discards all rendering calls.
type NopRenderer struct{}

func (NopRenderer) Mount(model.Bubble) error                    { return nil }
func (NopRenderer) Refresh(model.Bubble) error                  { return nil }
func (NopRenderer) BeginExit(model.Bubble, time.Duration) error { return nil }
func (NopRenderer) Unmount(model.Bubble) error                  { return nil }
func (NopRenderer) ScrollToBottom() error                       { return nil }
