// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package controls forwards overlay input gestures to the host.
//
// Neither control buffers or coalesces events: each click changes the font
// size by one step and each drag motion produces exactly one Resize call.
package controls

import (
	"github.com/jeranaias/retort/internal/host"
)

// =============================================================================
// FONT SIZE
// =============================================================================

const (
	FontMin     = 10
	FontMax     = 20
	FontDefault = 14
)

// FontSize is a font size clamped to [Min, Max].
type FontSize struct {
	value int
	min   int
	max   int
}

// NewFontSize creates a control with the given bounds and starting value.
// Invalid bounds fall back to FontMin and FontMax.
func NewFontSize(value, min, max int) *FontSize {
	if min <= 0 || max < min {
		min, max = FontMin, FontMax
	}
	f := &FontSize{min: min, max: max}
	f.Set(value)
	return f
}

// Value returns the current size.
func (f *FontSize) Value() int {
	return f.value
}

// Set clamps v into range and stores it. It reports whether the value changed.
func (f *FontSize) Set(v int) bool {
	if v < f.min {
		v = f.min
	}
	if v > f.max {
		v = f.max
	}
	changed := v != f.value
	f.value = v
	return changed
}

// Inc grows the font by one step.
func (f *FontSize) Inc() bool {
	return f.Set(f.value + 1)
}

// Dec shrinks the font by one step.
func (f *FontSize) Dec() bool {
	return f.Set(f.value - 1)
}

// Bounds returns the clamp range.
func (f *FontSize) Bounds() (min, max int) {
	return f.min, f.max
}

// =============================================================================
// RESIZE DRAG
// =============================================================================

// ResizeDrag turns press/motion/release events into host resize calls.
type ResizeDrag struct {
	bridge  host.Bridge
	active  bool
	lastX   int
	lastY   int
	onError func(error)
}

// NewResizeDrag creates a drag gesture bound to bridge. onError receives
// failures from the bridge and may be nil.
func NewResizeDrag(bridge host.Bridge, onError func(error)) *ResizeDrag {
	if onError == nil {
		onError = func(error) {}
	}
	return &ResizeDrag{bridge: bridge, onError: onError}
}

// Active reports whether a drag is in progress.
func (d *ResizeDrag) Active() bool {
	return d.active
}

// Press starts a drag at screen position (x, y).
func (d *ResizeDrag) Press(x, y int) {
	d.active = true
	d.lastX = x
	d.lastY = y
	if p, ok := d.bridge.(host.Pointer); ok {
		if err := p.SetPointer(host.PointerResize); err != nil {
			d.onError(err)
		}
	}
}

// Motion forwards the delta since the previous position. It returns false
// when no drag is active.
func (d *ResizeDrag) Motion(x, y int) bool {
	if !d.active {
		return false
	}
	dx := x - d.lastX
	dy := y - d.lastY
	d.lastX = x
	d.lastY = y
	if err := d.bridge.Resize(dx, dy); err != nil {
		d.onError(err)
	}
	return true
}

// Release ends the drag and restores the default pointer.
func (d *ResizeDrag) Release() {
	if !d.active {
		return
	}
	d.active = false
	if p, ok := d.bridge.(host.Pointer); ok {
		if err := p.SetPointer(host.PointerDefault); err != nil {
			d.onError(err)
		}
	}
}
