// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package host is the overlay's bridge to the window it runs in.
//
// The overlay calls Destroy when the user dismisses it and Resize for every
// motion of a drag-resize gesture. The terminal implementation drives the
// terminal emulator with xterm window-manipulation sequences.
package host

import (
	"errors"
	"sync"
)

// ErrClosed is returned by bridges after Destroy.
var ErrClosed = errors.New("host: window closed")

// Bridge is the host-shell API.
type Bridge interface {
	// Destroy closes the overlay window.
	Destroy() error

	// Resize grows or shrinks the window by (dx, dy) cells.
	Resize(dx, dy int) error
}

// PointerShape names a mouse pointer shape.
type PointerShape string

const (
	PointerDefault PointerShape = "default"
	PointerResize  PointerShape = "nwse-resize"
)

// Pointer is implemented by bridges that can change the mouse pointer.
type Pointer interface {
	SetPointer(shape PointerShape) error
}

// =============================================================================
// RECORDER
// =============================================================================

// Recorder is a Bridge that records calls. It is used by tests and by the
// headless mode.
type Recorder struct {
	mu        sync.Mutex
	Destroyed int
	Resizes   [][2]int
	Pointers  []PointerShape

	// Err is returned from every call when set.
	Err error
}

// Destroy records a destroy call.
func (r *Recorder) Destroy() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Destroyed++
	return r.Err
}

// Resize records a resize delta.
func (r *Recorder) Resize(dx, dy int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Resizes = append(r.Resizes, [2]int{dx, dy})
	return r.Err
}

// SetPointer records a pointer change.
func (r *Recorder) SetPointer(shape PointerShape) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Pointers = append(r.Pointers, shape)
	return r.Err
}
