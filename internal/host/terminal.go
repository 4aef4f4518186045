// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package host

import (
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/term"
)

const (
	// DefaultMinCols and DefaultMinRows bound how small a drag can shrink
	// the window.
	DefaultMinCols = 28
	DefaultMinRows = 12
)

// SizeFunc reports the current window size in cells.
type SizeFunc func() (cols, rows int, err error)

// StdoutSize reads the size of the terminal attached to stdout.
func StdoutSize() (int, int, error) {
	return term.GetSize(int(os.Stdout.Fd()))
}

// Terminal is a Bridge for the terminal emulator hosting the overlay.
type Terminal struct {
	mu      sync.Mutex
	out     io.Writer
	size    SizeFunc
	quit    func()
	logger  *zap.Logger
	minCols int
	minRows int

	// Last size requested or observed. Terminals apply resizes
	// asynchronously, so GetSize can lag behind a fast drag.
	cols, rows int
	closed     bool
}

// TerminalOption configures a Terminal.
type TerminalOption func(*Terminal)

// WithMinSize sets the smallest size a resize may produce.
func WithMinSize(cols, rows int) TerminalOption {
	return func(t *Terminal) {
		if cols > 0 {
			t.minCols = cols
		}
		if rows > 0 {
			t.minRows = rows
		}
	}
}

// WithSizeFunc overrides how the current size is read.
func WithSizeFunc(fn SizeFunc) TerminalOption {
	return func(t *Terminal) {
		if fn != nil {
			t.size = fn
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) TerminalOption {
	return func(t *Terminal) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTerminal creates a bridge writing control sequences to out. quit is
// called once by Destroy.
func NewTerminal(out io.Writer, quit func(), opts ...TerminalOption) *Terminal {
	if out == nil {
		out = os.Stdout
	}
	if quit == nil {
		quit = func() {}
	}
	t := &Terminal{
		out:     out,
		size:    StdoutSize,
		quit:    quit,
		logger:  zap.NewNop(),
		minCols: DefaultMinCols,
		minRows: DefaultMinRows,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Destroy quits the overlay. Later calls return ErrClosed.
func (t *Terminal) Destroy() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.closed = true
	t.mu.Unlock()

	t.logger.Info("overlay destroyed by user")
	t.quit()
	return nil
}

// Resize sets the window to current size plus (dx, dy), clamped to the
// minimum size.
func (t *Terminal) Resize(dx, dy int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}

	if t.cols == 0 || t.rows == 0 {
		cols, rows, err := t.size()
		if err != nil {
			return fmt.Errorf("read terminal size: %w", err)
		}
		t.cols, t.rows = cols, rows
	}

	cols := max(t.cols+dx, t.minCols)
	rows := max(t.rows+dy, t.minRows)
	t.cols, t.rows = cols, rows

	// XTWINOPS 8: resize text area to rows x cols.
	if _, err := fmt.Fprintf(t.out, "\x1b[8;%d;%dt", rows, cols); err != nil {
		return fmt.Errorf("write resize: %w", err)
	}
	t.logger.Debug("resize", zap.Int("dx", dx), zap.Int("dy", dy),
		zap.Int("cols", cols), zap.Int("rows", rows))
	return nil
}

// Observe records the size the terminal reported, for example from a
// window-size event.
func (t *Terminal) Observe(cols, rows int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cols, t.rows = cols, rows
}

// Size returns the last known size.
func (t *Terminal) Size() (cols, rows int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cols, t.rows
}

// SetPointer changes the mouse pointer shape (OSC 22).
func (t *Terminal) SetPointer(shape PointerShape) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := fmt.Fprintf(t.out, "\x1b]22;%s\x1b\\", shape); err != nil {
		return fmt.Errorf("write pointer shape: %w", err)
	}
	return nil
}
