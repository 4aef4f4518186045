// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/retort/internal/overlay"
)

// ErrClosed is returned once the program has exited.
var ErrClosed = errors.New("overlay closed")

// =============================================================================
// SENDER
// =============================================================================

// Sender delivers messages into the running program. It exists before the
// program does so the presenter's scheduler can be built first.
type Sender struct {
	mu   sync.RWMutex
	send func(tea.Msg)
	done chan struct{}
	once sync.Once
}

// NewSender creates a sender with no program attached.
func NewSender() *Sender {
	return &Sender{done: make(chan struct{})}
}

// NewSenderFunc creates a sender that hands messages to fn.
func NewSenderFunc(fn func(tea.Msg)) *Sender {
	s := NewSender()
	s.send = fn
	return s
}

// Attach binds the sender to p.
func (s *Sender) Attach(p *tea.Program) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.send = p.Send
}

// Send delivers msg. It reports false once the sender is closed or before a
// program is attached.
func (s *Sender) Send(msg tea.Msg) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	s.mu.RLock()
	send := s.send
	s.mu.RUnlock()
	if send == nil {
		return false
	}
	send(msg)
	return true
}

// Post runs fn on the program goroutine.
func (s *Sender) Post(fn func()) {
	s.Send(postMsg{fn: fn})
}

// Close marks the program as exited and releases waiting executors.
func (s *Sender) Close() {
	s.once.Do(func() { close(s.done) })
}

// Done is closed by Close.
func (s *Sender) Done() <-chan struct{} {
	return s.done
}

// =============================================================================
// EXECUTOR
// =============================================================================

// Executor runs overlay operations on the program goroutine.
type Executor struct {
	sender *Sender
}

var _ overlay.Executor = (*Executor)(nil)

// NewExecutor creates an executor that talks through sender.
func NewExecutor(sender *Sender) *Executor {
	return &Executor{sender: sender}
}

// Execute applies op and waits for its result.
func (e *Executor) Execute(ctx context.Context, op overlay.Op) (overlay.Result, error) {
	reply := make(chan overlay.Result, 1)
	if err := e.deliver(ctx, opMsg{op: op, reply: reply}); err != nil {
		return overlay.Result{}, err
	}
	select {
	case res := <-reply:
		if inner := res.Cancel; inner != nil {
			res.Cancel = e.remoteCancel(inner)
		}
		return res, nil
	case <-ctx.Done():
		return overlay.Result{}, ctx.Err()
	case <-e.sender.Done():
		return overlay.Result{}, ErrClosed
	}
}

// Snapshot returns the presenter state.
func (e *Executor) Snapshot(ctx context.Context) (overlay.Snapshot, error) {
	reply := make(chan overlay.Snapshot, 1)
	if err := e.deliver(ctx, snapshotMsg{reply: reply}); err != nil {
		return overlay.Snapshot{}, err
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-ctx.Done():
		return overlay.Snapshot{}, ctx.Err()
	case <-e.sender.Done():
		return overlay.Snapshot{}, ErrClosed
	}
}

func (e *Executor) deliver(ctx context.Context, msg tea.Msg) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !e.sender.Send(msg) {
		return ErrClosed
	}
	return nil
}

// remoteCancel makes a UI-goroutine Cancel callable from anywhere.
func (e *Executor) remoteCancel(inner overlay.Cancel) overlay.Cancel {
	return func() bool {
		reply := make(chan bool, 1)
		if !e.sender.Send(cancelMsg{cancel: inner, reply: reply}) {
			return false
		}
		select {
		case ok := <-reply:
			return ok
		case <-e.sender.Done():
			return false
		}
	}
}
