// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package overlay

import (
	"context"
	"sync"

	"github.com/jonboulle/clockwork"
)

// Executor runs operations against a presenter from any goroutine. The
// returned Result.Cancel is safe to call from any goroutine as well.
type Executor interface {
	Execute(ctx context.Context, op Op) (Result, error)
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Serial is an Executor that serializes every operation and timer callback
// behind one mutex. It backs headless mode and tests; the terminal UI uses
// its event loop instead.
type Serial struct {
	mu sync.Mutex
	p  *Presenter
}

// NewSerial creates a presenter whose timers run on clock (nil means the
// real clock) and post back through the executor's lock.
func NewSerial(r Renderer, clock clockwork.Clock, opts ...Option) *Serial {
	s := &Serial{}
	s.p = New(r, NewClockScheduler(clock, s.Post), opts...)
	return s
}

// Post runs fn while holding the executor lock.
func (s *Serial) Post(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// Execute applies op.
func (s *Serial) Execute(ctx context.Context, op Op) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	s.mu.Lock()
	res := s.p.Apply(op)
	s.mu.Unlock()

	if inner := res.Cancel; inner != nil {
		res.Cancel = func() bool {
			s.mu.Lock()
			defer s.mu.Unlock()
			return inner()
		}
	}
	return res, nil
}

// Snapshot returns the presenter state.
func (s *Serial) Snapshot(ctx context.Context) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.Snapshot(), nil
}
