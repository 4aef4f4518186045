// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package overlay

import (
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// Cancel stops a scheduled callback. It reports whether the call prevented
// the callback from running.
type Cancel func() bool

// Stop calls c if it is non-nil.
func (c Cancel) Stop() bool {
	if c == nil {
		return false
	}
	return c()
}

// Scheduler runs one-shot deferred callbacks. Callbacks must be delivered on
// the goroutine that owns the Presenter.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Cancel
}

// Timer states.
const (
	timerPending int32 = iota
	timerRan
	timerCancelled
)

// ClockScheduler fires timers on a clockwork.Clock and hands the callback to
// post, which must run it on the UI goroutine.
type ClockScheduler struct {
	clock clockwork.Clock
	post  func(func())
}

// NewClockScheduler creates a scheduler. A nil clock uses the real clock and
// a nil post runs callbacks on the timer goroutine.
func NewClockScheduler(clock clockwork.Clock, post func(func())) *ClockScheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if post == nil {
		post = func(fn func()) { fn() }
	}
	return &ClockScheduler{clock: clock, post: post}
}

// AfterFunc schedules fn after d.
//
// The timer may fire and post fn before Cancel is called. The posted
// callback checks the shared state before running, so a cancel that races
// the post still wins.
func (s *ClockScheduler) AfterFunc(d time.Duration, fn func()) Cancel {
	var state atomic.Int32
	timer := s.clock.AfterFunc(d, func() {
		s.post(func() {
			if state.CompareAndSwap(timerPending, timerRan) {
				fn()
			}
		})
	})
	return func() bool {
		timer.Stop()
		return state.CompareAndSwap(timerPending, timerCancelled)
	}
}

// Clock returns the underlying clock.
func (s *ClockScheduler) Clock() clockwork.Clock {
	return s.clock
}
