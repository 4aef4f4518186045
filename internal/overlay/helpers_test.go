// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package overlay

import (
	"sort"
	"time"

	"github.com/jeranaias/retort/internal/model"
)

// =============================================================================
// MANUAL SCHEDULER
// =============================================================================

type manualTimer struct {
	at        time.Duration
	seq       int
	fn        func()
	fired     bool
	cancelled bool
}

// manualScheduler runs callbacks synchronously when time is advanced.
type manualScheduler struct {
	now    time.Duration
	seq    int
	timers []*manualTimer
}

func (s *manualScheduler) AfterFunc(d time.Duration, fn func()) Cancel {
	s.seq++
	t := &manualTimer{at: s.now + d, seq: s.seq, fn: fn}
	s.timers = append(s.timers, t)
	return func() bool {
		if t.fired || t.cancelled {
			return false
		}
		t.cancelled = true
		return true
	}
}

func (s *manualScheduler) Advance(d time.Duration) {
	target := s.now + d
	for {
		var due []*manualTimer
		for _, t := range s.timers {
			if !t.fired && !t.cancelled && t.at <= target {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			break
		}
		sort.Slice(due, func(i, j int) bool {
			if due[i].at != due[j].at {
				return due[i].at < due[j].at
			}
			return due[i].seq < due[j].seq
		})
		t := due[0]
		s.now = t.at
		t.fired = true
		t.fn()
	}
	s.now = target
}

func (s *manualScheduler) Pending() int {
	n := 0
	for _, t := range s.timers {
		if !t.fired && !t.cancelled {
			n++
		}
	}
	return n
}

// =============================================================================
// RECORDING RENDERER
// =============================================================================

type recordingRenderer struct {
	order   []string
	mounted map[string]model.Bubble
	exiting map[string]time.Duration
	scrolls int
	calls   []string
}

func newRecordingRenderer() *recordingRenderer {
	return &recordingRenderer{
		mounted: make(map[string]model.Bubble),
		exiting: make(map[string]time.Duration),
	}
}

func (r *recordingRenderer) Mount(b model.Bubble) error {
	r.calls = append(r.calls, "mount:"+string(b.Role))
	r.order = append(r.order, b.ID)
	r.mounted[b.ID] = b
	return nil
}

func (r *recordingRenderer) Refresh(b model.Bubble) error {
	r.calls = append(r.calls, "refresh")
	r.mounted[b.ID] = b
	return nil
}

func (r *recordingRenderer) BeginExit(b model.Bubble, d time.Duration) error {
	r.calls = append(r.calls, "exit")
	r.exiting[b.ID] = d
	return nil
}

func (r *recordingRenderer) Unmount(b model.Bubble) error {
	r.calls = append(r.calls, "unmount:"+string(b.Role))
	delete(r.mounted, b.ID)
	delete(r.exiting, b.ID)
	for i, id := range r.order {
		if id == b.ID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *recordingRenderer) ScrollToBottom() error {
	r.scrolls++
	return nil
}

// visible returns mounted bubbles in display order.
func (r *recordingRenderer) visible() []model.Bubble {
	out := make([]model.Bubble, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.mounted[id])
	}
	return out
}

func (r *recordingRenderer) listeningCount() int {
	n := 0
	for _, b := range r.mounted {
		if b.Role == model.RoleListening {
			n++
		}
	}
	return n
}

func (r *recordingRenderer) texts() []string {
	var out []string
	for _, b := range r.visible() {
		if b.Role != model.RoleListening {
			out = append(out, b.Text)
		}
	}
	return out
}

// faultyRenderer fails or panics on every call.
type faultyRenderer struct {
	panics bool
}

func (f faultyRenderer) fail() error {
	if f.panics {
		panic("boom")
	}
	return errRender
}

func (f faultyRenderer) Mount(model.Bubble) error                    { return f.fail() }
func (f faultyRenderer) Refresh(model.Bubble) error                  { return f.fail() }
func (f faultyRenderer) BeginExit(model.Bubble, time.Duration) error { return f.fail() }
func (f faultyRenderer) Unmount(model.Bubble) error                  { return f.fail() }
func (f faultyRenderer) ScrollToBottom() error                       { return f.fail() }
