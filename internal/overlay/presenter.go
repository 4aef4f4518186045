// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package overlay

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/retort/internal/model"
)

// Presenter owns the overlay's bubbles and runs its state machine.
type Presenter struct {
	renderer Renderer
	sched    Scheduler
	logger   *zap.Logger

	retention int
	exitAnim  time.Duration
	relisten  time.Duration
	markers   []string

	state     State
	log       *model.ConversationLog
	listening *model.Bubble
	stream    *model.Bubble

	// orphaned is set when retention evicted the open stream. The next
	// end still schedules the re-listen.
	orphaned bool

	pendingRelisten Cancel
	relistenGen     int
	exits           map[string]Cancel
}

// New creates a presenter in IDLE_LISTENING with nothing rendered.
// Call ShowListening to draw the initial indicator.
func New(r Renderer, s Scheduler, opts ...Option) *Presenter {
	if r == nil {
		r = NopRenderer{}
	}
	if s == nil {
		s = NewClockScheduler(nil, nil)
	}
	p := &Presenter{
		renderer:  r,
		sched:     s,
		logger:    zap.NewNop(),
		retention: RetentionLimit,
		exitAnim:  ExitAnimation,
		relisten:  RelistenDelay,
		markers:   DefaultListeningMarkers,
		state:     StateIdleListening,
		log:       model.NewConversationLog(),
		exits:     make(map[string]Cancel),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// =============================================================================
// PUBLIC OPERATIONS
// =============================================================================

// ShowListening replaces any listening bubble with a fresh one.
func (p *Presenter) ShowListening() Result {
	return p.Apply(Op{Kind: OpShowListening})
}

// SubmitUserMessage shows a user bubble and cancels a pending re-listen.
func (p *Presenter) SubmitUserMessage(text string) Result {
	return p.Apply(Op{Kind: OpSubmitUser, Text: text})
}

// BeginAssistantStream opens the assistant stream. It fails with
// ErrStreamAlreadyOpen if a stream is open.
func (p *Presenter) BeginAssistantStream() (StreamHandle, error) {
	res := p.Apply(Op{Kind: OpBeginStream})
	return res.Stream, res.Err
}

// AppendStreamChunk appends text to the open stream. It returns false, and
// changes nothing, when no stream is open.
func (p *Presenter) AppendStreamChunk(text string) bool {
	return p.Apply(Op{Kind: OpAppendChunk, Text: text}).Applied
}

// EndAssistantStream closes the stream and schedules the listening
// indicator. The returned Cancel aborts that re-listen; it is nil when no
// stream was open. Like every other method, Cancel must be called on the
// presenter's goroutine.
func (p *Presenter) EndAssistantStream() Cancel {
	return p.Apply(Op{Kind: OpEndStream}).Cancel
}

// Dispatch routes a (role, text) pair onto the operations above.
func (p *Presenter) Dispatch(role, text string) error {
	return p.Apply(Op{Kind: OpDispatch, Role: role, Text: text}).Err
}

// State returns the current state.
func (p *Presenter) State() State {
	return p.state
}

// StreamOpen reports whether an assistant stream is open.
func (p *Presenter) StreamOpen() bool {
	return p.stream != nil
}

// Snapshot copies the current state.
func (p *Presenter) Snapshot() Snapshot {
	return Snapshot{
		State:           p.state,
		Listening:       p.listening != nil,
		Streaming:       p.stream != nil,
		RelistenPending: p.pendingRelisten != nil,
		Bubbles:         p.log.Snapshot(),
	}
}

// =============================================================================
// TRANSITION TABLE
// =============================================================================

// Apply runs one operation. It is the only entry point that mutates state.
func (p *Presenter) Apply(op Op) Result {
	var res Result
	switch op.Kind {
	case OpShowListening:
		res = p.showListening()
	case OpSubmitUser:
		res = p.submitUser(op.Text)
	case OpBeginStream:
		res = p.beginStream()
	case OpAppendChunk:
		res = p.appendChunk(op.Text)
	case OpEndStream:
		res = p.endStream()
	case OpDispatch:
		res = p.dispatch(op.Role, op.Text)
	case opRelisten:
		res = p.fireRelisten()
	case opFinishExit:
		res = p.finishExit(op.bubbleID)
	default:
		res = Result{Err: fmt.Errorf("%w: %d", ErrUnknownOp, int(op.Kind))}
	}
	res.State = p.state

	if res.Err != nil {
		p.logger.Warn("operation rejected",
			zap.Stringer("op", op.Kind),
			zap.Stringer("state", p.state),
			zap.Error(res.Err))
	} else {
		p.logger.Debug("operation",
			zap.Stringer("op", op.Kind),
			zap.Bool("applied", res.Applied),
			zap.Stringer("state", p.state),
			zap.Int("bubbles", p.log.Len()))
	}
	return res
}

func (p *Presenter) showListening() Result {
	p.clearListening()
	p.listening = model.NewListeningBubble()
	p.render("mount", func() error { return p.renderer.Mount(p.listening.Clone()) })
	p.state = StateIdleListening
	p.scroll()
	return Result{Applied: true}
}

func (p *Presenter) submitUser(text string) Result {
	p.cancelRelisten()
	p.clearListening()

	b := model.NewBubble(model.RoleUser, text)
	p.log.Append(b)
	p.render("mount", func() error { return p.renderer.Mount(b.Clone()) })
	p.state = StateUserShown

	p.retain()
	p.scroll()
	return Result{Applied: true}
}

func (p *Presenter) beginStream() Result {
	if p.stream != nil {
		return Result{Err: ErrStreamAlreadyOpen, Stream: StreamHandle{BubbleID: p.stream.ID}}
	}
	p.cancelRelisten()
	p.clearListening()
	p.orphaned = false

	b := model.NewStreamingBubble()
	p.log.Append(b)
	p.stream = b
	p.render("mount", func() error { return p.renderer.Mount(b.Clone()) })
	p.state = StateAIStreaming

	p.retain()
	p.scroll()
	return Result{Applied: true, Stream: StreamHandle{BubbleID: b.ID}}
}

func (p *Presenter) appendChunk(text string) Result {
	if p.stream == nil {
		p.logger.Debug("chunk dropped, no open stream", zap.Int("len", len(text)))
		return Result{}
	}
	p.stream.Append(text)
	b := p.stream
	p.render("refresh", func() error { return p.renderer.Refresh(b.Clone()) })
	p.scroll()
	return Result{Applied: true, Stream: StreamHandle{BubbleID: b.ID}}
}

func (p *Presenter) endStream() Result {
	if p.stream == nil {
		if !p.orphaned {
			p.logger.Debug("end dropped, no open stream")
			return Result{}
		}
		// The stream's bubble was evicted before its end arrived.
		p.orphaned = false
		return p.scheduleRelisten()
	}
	b := p.stream
	b.FinalizeStream()
	p.stream = nil
	p.render("refresh", func() error { return p.renderer.Refresh(b.Clone()) })
	p.scroll()
	return p.scheduleRelisten()
}

func (p *Presenter) scheduleRelisten() Result {
	p.cancelRelisten()
	p.relistenGen++
	gen := p.relistenGen
	inner := p.sched.AfterFunc(p.relisten, func() {
		p.Apply(Op{Kind: opRelisten})
	})
	cancel := Cancel(func() bool {
		ok := inner.Stop()
		if ok && p.relistenGen == gen {
			p.pendingRelisten = nil
		}
		return ok
	})
	p.pendingRelisten = cancel
	return Result{Applied: true, Cancel: cancel}
}

func (p *Presenter) fireRelisten() Result {
	p.pendingRelisten = nil
	p.retain()
	return p.showListening()
}

func (p *Presenter) dispatch(role, text string) Result {
	r, ok := model.ParseRole(role)
	if !ok {
		return Result{Err: fmt.Errorf("%w: %q", ErrUnknownRole, role)}
	}
	switch r {
	case model.RoleListening:
		if strings.EqualFold(strings.TrimSpace(role), "status") && !p.isListeningMarker(text) {
			p.logger.Debug("status dispatch ignored", zap.String("text", text))
			return Result{}
		}
		return p.showListening()
	case model.RoleUser:
		return p.submitUser(text)
	default:
		res := p.beginStream()
		if res.Err != nil {
			return res
		}
		p.appendChunk(text)
		end := p.endStream()
		end.Stream = res.Stream
		return end
	}
}

// =============================================================================
// RETENTION
// =============================================================================

// retain starts the exit animation for bubbles beyond the retention limit.
func (p *Presenter) retain() {
	for _, b := range p.log.Overflow(p.retention) {
		b.Animating = true
		if b == p.stream {
			b.FinalizeStream()
			p.stream = nil
			p.orphaned = true
			p.logger.Warn("open stream evicted", zap.String("bubble", b.ID))
		}
		victim := b
		p.render("begin_exit", func() error { return p.renderer.BeginExit(victim.Clone(), p.exitAnim) })

		id := b.ID
		p.exits[id] = p.sched.AfterFunc(p.exitAnim, func() {
			p.Apply(Op{Kind: opFinishExit, bubbleID: id})
		})
	}
}

func (p *Presenter) finishExit(id string) Result {
	delete(p.exits, id)
	b := p.log.Get(id)
	if b == nil {
		return Result{}
	}
	p.log.Remove(id)
	p.render("unmount", func() error { return p.renderer.Unmount(b.Clone()) })
	p.scroll()
	return Result{Applied: true}
}

// PendingExits returns how many bubbles are mid-exit.
func (p *Presenter) PendingExits() int {
	return len(p.exits)
}

// =============================================================================
// HELPERS
// =============================================================================

func (p *Presenter) clearListening() {
	if p.listening == nil {
		return
	}
	b := p.listening
	p.listening = nil
	p.render("unmount", func() error { return p.renderer.Unmount(b.Clone()) })
}

func (p *Presenter) cancelRelisten() {
	if p.pendingRelisten == nil {
		return
	}
	pending := p.pendingRelisten
	p.pendingRelisten = nil
	if pending.Stop() {
		p.logger.Debug("pending re-listen cancelled")
	}
}

func (p *Presenter) isListeningMarker(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range p.markers {
		if m != "" && strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

func (p *Presenter) scroll() {
	p.render("scroll", p.renderer.ScrollToBottom)
}

// render runs one renderer call, logging failures instead of propagating.
func (p *Presenter) render(call string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("renderer panic", zap.String("call", call), zap.Any("panic", r))
		}
	}()
	if err := fn(); err != nil {
		p.logger.Error("renderer failed", zap.String("call", call), zap.Error(err))
	}
}
