// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package overlay

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jeranaias/retort/internal/model"
)

var errRender = errors.New("render failed")

func newTestPresenter(opts ...Option) (*Presenter, *recordingRenderer, *manualScheduler) {
	r := newRecordingRenderer()
	s := &manualScheduler{}
	p := New(r, s, opts...)
	p.ShowListening()
	return p, r, s
}

// =============================================================================
// LISTENING INDICATOR
// =============================================================================

func TestPresenter_InitialState(t *testing.T) {
	p := New(nil, &manualScheduler{})
	assert.Equal(t, StateIdleListening, p.State())
	assert.False(t, p.Snapshot().Listening)
}

func TestPresenter_ShowListeningCollapses(t *testing.T) {
	p, r, _ := newTestPresenter()
	for i := 0; i < 5; i++ {
		res := p.ShowListening()
		require.True(t, res.Applied)
		assert.Equal(t, 1, r.listeningCount())
	}
	assert.Equal(t, StateIdleListening, p.State())
	assert.True(t, p.Snapshot().Listening)
}

// =============================================================================
// RETENTION
// =============================================================================

func TestPresenter_SevenSubmitsLeaveSix(t *testing.T) {
	p, r, s := newTestPresenter()

	for i := 1; i <= 7; i++ {
		p.SubmitUserMessage(fmt.Sprintf("msg%d", i))
	}

	want := []string{"msg2", "msg3", "msg4", "msg5", "msg6", "msg7"}
	snap := p.Snapshot()
	assert.Equal(t, want, snap.Texts())

	// The evicted bubble is still a member while it animates.
	require.Len(t, snap.Bubbles, 7)
	assert.True(t, snap.Bubbles[0].Animating)
	assert.Equal(t, "msg1", snap.Bubbles[0].Text)
	assert.Len(t, r.exiting, 1)

	s.Advance(ExitAnimation - time.Millisecond)
	assert.Contains(t, r.texts(), "msg1")

	s.Advance(time.Millisecond)
	assert.Equal(t, want, r.texts())
	assert.Len(t, p.Snapshot().Bubbles, 6)
	assert.Zero(t, p.PendingExits())
}

func TestPresenter_ExitUsesConfiguredDuration(t *testing.T) {
	p, r, _ := newTestPresenter(WithRetentionLimit(1), WithExitAnimation(50*time.Millisecond))
	p.SubmitUserMessage("a")
	p.SubmitUserMessage("b")

	snap := p.Snapshot()
	require.Len(t, snap.Bubbles, 2)
	assert.Equal(t, 50*time.Millisecond, r.exiting[snap.Bubbles[0].ID])
}

func TestPresenter_RetentionIsFIFOUnderRandomTraffic(t *testing.T) {
	p, _, s := newTestPresenter()
	rng := rand.New(rand.NewSource(42))

	var created []string
	n := 0
	for step := 0; step < 400; step++ {
		switch rng.Intn(6) {
		case 0, 1:
			n++
			text := fmt.Sprintf("u%d", n)
			created = append(created, text)
			p.SubmitUserMessage(text)
		case 2:
			if _, err := p.BeginAssistantStream(); err == nil {
				n++
				created = append(created, "")
				p.AppendStreamChunk(fmt.Sprintf("a%d", n))
				created[len(created)-1] = fmt.Sprintf("a%d", n)
			}
		case 3:
			p.EndAssistantStream()
		case 4:
			s.Advance(time.Duration(rng.Intn(1500)) * time.Millisecond)
		case 5:
			p.ShowListening()
		}

		retained := p.Snapshot().Texts()
		require.LessOrEqual(t, len(retained), RetentionLimit, "step %d", step)
		if len(retained) > 0 {
			suffix := created[len(created)-len(retained):]
			require.Equal(t, suffix, retained, "step %d: retained bubbles must be the newest", step)
		}
	}
}

func TestPresenter_EvictedStreamStillRelistens(t *testing.T) {
	p, r, s := newTestPresenter()

	_, err := p.BeginAssistantStream()
	require.NoError(t, err)
	p.AppendStreamChunk("partial")
	for i := 1; i <= RetentionLimit; i++ {
		p.SubmitUserMessage(fmt.Sprintf("msg%d", i))
	}
	require.False(t, p.StreamOpen())
	assert.False(t, p.AppendStreamChunk("late"), "chunks after eviction are dropped")

	cancel := p.EndAssistantStream()
	require.NotNil(t, cancel)
	assert.True(t, p.Snapshot().RelistenPending)

	s.Advance(5 * time.Second)
	assert.Equal(t, StateIdleListening, p.State())
	assert.Equal(t, 1, r.listeningCount())

	assert.Nil(t, p.EndAssistantStream(), "a second end has nothing to close")
}

func TestPresenter_NewStreamClearsEvictedEnd(t *testing.T) {
	p, r, s := newTestPresenter(WithRetentionLimit(1))

	_, err := p.BeginAssistantStream()
	require.NoError(t, err)
	p.SubmitUserMessage("evicts the stream")
	require.False(t, p.StreamOpen())

	_, err = p.BeginAssistantStream()
	require.NoError(t, err)
	p.AppendStreamChunk("live")
	require.NotNil(t, p.EndAssistantStream())
	s.Advance(RelistenDelay)
	assert.Equal(t, 1, r.listeningCount())

	p.SubmitUserMessage("next")
	assert.Nil(t, p.EndAssistantStream(), "the evicted stream's end was consumed by the new stream")
	assert.False(t, p.Snapshot().RelistenPending)
}

// =============================================================================
// STREAMING
// =============================================================================

func TestPresenter_HelloScenario(t *testing.T) {
	p, r, s := newTestPresenter()

	p.SubmitUserMessage("hi")
	assert.Equal(t, StateUserShown, p.State())

	h, err := p.BeginAssistantStream()
	require.NoError(t, err)
	assert.True(t, h.Valid())
	assert.Equal(t, StateAIStreaming, p.State())

	assert.True(t, p.AppendStreamChunk("Hel"))
	assert.True(t, p.AppendStreamChunk("lo"))
	cancel := p.EndAssistantStream()
	require.NotNil(t, cancel)

	snap := p.Snapshot()
	require.Len(t, snap.Bubbles, 2)
	assert.Equal(t, model.RoleUser, snap.Bubbles[0].Role)
	assert.Equal(t, "hi", snap.Bubbles[0].Text)
	assert.Equal(t, model.RoleAssistant, snap.Bubbles[1].Role)
	assert.Equal(t, "Hello", snap.Bubbles[1].Text)
	assert.False(t, snap.Bubbles[1].Streaming)
	assert.Zero(t, r.listeningCount())
	assert.True(t, snap.RelistenPending)

	s.Advance(RelistenDelay - time.Millisecond)
	assert.Zero(t, r.listeningCount())

	s.Advance(time.Millisecond)
	assert.Equal(t, 1, r.listeningCount())
	assert.Equal(t, StateIdleListening, p.State())
	assert.Equal(t, []string{"hi", "Hello"}, r.texts())
	assert.False(t, cancel(), "cancel after firing must report false")
}

func TestPresenter_ChunksConcatenateInOrder(t *testing.T) {
	p, r, _ := newTestPresenter()
	_, err := p.BeginAssistantStream()
	require.NoError(t, err)

	chunks := []string{"The ", "quick", "", " 狐狸", " jumps", "\n", "over"}
	want := ""
	for _, c := range chunks {
		require.True(t, p.AppendStreamChunk(c))
		want += c
	}
	assert.Equal(t, []string{want}, r.texts())
}

func TestPresenter_ChunkWithoutStreamIsIgnored(t *testing.T) {
	p, r, _ := newTestPresenter()
	p.SubmitUserMessage("hi")
	calls := len(r.calls)

	assert.False(t, p.AppendStreamChunk("late"))
	assert.Nil(t, p.EndAssistantStream())
	assert.Equal(t, calls, len(r.calls))
	assert.Equal(t, StateUserShown, p.State())
}

func TestPresenter_ChunkAfterEndIsIgnored(t *testing.T) {
	p, _, _ := newTestPresenter()
	_, err := p.BeginAssistantStream()
	require.NoError(t, err)
	p.AppendStreamChunk("done")
	p.EndAssistantStream()

	assert.False(t, p.AppendStreamChunk(" extra"))
	assert.Equal(t, []string{"done"}, p.Snapshot().Texts())
}

func TestPresenter_BeginTwiceRejected(t *testing.T) {
	p, _, _ := newTestPresenter()
	first, err := p.BeginAssistantStream()
	require.NoError(t, err)
	p.AppendStreamChunk("one")

	second, err := p.BeginAssistantStream()
	require.ErrorIs(t, err, ErrStreamAlreadyOpen)
	assert.Equal(t, first, second, "rejection reports the open handle")

	p.AppendStreamChunk(" two")
	assert.Equal(t, []string{"one two"}, p.Snapshot().Texts())
	assert.Equal(t, StateAIStreaming, p.State())
}

func TestPresenter_BeginAfterEndAllowed(t *testing.T) {
	p, _, _ := newTestPresenter()
	_, err := p.BeginAssistantStream()
	require.NoError(t, err)
	p.EndAssistantStream()

	_, err = p.BeginAssistantStream()
	require.NoError(t, err)
	assert.False(t, p.Snapshot().RelistenPending, "begin cancels the pending re-listen")
}

// =============================================================================
// RE-LISTEN CANCELLATION
// =============================================================================

func TestPresenter_SubmitCancelsRelisten(t *testing.T) {
	p, r, s := newTestPresenter()
	_, err := p.BeginAssistantStream()
	require.NoError(t, err)
	p.EndAssistantStream()

	s.Advance(500 * time.Millisecond)
	p.SubmitUserMessage("next")
	s.Advance(2 * time.Second)

	assert.Zero(t, r.listeningCount())
	assert.Equal(t, StateUserShown, p.State())
	assert.Zero(t, s.Pending())
}

func TestPresenter_CancelToken(t *testing.T) {
	p, r, s := newTestPresenter()
	_, err := p.BeginAssistantStream()
	require.NoError(t, err)

	cancel := p.EndAssistantStream()
	assert.True(t, cancel())
	assert.False(t, cancel())
	assert.False(t, p.Snapshot().RelistenPending)

	s.Advance(5 * time.Second)
	assert.Zero(t, r.listeningCount())
	assert.Equal(t, StateAIStreaming, p.State())
}

func TestPresenter_StaleCancelKeepsNewerRelisten(t *testing.T) {
	p, r, s := newTestPresenter()
	_, _ = p.BeginAssistantStream()
	first := p.EndAssistantStream()
	_, _ = p.BeginAssistantStream()
	p.EndAssistantStream()

	assert.False(t, first(), "first re-listen was already superseded")
	assert.True(t, p.Snapshot().RelistenPending)

	s.Advance(RelistenDelay)
	assert.Equal(t, 1, r.listeningCount())
}

// =============================================================================
// RENDERING DISCIPLINE
// =============================================================================

func TestPresenter_EveryMutationScrolls(t *testing.T) {
	p, r, s := newTestPresenter()

	steps := []func(){
		func() { p.ShowListening() },
		func() { p.SubmitUserMessage("x") },
		func() { _, _ = p.BeginAssistantStream() },
		func() { p.AppendStreamChunk("y") },
		func() { p.EndAssistantStream() },
		func() { s.Advance(RelistenDelay) },
	}
	for i, step := range steps {
		before := r.scrolls
		step()
		assert.Greater(t, r.scrolls, before, "step %d did not scroll", i)
	}
}

func TestPresenter_RendererFaultsDoNotStopStateMachine(t *testing.T) {
	for _, panics := range []bool{false, true} {
		t.Run(fmt.Sprintf("panics=%v", panics), func(t *testing.T) {
			core, logs := observer.New(zapcore.ErrorLevel)
			s := &manualScheduler{}
			p := New(faultyRenderer{panics: panics}, s, WithLogger(zap.New(core)))

			p.ShowListening()
			p.SubmitUserMessage("hi")
			_, err := p.BeginAssistantStream()
			require.NoError(t, err)
			p.AppendStreamChunk("ok")
			p.EndAssistantStream()
			s.Advance(RelistenDelay)

			assert.Equal(t, StateIdleListening, p.State())
			assert.Equal(t, []string{"hi", "ok"}, p.Snapshot().Texts())
			assert.NotZero(t, logs.Len())
		})
	}
}

func TestPresenter_ChunksJoinRaw(t *testing.T) {
	tests := []struct {
		name    string
		chunks  []string
		want    string
		display string
	}{
		{"escape split across chunks", []string{"x\x1b[3", "1my"}, "x\x1b[31my", "xy"},
		{"osc title", []string{"\x1b]0;ti", "tle\x07plain"}, "\x1b]0;title\x07plain", "plain"},
		{"rune split across chunks", []string{"caf\xc3", "\xa9"}, "café", "café"},
		{"invalid bytes", []string{"\xff\xfe", "ok"}, "\xff\xfeok", "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, _ := newTestPresenter()
			_, err := p.BeginAssistantStream()
			require.NoError(t, err)
			for _, c := range tt.chunks {
				require.True(t, p.AppendStreamChunk(c))
			}
			p.EndAssistantStream()

			bubbles := p.Snapshot().Bubbles
			require.Len(t, bubbles, 1)
			assert.Equal(t, tt.want, bubbles[0].Text)
			assert.Equal(t, tt.display, bubbles[0].DisplayText())
		})
	}
}

func TestPresenter_UserTextKeptRaw(t *testing.T) {
	p, _, _ := newTestPresenter()
	p.SubmitUserMessage("\x1b[31mred\x1b[0m")
	b := p.Snapshot().Bubbles[0]
	assert.Equal(t, "\x1b[31mred\x1b[0m", b.Text)
	assert.Equal(t, "red", b.DisplayText())
}

// =============================================================================
// DISPATCH
// =============================================================================

func TestPresenter_Dispatch(t *testing.T) {
	t.Run("status with marker shows listening", func(t *testing.T) {
		p, r, _ := newTestPresenter()
		p.SubmitUserMessage("hi")
		require.NoError(t, p.Dispatch("status", "正在偷听..."))
		assert.Equal(t, 1, r.listeningCount())
		assert.Equal(t, StateIdleListening, p.State())
	})

	t.Run("status without marker ignored", func(t *testing.T) {
		p, r, _ := newTestPresenter()
		p.SubmitUserMessage("hi")
		res := p.Apply(Op{Kind: OpDispatch, Role: "status", Text: "thinking"})
		require.NoError(t, res.Err)
		assert.False(t, res.Applied)
		assert.Zero(t, r.listeningCount())
	})

	t.Run("user submits", func(t *testing.T) {
		p, _, _ := newTestPresenter()
		require.NoError(t, p.Dispatch("user", "hello"))
		assert.Equal(t, StateUserShown, p.State())
		assert.Equal(t, []string{"hello"}, p.Snapshot().Texts())
	})

	t.Run("assistant collapses the stream", func(t *testing.T) {
		p, r, s := newTestPresenter()
		require.NoError(t, p.Dispatch("ai", "whole reply"))
		assert.False(t, p.StreamOpen())
		assert.Equal(t, []string{"whole reply"}, p.Snapshot().Texts())

		s.Advance(RelistenDelay)
		assert.Equal(t, 1, r.listeningCount())
	})

	t.Run("assistant rejected while streaming", func(t *testing.T) {
		p, _, _ := newTestPresenter()
		_, _ = p.BeginAssistantStream()
		err := p.Dispatch("assistant", "x")
		assert.ErrorIs(t, err, ErrStreamAlreadyOpen)
	})

	t.Run("unknown role", func(t *testing.T) {
		p, _, _ := newTestPresenter()
		err := p.Dispatch("system", "x")
		assert.ErrorIs(t, err, ErrUnknownRole)
	})
}

func TestPresenter_ApplyUnknownOp(t *testing.T) {
	p, _, _ := newTestPresenter()
	res := p.Apply(Op{Kind: OpKind(99)})
	assert.ErrorIs(t, res.Err, ErrUnknownOp)
}

func TestParseOpKind(t *testing.T) {
	k, ok := ParseOpKind("append_chunk")
	assert.True(t, ok)
	assert.Equal(t, OpAppendChunk, k)

	_, ok = ParseOpKind("relisten")
	assert.False(t, ok, "internal ops are not addressable")
}
