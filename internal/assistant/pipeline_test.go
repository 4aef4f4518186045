// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/retort/internal/model"
	"github.com/jeranaias/retort/internal/overlay"
)

type fakeStreamer struct {
	deltas []string
	err    error

	mu   sync.Mutex
	seen []string
	gate chan struct{}
}

func (f *fakeStreamer) Stream(ctx context.Context, text string, onDelta func(string)) error {
	f.mu.Lock()
	f.seen = append(f.seen, text)
	f.mu.Unlock()
	if f.gate != nil {
		<-f.gate
	}
	for _, d := range f.deltas {
		onDelta(d)
	}
	return f.err
}

func newExec() *overlay.Serial {
	return overlay.NewSerial(nil, clockwork.NewFakeClock())
}

func TestHandleUtterance_StreamsReply(t *testing.T) {
	ex := newExec()
	p := NewPipeline(ex, &fakeStreamer{deltas: []string{"Hel", "lo"}}, nil)

	require.NoError(t, p.HandleUtterance(context.Background(), "  hi there "))

	snap, err := ex.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Bubbles, 2)
	assert.Equal(t, model.RoleUser, snap.Bubbles[0].Role)
	assert.Equal(t, "hi there", snap.Bubbles[0].Text)
	assert.Equal(t, model.RoleAssistant, snap.Bubbles[1].Role)
	assert.Equal(t, "Hello", snap.Bubbles[1].Text)
	assert.False(t, snap.Streaming)
	assert.True(t, snap.RelistenPending)
}

func TestHandleUtterance_ErrorFinishesBubble(t *testing.T) {
	ex := newExec()
	boom := errors.New("network down")
	p := NewPipeline(ex, &fakeStreamer{deltas: []string{"Par"}, err: boom}, nil)

	err := p.HandleUtterance(context.Background(), "hi")
	assert.ErrorIs(t, err, boom)

	snap, _ := ex.Snapshot(context.Background())
	require.Len(t, snap.Bubbles, 2)
	text := snap.Bubbles[1].Text
	assert.True(t, strings.HasPrefix(text, "Par\n⚠ "), "got %q", text)
	assert.Contains(t, text, "network down")
	assert.False(t, snap.Streaming)
}

func TestHandleUtterance_Empty(t *testing.T) {
	p := NewPipeline(newExec(), &fakeStreamer{}, nil)
	assert.ErrorIs(t, p.HandleUtterance(context.Background(), "   "), ErrEmptyUtterance)
}

func TestHandleUtterance_ClosesForeignStream(t *testing.T) {
	ex := newExec()
	ctx := context.Background()
	_, err := ex.Execute(ctx, overlay.Op{Kind: overlay.OpBeginStream})
	require.NoError(t, err)
	_, err = ex.Execute(ctx, overlay.Op{Kind: overlay.OpAppendChunk, Text: "pushed"})
	require.NoError(t, err)

	p := NewPipeline(ex, &fakeStreamer{deltas: []string{"mine"}}, nil)
	require.NoError(t, p.HandleUtterance(ctx, "hi"))

	snap, _ := ex.Snapshot(ctx)
	texts := snap.Texts()
	assert.Equal(t, []string{"pushed", "hi", "mine"}, texts)
}

func TestHandleUtterance_Serialized(t *testing.T) {
	ex := newExec()
	gate := make(chan struct{})
	fs := &fakeStreamer{deltas: []string{"no"}, gate: gate}
	p := NewPipeline(ex, fs, nil)

	errs := make(chan error, 2)
	go func() { errs <- p.HandleUtterance(context.Background(), "first") }()
	assert.Eventually(t, func() bool {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		return len(fs.seen) == 1
	}, 2*time.Second, time.Millisecond)

	go func() { errs <- p.HandleUtterance(context.Background(), "second") }()
	close(gate)
	require.NoError(t, <-errs)
	require.NoError(t, <-errs)

	snap, _ := ex.Snapshot(context.Background())
	assert.Equal(t, []string{"first", "no", "second", "no"}, snap.Texts())
}
