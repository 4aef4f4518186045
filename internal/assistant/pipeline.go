// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package assistant turns a recognized utterance into overlay operations:
// the utterance is shown as a user bubble, then the model's reply is
// streamed into an assistant bubble.
package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/retort/internal/overlay"
	"github.com/jeranaias/retort/internal/util"
)

// ErrEmptyUtterance is returned for blank input.
var ErrEmptyUtterance = errors.New("empty utterance")

// Streamer produces a reply for one utterance, delivering deltas in order.
type Streamer interface {
	Stream(ctx context.Context, userText string, onDelta func(string)) error
}

// Pipeline feeds utterances through a Streamer into the overlay.
type Pipeline struct {
	exec     overlay.Executor
	streamer Streamer
	logger   *zap.Logger

	// One reply at a time: the overlay holds a single open stream.
	mu sync.Mutex
}

// NewPipeline creates a pipeline.
func NewPipeline(exec overlay.Executor, streamer Streamer, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{exec: exec, streamer: streamer, logger: logger}
}

// HandleUtterance shows text as a user bubble and streams the reply. A
// failed reply is finished with a warning line instead of being left open.
// Utterances are handled one at a time in arrival order.
func (p *Pipeline) HandleUtterance(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyUtterance
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	log := p.logger.With(zap.String("utterance", util.TruncateRunes(text, 40)))
	log.Info("handling utterance")

	if _, err := p.exec.Execute(ctx, overlay.Op{Kind: overlay.OpSubmitUser, Text: text}); err != nil {
		return err
	}

	res, err := p.exec.Execute(ctx, overlay.Op{Kind: overlay.OpBeginStream})
	if err != nil {
		return err
	}
	if res.Err != nil {
		// A stream pushed by another client is still open; close it first.
		log.Warn("closing foreign stream", zap.Error(res.Err))
		if _, err := p.exec.Execute(ctx, overlay.Op{Kind: overlay.OpEndStream}); err != nil {
			return err
		}
		if res, err = p.exec.Execute(ctx, overlay.Op{Kind: overlay.OpBeginStream}); err != nil {
			return err
		}
		if res.Err != nil {
			return res.Err
		}
	}

	chunks := 0
	streamErr := p.streamer.Stream(ctx, text, func(delta string) {
		chunks++
		if _, err := p.exec.Execute(ctx, overlay.Op{Kind: overlay.OpAppendChunk, Text: delta}); err != nil {
			log.Debug("chunk not delivered", zap.Error(err))
		}
	})

	// The stream must be closed even if ctx is done.
	endCtx := context.WithoutCancel(ctx)
	if streamErr != nil {
		log.Error("reply failed", zap.Int("chunks", chunks), zap.Error(streamErr))
		sep := ""
		if chunks > 0 {
			sep = "\n"
		}
		_, _ = p.exec.Execute(endCtx, overlay.Op{Kind: overlay.OpAppendChunk, Text: sep + "⚠ " + streamErr.Error()})
	} else {
		log.Info("reply complete", zap.Int("chunks", chunks))
	}
	if _, err := p.exec.Execute(endCtx, overlay.Op{Kind: overlay.OpEndStream}); err != nil {
		return err
	}
	return streamErr
}
