// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package overlay

import (
	"time"

	"go.uber.org/zap"
)

const (
	// RetentionLimit is the number of non-listening bubbles kept visible.
	RetentionLimit = 6

	// ExitAnimation is how long an evicted bubble animates before removal.
	ExitAnimation = 300 * time.Millisecond

	// RelistenDelay is the pause between the end of a stream and the return
	// of the listening indicator.
	RelistenDelay = 1000 * time.Millisecond
)

// DefaultListeningMarkers are the substrings that turn a "status" dispatch
// into a listening indicator.
var DefaultListeningMarkers = []string{"偷听", "listening"}

// Option configures a Presenter.
type Option func(*Presenter)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(p *Presenter) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithRetentionLimit overrides RetentionLimit. Values below 1 are ignored.
func WithRetentionLimit(n int) Option {
	return func(p *Presenter) {
		if n >= 1 {
			p.retention = n
		}
	}
}

// WithExitAnimation overrides ExitAnimation.
func WithExitAnimation(d time.Duration) Option {
	return func(p *Presenter) {
		if d >= 0 {
			p.exitAnim = d
		}
	}
}

// WithRelistenDelay overrides RelistenDelay.
func WithRelistenDelay(d time.Duration) Option {
	return func(p *Presenter) {
		if d >= 0 {
			p.relisten = d
		}
	}
}

// WithListeningMarkers replaces DefaultListeningMarkers.
func WithListeningMarkers(markers ...string) Option {
	return func(p *Presenter) {
		if len(markers) > 0 {
			p.markers = append([]string(nil), markers...)
		}
	}
}
