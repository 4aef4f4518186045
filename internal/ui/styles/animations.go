// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// =============================================================================
// SPINNER ANIMATIONS
// =============================================================================

// SpinnerConfig holds the configuration for a spinner animation.
type SpinnerConfig struct {
	Frames []string
	FPS    int
}

// DotsSpinner - classic three-dot animation for the listening indicator
var DotsSpinner = SpinnerConfig{
	Frames: []string{".  ", ".. ", "...", " ..", "  .", "   "},
	FPS:    6,
}

// Duration returns the duration for each frame.
func (s SpinnerConfig) Duration() time.Duration {
	if s.FPS <= 0 {
		return time.Second
	}
	return time.Second / time.Duration(s.FPS)
}

// Spinner converts the config into a bubbles spinner definition.
func (s SpinnerConfig) Spinner() spinner.Spinner {
	return spinner.Spinner{Frames: s.Frames, FPS: s.Duration()}
}

// =============================================================================
// TRANSITION EFFECTS
// =============================================================================

// EasingFunc is a function that maps progress (0-1) to output (0-1).
type EasingFunc func(t float64) float64

// EaseOutCubic - decelerating to zero
func EaseOutCubic(t float64) float64 {
	t--
	return t*t*t + 1
}

// TransitionConfig defines a transition animation.
type TransitionConfig struct {
	Duration time.Duration
	Easing   EasingFunc
}

// Progress returns the eased progress after elapsed, clamped to [0,1].
func (c TransitionConfig) Progress(elapsed time.Duration) float64 {
	if c.Duration <= 0 || elapsed >= c.Duration {
		return 1
	}
	if elapsed <= 0 {
		return 0
	}
	t := float64(elapsed) / float64(c.Duration)
	if c.Easing == nil {
		return t
	}
	return c.Easing(t)
}

// TransitionExit is the bubble exit animation.
var TransitionExit = TransitionConfig{
	Duration: 300 * time.Millisecond,
	Easing:   EaseOutCubic,
}

// FrameInterval is the animation tick rate (~30fps).
const FrameInterval = 33 * time.Millisecond

// =============================================================================
// GLYPHS
// =============================================================================

// Glyphs used by the panel controls (ASCII-safe).
var Glyphs = struct {
	Close    string
	FontDown string
	FontUp   string
	Grip     string
	Cursor   string
}{
	Close:    "[x]",
	FontDown: "A-",
	FontUp:   "A+",
	Grip:     "//",
	Cursor:   "_",
}
