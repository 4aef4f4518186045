// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

// =============================================================================
// EASING TESTS
// =============================================================================

func TestEasingEndpoints(t *testing.T) {
	if got := EaseOutCubic(0); math.Abs(got) > 1e-9 {
		t.Errorf("EaseOutCubic(0) = %f, want 0", got)
	}
	if got := EaseOutCubic(1); math.Abs(got-1) > 1e-9 {
		t.Errorf("EaseOutCubic(1) = %f, want 1", got)
	}
}

func TestTransitionProgress(t *testing.T) {
	c := TransitionExit
	assert.Equal(t, 0.0, c.Progress(0))
	assert.Equal(t, 1.0, c.Progress(c.Duration))
	assert.Equal(t, 1.0, c.Progress(time.Hour))

	mid := c.Progress(c.Duration / 2)
	assert.Greater(t, mid, 0.5, "ease-out runs ahead of linear at the midpoint")
	assert.Less(t, mid, 1.0)

	assert.Equal(t, 1.0, TransitionConfig{}.Progress(time.Millisecond))
}

func TestSpinnerConfig(t *testing.T) {
	s := DotsSpinner.Spinner()
	assert.Equal(t, DotsSpinner.Frames, s.Frames)
	assert.Equal(t, time.Second/6, s.FPS)
	assert.Equal(t, time.Second, SpinnerConfig{}.Duration())
}

// =============================================================================
// COLOR TESTS
// =============================================================================

func TestFadeColor(t *testing.T) {
	from := lipgloss.AdaptiveColor{Light: "#000000", Dark: "#FFFFFF"}
	to := lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#000000"}

	assert.Equal(t, lipgloss.Color("#000000"), FadeColor(from, to, false, 0))
	assert.Equal(t, lipgloss.Color("#ffffff"), lipgloss.Color(strings.ToLower(string(FadeColor(from, to, false, 1)))))

	mid := string(FadeColor(from, to, true, 0.5))
	assert.NotEqual(t, "#FFFFFF", mid)
	assert.NotEqual(t, "#000000", mid)
	assert.Len(t, mid, 7)
}

func TestFadeColor_InvalidHexPassesThrough(t *testing.T) {
	from := lipgloss.AdaptiveColor{Light: "12", Dark: "12"}
	assert.Equal(t, lipgloss.Color("12"), FadeColor(from, Surface, true, 0.5))
}

func TestNewThemeWith(t *testing.T) {
	th := NewThemeWith(true, termenv.Ascii)
	assert.True(t, th.IsDark)
	assert.False(t, th.HasTrueColor)

	th.SetSize(40, 20)
	assert.Equal(t, 40, th.Width)
	assert.NotEmpty(t, th.UserBubble.Render("x"))
}
