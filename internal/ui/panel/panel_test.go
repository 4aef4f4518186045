// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package panel

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/jonboulle/clockwork"
	zone "github.com/lrstanley/bubblezone"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/retort/internal/model"
	"github.com/jeranaias/retort/internal/ui/styles"
)

func newTestPanel(t *testing.T, opts ...Option) (*Panel, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	opts = append([]Option{WithClock(clock)}, opts...)
	p := New(styles.NewThemeWith(true, termenv.Ascii), 40, 30, opts...)
	return p, clock
}

func plain(p *Panel) string {
	return ansi.Strip(p.View())
}

// =============================================================================
// RENDERER TESTS
// =============================================================================

func TestPanel_MountOrder(t *testing.T) {
	p, _ := newTestPanel(t)
	u := model.NewBubble(model.RoleUser, "hi there")
	a := model.NewBubble(model.RoleAssistant, "hello back")

	require.NoError(t, p.Mount(*u))
	require.NoError(t, p.Mount(*a))

	out := plain(p)
	iu := strings.Index(out, "hi there")
	ia := strings.Index(out, "hello back")
	require.GreaterOrEqual(t, iu, 0)
	require.GreaterOrEqual(t, ia, 0)
	assert.Less(t, iu, ia)
	assert.Equal(t, 2, p.Len())
}

func TestPanel_StripsEscapesAtRender(t *testing.T) {
	p, _ := newTestPanel(t)
	b := model.NewStreamingBubble()
	require.NoError(t, p.Mount(*b))

	b.Append("\x1b]0;ti")
	b.Append("tle\x07safe")
	require.NoError(t, p.Refresh(*b))

	out := p.View()
	assert.NotContains(t, out, "\x1b]0;")
	assert.NotContains(t, out, "title")
	assert.Contains(t, out, "safe")
}

func TestPanel_RemountReplacesInPlace(t *testing.T) {
	p, _ := newTestPanel(t)
	b := model.NewBubble(model.RoleUser, "one")
	require.NoError(t, p.Mount(*b))
	b.Text = "two"
	require.NoError(t, p.Mount(*b))

	assert.Equal(t, 1, p.Len())
	assert.Contains(t, plain(p), "two")
}

func TestPanel_RefreshStreamingText(t *testing.T) {
	p, _ := newTestPanel(t)
	b := model.NewStreamingBubble()
	require.NoError(t, p.Mount(*b))

	b.Append("Hel")
	require.NoError(t, p.Refresh(*b))
	b.Append("lo")
	require.NoError(t, p.Refresh(*b))

	out := plain(p)
	assert.Contains(t, out, "Hello"+styles.Glyphs.Cursor)

	b.FinalizeStream()
	require.NoError(t, p.Refresh(*b))
	assert.NotContains(t, plain(p), "Hello"+styles.Glyphs.Cursor)
}

func TestPanel_UnknownBubblesAreNoOps(t *testing.T) {
	p, _ := newTestPanel(t)
	ghost := model.NewBubble(model.RoleUser, "ghost")

	assert.NoError(t, p.Refresh(*ghost))
	assert.NoError(t, p.BeginExit(*ghost, time.Second))
	assert.NoError(t, p.Unmount(*ghost))
	assert.Zero(t, p.Len())
}

func TestPanel_ExitStaysVisibleUntilUnmount(t *testing.T) {
	p, clock := newTestPanel(t)
	b := model.NewBubble(model.RoleUser, "old news")
	require.NoError(t, p.Mount(*b))

	b.Animating = true
	require.NoError(t, p.BeginExit(*b, 300*time.Millisecond))
	assert.True(t, p.Exiting(b.ID))
	assert.True(t, p.Animate())

	clock.Advance(time.Second)
	assert.True(t, p.Animate(), "row fades until it is unmounted")
	assert.Contains(t, plain(p), "old news")

	require.NoError(t, p.Unmount(*b))
	assert.False(t, p.Animate())
	assert.NotContains(t, plain(p), "old news")
}

func TestPanel_ListeningBubble(t *testing.T) {
	zones := zone.New()
	defer zones.Close()

	p, _ := newTestPanel(t, WithZones(zones), WithListeningLabel("listening"))
	require.NoError(t, p.Mount(*model.NewListeningBubble()))

	out := ansi.Strip(zones.Scan(p.View()))
	assert.Contains(t, out, "listening")
	assert.Contains(t, out, styles.Glyphs.Close)
}

func TestPanel_ScrollToBottom(t *testing.T) {
	p, _ := newTestPanel(t)
	p.SetSize(30, 4)
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Mount(*model.NewBubble(model.RoleUser, "line")))
	}
	require.NoError(t, p.ScrollToBottom())
	assert.True(t, p.AtBottom())
}

func TestPanel_FontSizeNarrowsWrap(t *testing.T) {
	p, _ := newTestPanel(t)
	text := strings.Repeat("word ", 30)
	b := model.NewBubble(model.RoleAssistant, text)
	require.NoError(t, p.Mount(*b))

	normal := p.contentWidth()
	p.SetFontSize(20)
	assert.Less(t, p.contentWidth(), normal)
	p.SetFontSize(10)
	assert.Greater(t, p.contentWidth(), normal)
	assert.Equal(t, 10, p.FontSize())

	p.SetFontSize(0)
	assert.Equal(t, 10, p.FontSize(), "non-positive sizes are ignored")
}

// =============================================================================
// WRAP TESTS
// =============================================================================

func TestWrapText(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  string
	}{
		{"fits", "hello", 10, "hello"},
		{"word break", "hello world foo", 11, "hello\nworld foo"},
		{"hard break", "abcdefghij", 4, "abcd\nefgh\nij"},
		{"keeps newlines", "a\nb", 5, "a\nb"},
		{"zero width", "anything", 0, "anything"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := wrapText(tc.text, tc.width); got != tc.want {
				t.Errorf("wrapText(%q, %d) = %q, want %q", tc.text, tc.width, got, tc.want)
			}
		})
	}
}

func TestWrapText_WideRunes(t *testing.T) {
	got := wrapText("你好世界你好世界", 6)
	for _, line := range strings.Split(got, "\n") {
		assert.LessOrEqual(t, runewidth.StringWidth(line), 6, "line %q", line)
	}
	assert.Equal(t, "你好世界你好世界", strings.ReplaceAll(got, "\n", ""))
	assert.Equal(t, 6, maxLineWidth(got))
}
