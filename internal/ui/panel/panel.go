// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package panel renders overlay bubbles into a scrollable terminal viewport.
//
// Panel implements overlay.Renderer. It keeps one row per mounted bubble,
// copied by value, and re-renders the viewport content after every change.
// Exiting rows fade toward the panel surface until they are unmounted.
package panel

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jonboulle/clockwork"
	zone "github.com/lrstanley/bubblezone"

	"github.com/jeranaias/retort/internal/model"
	"github.com/jeranaias/retort/internal/ui/styles"
)

const (
	// ZoneClose marks the close glyph on the listening bubble.
	ZoneClose = "retort-close"

	// DefaultFontSize is the font size at which text wraps to the full width.
	DefaultFontSize = 14

	// DefaultListeningLabel is shown inside the listening bubble.
	DefaultListeningLabel = "正在偷听…"
)

// =============================================================================
// ROWS
// =============================================================================

type row struct {
	bubble    model.Bubble
	exitStart time.Time
	exitDur   time.Duration
}

func (r *row) exiting() bool {
	return !r.exitStart.IsZero()
}

// =============================================================================
// PANEL
// =============================================================================

// Panel is the terminal rendering of the overlay.
type Panel struct {
	theme    *styles.Theme
	zones    *zone.Manager
	clock    clockwork.Clock
	viewport viewport.Model
	spinner  spinner.Model

	rows     []*row
	width    int
	height   int
	fontSize int
	label    string
	scrolls  int
}

// Option configures a Panel.
type Option func(*Panel)

// WithZones enables mouse hit zones on the close glyph.
func WithZones(z *zone.Manager) Option {
	return func(p *Panel) { p.zones = z }
}

// WithClock sets the clock used to time exit fades.
func WithClock(c clockwork.Clock) Option {
	return func(p *Panel) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithListeningLabel sets the listening bubble label.
func WithListeningLabel(label string) Option {
	return func(p *Panel) {
		if label != "" {
			p.label = label
		}
	}
}

// New creates a panel sized width x height.
func New(theme *styles.Theme, width, height int, opts ...Option) *Panel {
	if theme == nil {
		theme = styles.NewTheme()
	}
	vp := viewport.New(width, height)
	vp.Style = lipgloss.NewStyle()
	vp.MouseWheelEnabled = true

	sp := spinner.New(
		spinner.WithSpinner(styles.DotsSpinner.Spinner()),
		spinner.WithStyle(theme.Spinner),
	)

	p := &Panel{
		theme:    theme,
		clock:    clockwork.NewRealClock(),
		viewport: vp,
		spinner:  sp,
		width:    width,
		height:   height,
		fontSize: DefaultFontSize,
		label:    DefaultListeningLabel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// =============================================================================
// RENDERER
// =============================================================================

// Mount adds a bubble at the bottom. Mounting a known ID replaces it in place.
func (p *Panel) Mount(b model.Bubble) error {
	if r := p.find(b.ID); r != nil {
		r.bubble = b
	} else {
		p.rows = append(p.rows, &row{bubble: b})
	}
	p.rebuild()
	return nil
}

// Refresh redraws a mounted bubble with new content.
func (p *Panel) Refresh(b model.Bubble) error {
	r := p.find(b.ID)
	if r == nil {
		return nil
	}
	r.bubble = b
	p.rebuild()
	return nil
}

// BeginExit starts fading a bubble out over d.
func (p *Panel) BeginExit(b model.Bubble, d time.Duration) error {
	r := p.find(b.ID)
	if r == nil {
		return nil
	}
	r.bubble = b
	r.exitStart = p.clock.Now()
	r.exitDur = d
	p.rebuild()
	return nil
}

// Unmount removes a bubble.
func (p *Panel) Unmount(b model.Bubble) error {
	for i, r := range p.rows {
		if r.bubble.ID == b.ID {
			p.rows = append(p.rows[:i], p.rows[i+1:]...)
			p.rebuild()
			return nil
		}
	}
	return nil
}

// ScrollToBottom shows the newest content.
func (p *Panel) ScrollToBottom() error {
	p.viewport.GotoBottom()
	p.scrolls++
	return nil
}

// =============================================================================
// TEA INTEGRATION
// =============================================================================

// Init starts the listening spinner.
func (p *Panel) Init() tea.Cmd {
	return p.spinner.Tick
}

// Update handles spinner ticks and viewport scrolling.
func (p *Panel) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		if p.hasListening() {
			p.rebuild()
		}
		return cmd
	default:
		var cmd tea.Cmd
		p.viewport, cmd = p.viewport.Update(msg)
		return cmd
	}
}

// Animate re-renders exiting rows. It reports whether any are still fading.
func (p *Panel) Animate() bool {
	active := false
	for _, r := range p.rows {
		if r.exiting() {
			active = true
			break
		}
	}
	if active {
		p.rebuild()
	}
	return active
}

// View renders the viewport.
func (p *Panel) View() string {
	return p.viewport.View()
}

// =============================================================================
// LAYOUT
// =============================================================================

// SetSize updates the panel dimensions.
func (p *Panel) SetSize(width, height int) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	p.width = width
	p.height = height
	p.viewport.Width = width
	p.viewport.Height = height
	p.theme.SetSize(width, height)
	p.rebuild()
	p.viewport.GotoBottom()
}

// SetFontSize rescales text. Larger sizes wrap to fewer columns.
func (p *Panel) SetFontSize(size int) {
	if size <= 0 || size == p.fontSize {
		return
	}
	p.fontSize = size
	p.rebuild()
	p.viewport.GotoBottom()
}

// FontSize returns the current font size.
func (p *Panel) FontSize() int {
	return p.fontSize
}

// SetListeningLabel changes the listening label.
func (p *Panel) SetListeningLabel(label string) {
	if label == "" {
		return
	}
	p.label = label
	p.rebuild()
}

// Len returns the number of mounted bubbles.
func (p *Panel) Len() int {
	return len(p.rows)
}

// Mounted returns copies of the mounted bubbles in display order.
func (p *Panel) Mounted() []model.Bubble {
	out := make([]model.Bubble, len(p.rows))
	for i, r := range p.rows {
		out[i] = r.bubble
	}
	return out
}

// Exiting reports whether the bubble with id is fading out.
func (p *Panel) Exiting(id string) bool {
	r := p.find(id)
	return r != nil && r.exiting()
}

// AtBottom reports whether the newest content is visible.
func (p *Panel) AtBottom() bool {
	return p.viewport.AtBottom()
}

// =============================================================================
// RENDERING
// =============================================================================

func (p *Panel) find(id string) *row {
	for _, r := range p.rows {
		if r.bubble.ID == id {
			return r
		}
	}
	return nil
}

func (p *Panel) hasListening() bool {
	for _, r := range p.rows {
		if r.bubble.IsListening() {
			return true
		}
	}
	return false
}

// contentWidth is the wrap width after font scaling.
func (p *Panel) contentWidth() int {
	w := p.width * DefaultFontSize / p.fontSize
	// Border (2) and padding (2) of the bubble style.
	w -= 4
	if w < 4 {
		w = 4
	}
	return w
}

func (p *Panel) rebuild() {
	parts := make([]string, 0, len(p.rows))
	for _, r := range p.rows {
		parts = append(parts, p.renderRow(r))
	}
	p.viewport.SetContent(strings.Join(parts, "\n"))
}

func (p *Panel) renderRow(r *row) string {
	b := r.bubble
	switch b.Role {
	case model.RoleListening:
		return p.renderListening()
	case model.RoleUser:
		return p.renderMessage(r, p.theme.UserBubble, styles.UserBubbleFg, styles.UserBubbleBorder, lipgloss.Right)
	default:
		return p.renderMessage(r, p.theme.AssistantBubble, styles.AssistantBubbleFg, styles.AssistantBubbleBorder, lipgloss.Left)
	}
}

func (p *Panel) renderListening() string {
	closeGlyph := p.theme.ControlClose.Render(styles.Glyphs.Close)
	if p.zones != nil {
		closeGlyph = p.zones.Mark(ZoneClose, closeGlyph)
	}
	content := p.spinner.View() + " " + p.label + "  " + closeGlyph
	return p.theme.ListeningBubble.Render(content)
}

func (p *Panel) renderMessage(r *row, style lipgloss.Style, fg, border lipgloss.AdaptiveColor, align lipgloss.Position) string {
	b := r.bubble
	text := b.DisplayText()
	if text == "" && !b.Streaming {
		text = "..."
	}
	wrapped := wrapText(text, p.contentWidth())
	if b.Streaming {
		wrapped += p.theme.StreamCursor.Render(styles.Glyphs.Cursor)
	}

	if r.exiting() {
		fade := styles.TransitionConfig{Duration: r.exitDur, Easing: styles.EaseOutCubic}
		t := fade.Progress(p.clock.Since(r.exitStart))
		style = style.
			Foreground(styles.FadeColor(fg, styles.Surface, p.theme.IsDark, t)).
			BorderForeground(styles.FadeColor(border, styles.Surface, p.theme.IsDark, t))
	}

	bubble := style.Render(wrapped)
	return lipgloss.PlaceHorizontal(p.width, align, bubble)
}
