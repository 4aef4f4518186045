// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"
	zone "github.com/lrstanley/bubblezone"
	"go.uber.org/zap"

	"github.com/jeranaias/retort/internal/config"
	"github.com/jeranaias/retort/internal/host"
	"github.com/jeranaias/retort/internal/overlay"
	"github.com/jeranaias/retort/internal/ui/controls"
	"github.com/jeranaias/retort/internal/ui/panel"
	"github.com/jeranaias/retort/internal/ui/styles"
	"github.com/jeranaias/retort/internal/ui/toast"
)

// Zone IDs for the footer controls.
const (
	ZoneFontDown = "retort-font-down"
	ZoneFontUp   = "retort-font-up"
	ZoneGrip     = "retort-grip"
)

// footerHeight is the number of rows below the panel.
const footerHeight = 1

// =============================================================================
// OPTIONS
// =============================================================================

// Options wires the model to its collaborators. Zero values fall back to
// defaults: config.Default, a host.Recorder, a real clock and a no-op logger.
type Options struct {
	Config *config.Config
	Bridge host.Bridge
	Sender *Sender
	Theme  *styles.Theme
	Zones  *zone.Manager
	Clock  clockwork.Clock
	Logger *zap.Logger
}

// observer is implemented by bridges that track the window size.
type observer interface {
	Observe(cols, rows int)
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the overlay's tea.Model.
type Model struct {
	keys   KeyMap
	theme  *styles.Theme
	zones  *zone.Manager
	logger *zap.Logger

	panel     *panel.Panel
	presenter *overlay.Presenter
	font      *controls.FontSize
	drag      *controls.ResizeDrag
	toasts    *toast.Manager
	bridge    host.Bridge

	width     int
	height    int
	animating bool
	closing   bool

	// dragErr is the last host failure seen by the drag, shown as a toast.
	dragErr error
}

// New builds the model. The presenter's timers are posted through
// opts.Sender, so the sender must be attached to the program before Run.
func New(opts Options) *Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if opts.Bridge == nil {
		opts.Bridge = &host.Recorder{}
	}
	if opts.Sender == nil {
		opts.Sender = NewSender()
	}
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	m := &Model{
		keys:   DefaultKeyMap(),
		theme:  opts.Theme,
		zones:  opts.Zones,
		logger: opts.Logger,
		bridge: opts.Bridge,
		width:  opts.Theme.Width,
		height: opts.Theme.Height,
	}
	if m.width <= 0 {
		m.width = cfg.Window.MinCols
	}
	if m.height <= 0 {
		m.height = cfg.Window.MinRows
	}

	popts := []panel.Option{
		panel.WithClock(opts.Clock),
		panel.WithListeningLabel(cfg.Overlay.ListeningLabel),
	}
	if m.zones != nil {
		popts = append(popts, panel.WithZones(m.zones))
	}
	m.panel = panel.New(m.theme, m.width, max(m.height-footerHeight, 1), popts...)

	m.font = controls.NewFontSize(cfg.Overlay.FontSize, controls.FontMin, controls.FontMax)
	m.panel.SetFontSize(m.font.Value())

	m.toasts = toast.NewManager()
	m.drag = controls.NewResizeDrag(m.bridge, func(err error) {
		m.logger.Warn("host call failed", zap.Error(err))
		m.dragErr = err
	})

	sched := overlay.NewClockScheduler(opts.Clock, opts.Sender.Post)
	m.presenter = overlay.New(m.panel, sched,
		overlay.WithLogger(m.logger.Named("presenter")),
		overlay.WithListeningMarkers(cfg.Overlay.ListeningMarkers...),
	)
	return m
}

// Init shows the listening indicator and starts its spinner.
func (m *Model) Init() tea.Cmd {
	m.presenter.ShowListening()
	return m.panel.Init()
}

// Update handles one message.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case opMsg:
		msg.reply <- m.presenter.Apply(msg.op)
		return m, m.startAnimation()

	case snapshotMsg:
		msg.reply <- m.presenter.Snapshot()
		return m, nil

	case postMsg:
		msg.fn()
		return m, m.startAnimation()

	case cancelMsg:
		msg.reply <- msg.cancel.Stop()
		return m, nil

	case animTickMsg:
		if m.panel.Animate() {
			return m, animTick()
		}
		m.animating = false
		return m, nil

	case spinner.TickMsg:
		return m, m.panel.Update(msg)

	case ConfigMsg:
		m.applyConfig(msg.Config)
		return m, m.toasts.Add(toast.KindStatus, "config reloaded")

	case toast.ExpireMsg:
		m.toasts.Remove(msg.ID)
		return m, nil

	case hostErrMsg:
		m.logger.Error("host call failed", zap.String("call", msg.call), zap.Error(msg.err))
		if msg.call == "destroy" {
			// The window could not be closed; end the program anyway.
			return m, tea.Quit
		}
		return m, m.toasts.Add(toast.KindError, msg.call+" failed")
	}
	return m, nil
}

// =============================================================================
// INPUT
// =============================================================================

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, m.close()
	case key.Matches(msg, m.keys.Quit):
		if m.presenter.State() == overlay.StateIdleListening {
			return m, m.close()
		}
	case key.Matches(msg, m.keys.FontUp):
		m.changeFont(m.font.Inc)
	case key.Matches(msg, m.keys.FontDown):
		m.changeFont(m.font.Dec)
	case key.Matches(msg, m.keys.Up, m.keys.Down, m.keys.PageUp, m.keys.PageDown):
		return m, m.panel.Update(msg)
	}
	return m, nil
}

func (m *Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.drag.Active() {
		switch msg.Action {
		case tea.MouseActionMotion:
			m.drag.Motion(msg.X, msg.Y)
			return m, m.dragToast()
		case tea.MouseActionRelease:
			m.drag.Release()
			return m, m.dragToast()
		}
	}

	if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
		return m, tea.Batch(m.pressZone(m.zoneAt(msg), msg.X, msg.Y), m.dragToast())
	}

	// Wheel scrolling.
	return m, m.panel.Update(msg)
}

// pressZone handles a left press on the zone with id.
func (m *Model) pressZone(id string, x, y int) tea.Cmd {
	switch id {
	case panel.ZoneClose:
		return m.close()
	case ZoneFontUp:
		m.changeFont(m.font.Inc)
	case ZoneFontDown:
		m.changeFont(m.font.Dec)
	case ZoneGrip:
		m.drag.Press(x, y)
	}
	return nil
}

// dragToast turns a pending drag failure into a toast.
func (m *Model) dragToast() tea.Cmd {
	if m.dragErr == nil {
		return nil
	}
	m.dragErr = nil
	return m.toasts.Add(toast.KindWarning, "resize failed")
}

func (m *Model) zoneAt(msg tea.MouseMsg) string {
	if m.zones == nil {
		return ""
	}
	for _, id := range []string{panel.ZoneClose, ZoneFontDown, ZoneFontUp, ZoneGrip} {
		if z := m.zones.Get(id); z != nil && z.InBounds(msg) {
			return id
		}
	}
	return ""
}

func (m *Model) changeFont(step func() bool) {
	if !step() {
		return
	}
	m.panel.SetFontSize(m.font.Value())
	m.logger.Debug("font size changed", zap.Int("size", m.font.Value()))
}

// close asks the host to destroy the window.
func (m *Model) close() tea.Cmd {
	if m.closing {
		return nil
	}
	m.closing = true
	m.drag.Release()
	bridge := m.bridge
	return func() tea.Msg {
		if err := bridge.Destroy(); err != nil && !errors.Is(err, host.ErrClosed) {
			return hostErrMsg{call: "destroy", err: err}
		}
		return nil
	}
}

// =============================================================================
// LAYOUT AND ANIMATION
// =============================================================================

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.panel.SetSize(width, max(height-footerHeight, 1))
	if o, ok := m.bridge.(observer); ok {
		o.Observe(width, height)
	}
}

func (m *Model) applyConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	if m.font.Set(cfg.Overlay.FontSize) {
		m.panel.SetFontSize(m.font.Value())
	}
	m.panel.SetListeningLabel(cfg.Overlay.ListeningLabel)
	m.logger.Info("config applied", zap.Int("font_size", m.font.Value()))
}

// startAnimation starts the fade ticker if a bubble is exiting.
func (m *Model) startAnimation() tea.Cmd {
	if m.animating || !m.panel.Animate() {
		return nil
	}
	m.animating = true
	return animTick()
}

func animTick() tea.Cmd {
	return tea.Tick(styles.FrameInterval, func(time.Time) tea.Msg {
		return animTickMsg{}
	})
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Presenter returns the presenter. Only use it from the program goroutine
// or before Run.
func (m *Model) Presenter() *overlay.Presenter { return m.presenter }

// Panel returns the panel.
func (m *Model) Panel() *panel.Panel { return m.panel }

// FontSize returns the current font size.
func (m *Model) FontSize() int { return m.font.Value() }

// Toasts returns the footer notices.
func (m *Model) Toasts() *toast.Manager { return m.toasts }

// Closing reports whether a close was requested.
func (m *Model) Closing() bool { return m.closing }
