package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vitaminmoo/blesync/internal/ble"
	"github.com/vitaminmoo/blesync/internal/gateway"
	"github.com/vitaminmoo/blesync/internal/notify"
	"github.com/vitaminmoo/blesync/internal/reading"
)

// View represents different screens in the TUI.
type View int

const (
	ViewDevices View = iota
	ViewConnected
	ViewData
)

// refreshInterval is how often the screen polls the gateway.
const refreshInterval = 250 * time.Millisecond

// Controller is the part of the gateway the screen drives.
type Controller interface {
	StartScan(ctx context.Context)
	StopScan()
	Devices() []ble.Peripheral
	Connect(ctx context.Context, id string) (*ble.Session, error)
	Disconnect() error
	Status() gateway.Status
	Readings() reading.Log
}

// Model is the main Bubbletea model for the TUI.
type Model struct {
	ctx    context.Context
	ctrl   Controller
	alerts <-chan notify.Alert

	// State
	view          View
	cursor        int
	cursorHistory map[View]int
	width         int
	height        int

	// Data
	devices    []ble.Peripheral
	status     gateway.Status
	readings   reading.Log
	connecting bool
	alert      *notify.Alert // shown until dismissed
	queued     []notify.Alert
	errorMsg   string
	statusMsg  string

	// Components
	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	gauge   Gauge
	styles  Styles
}

// --- Custom messages for async operations ---

// refreshMsg triggers a poll of the gateway.
type refreshMsg time.Time

// connectMsg signals connection attempt result.
type connectMsg struct {
	session *ble.Session
	err     error
}

// disconnectMsg signals the session was closed.
type disconnectMsg struct {
	err error
}

// alertMsg delivers one alert from the pipeline.
type alertMsg notify.Alert

// NewModel creates a new TUI model. alerts may be nil.
func NewModel(ctx context.Context, ctrl Controller, alerts <-chan notify.Alert) Model {
	h := help.New()
	h.ShowAll = false

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	return Model{
		ctx:           ctx,
		ctrl:          ctrl,
		alerts:        alerts,
		view:          ViewDevices,
		cursorHistory: make(map[View]int),
		keys:          DefaultKeyMap(),
		help:          h,
		spinner:       s,
		gauge:         NewGauge(40),
		styles:        DefaultStyles(),
	}
}

// Init starts scanning and polling.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		startScanCmd(m.ctx, m.ctrl),
		refreshCmd(),
		waitForAlertCmd(m.alerts),
		m.spinner.Tick,
	)
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.gauge.SetWidth(max(10, min(60, msg.Width-8)))
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case refreshMsg:
		m.refresh()
		return m, refreshCmd()

	case connectMsg:
		m.connecting = false
		if msg.err != nil {
			m.errorMsg = fmt.Sprintf("Connection failed: %v", msg.err)
			return m, nil
		}
		m.errorMsg = ""
		m.statusMsg = "Connected to " + msg.session.Peripheral.DisplayName()
		m.refresh()
		m.switchView(ViewConnected)
		return m, nil

	case disconnectMsg:
		if msg.err != nil {
			m.errorMsg = fmt.Sprintf("Disconnect: %v", msg.err)
		} else {
			m.statusMsg = "Disconnected"
		}
		m.refresh()
		m.switchView(ViewDevices)
		return m, nil

	case alertMsg:
		a := notify.Alert(msg)
		if m.alert == nil {
			m.alert = &a
		} else {
			m.queued = append(m.queued, a)
		}
		return m, waitForAlertCmd(m.alerts)
	}
	return m, nil
}

// refresh copies the gateway state into the model.
func (m *Model) refresh() {
	m.status = m.ctrl.Status()
	m.devices = m.ctrl.Devices()
	m.readings = m.ctrl.Readings()

	// A peripheral-initiated disconnect ends up here.
	if m.view == ViewConnected && m.status.State == ble.StateDisconnected && !m.connecting {
		m.errorMsg = "Device disconnected"
		m.switchView(ViewDevices)
	}
	if c := m.maxCursor(); m.cursor > c {
		m.cursor = max(c, 0)
	}
}

func (m *Model) switchView(v View) {
	m.cursorHistory[m.view] = m.cursor
	m.view = v
	m.cursor = m.cursorHistory[v]
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// The modal swallows everything except quit.
	if m.alert != nil {
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Select), key.Matches(msg, m.keys.Back):
			m.dismissAlert()
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Back):
		return m.goBack()

	case key.Matches(msg, m.keys.Up):
		m.cursor--
		if m.cursor < 0 {
			m.cursor = max(m.maxCursor(), 0)
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		m.cursor++
		if m.cursor > m.maxCursor() {
			m.cursor = 0
		}
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.Scan):
		if m.view != ViewDevices || m.status.State != ble.StateDisconnected {
			return m, nil
		}
		m.errorMsg = ""
		m.statusMsg = "Scanning..."
		m.status.Scanning = true
		m.cursor = 0
		return m, startScanCmd(m.ctx, m.ctrl)

	case key.Matches(msg, m.keys.StopScan):
		m.ctrl.StopScan()
		m.status.Scanning = false
		m.statusMsg = "Scan stopped"
		return m, nil

	case key.Matches(msg, m.keys.Disconnect):
		if m.status.State != ble.StateConnected {
			return m, nil
		}
		return m, disconnectCmd(m.ctrl)

	case key.Matches(msg, m.keys.Data):
		if m.view == ViewData {
			return m.goBack()
		}
		m.switchView(ViewData)
		return m, nil

	case key.Matches(msg, m.keys.Select):
		return m.handleSelect()
	}

	return m, nil
}

func (m *Model) dismissAlert() {
	if len(m.queued) == 0 {
		m.alert = nil
		return
	}
	next := m.queued[0]
	m.queued = m.queued[1:]
	m.alert = &next
}

func (m Model) goBack() (tea.Model, tea.Cmd) {
	switch m.view {
	case ViewData:
		if m.status.State == ble.StateConnected {
			m.switchView(ViewConnected)
		} else {
			m.switchView(ViewDevices)
		}
	case ViewConnected:
		m.switchView(ViewDevices)
	}
	return m, nil
}

func (m Model) handleSelect() (tea.Model, tea.Cmd) {
	if m.view != ViewDevices || m.connecting || m.status.State != ble.StateDisconnected {
		return m, nil
	}
	if m.cursor >= len(m.devices) {
		return m, nil
	}

	p := m.devices[m.cursor]
	m.connecting = true
	m.errorMsg = ""
	m.statusMsg = "Connecting to " + p.DisplayName() + "..."
	m.status.Scanning = false
	return m, tea.Batch(connectCmd(m.ctx, m.ctrl, p.ID), m.spinner.Tick)
}

func (m Model) maxCursor() int {
	switch m.view {
	case ViewDevices:
		return len(m.devices) - 1
	case ViewData:
		return len(m.readings) - 1
	default:
		return 0
	}
}

// --- Async commands ---

func startScanCmd(ctx context.Context, ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		ctrl.StartScan(ctx)
		return nil
	}
}

func connectCmd(ctx context.Context, ctrl Controller, id string) tea.Cmd {
	return func() tea.Msg {
		sess, err := ctrl.Connect(ctx, id)
		return connectMsg{session: sess, err: err}
	}
}

func disconnectCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		return disconnectMsg{err: ctrl.Disconnect()}
	}
}

// refreshCmd returns a command that triggers the next poll.
func refreshCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

// waitForAlertCmd blocks until the next alert arrives.
func waitForAlertCmd(alerts <-chan notify.Alert) tea.Cmd {
	if alerts == nil {
		return nil
	}
	return func() tea.Msg {
		a, ok := <-alerts
		if !ok {
			return nil
		}
		return alertMsg(a)
	}
}
