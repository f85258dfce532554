// Package tui renders device state in the terminal: a one-shot card for
// the status command and a live bubbletea model for watch.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jpalmerr/ledboard/internal/device"
	"github.com/jpalmerr/ledboard/internal/status"
	"github.com/jpalmerr/ledboard/internal/view"
)

// Device is the device API the terminal views use.
type Device interface {
	Control(ctx context.Context, action device.Action) (device.LEDResponse, error)
	BulbStatus(ctx context.Context) (device.BulbStatus, error)
	Status(ctx context.Context) (device.SystemStatus, error)
	SystemInfo(ctx context.Context) (device.SystemInfo, error)
}

// Read performs one full read of the device. It stops at the first failure.
func Read(ctx context.Context, d Device) (status.Snapshot, error) {
	var snap status.Snapshot

	st, err := d.Status(ctx)
	if err != nil {
		return snap, fmt.Errorf("status: %w", err)
	}
	snap.LEDState = st.LEDState
	snap.FreeHeapBytes = st.FreeHeap
	snap.WiFiRSSIDBm = st.WiFiRSSI

	bulb, err := d.BulbStatus(ctx)
	if err != nil {
		return snap, fmt.Errorf("bulb: %w", err)
	}
	snap.BulbGlow = bulb.Glow
	snap.StatusText = bulb.StatusText

	info, err := d.SystemInfo(ctx)
	if err != nil {
		return snap, fmt.Errorf("system info: %w", err)
	}
	snap.FreeHeapBytes = info.FreeHeap
	snap.WiFiRSSIDBm = info.WiFiRSSI
	snap.UptimeMs = info.UptimeMs
	snap.UpdatedAt = time.Now()
	return snap, nil
}

// Card renders a snapshot as a bordered terminal card.
func Card(title string, snap status.Snapshot, labels view.Labels) string {
	led := OffStyle.Render(labels.Off)
	if snap.LEDState {
		led = OnStyle.Render(labels.On)
	}

	rows := []string{
		TitleStyle.Render(title),
		"",
		row("LED", led),
		row("Bulb", fmt.Sprintf("%s (%s)", snap.StatusText, snap.BulbGlow)),
		row("Free heap", view.FormatBytes(snap.FreeHeapBytes)),
		row("Wi-Fi", fmt.Sprintf("%d dBm", snap.WiFiRSSIDBm)),
		row("Uptime", view.FormatUptime(snap.UptimeMs)),
	}
	if snap.Reachable {
		rows = append(rows, row("Ping", fmt.Sprintf("%d ms", snap.PingRTT.Milliseconds())))
	}
	return CardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, LabelStyle.Render(label), value)
}

type keyMap struct {
	Toggle  key.Binding
	On      key.Binding
	Off     key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.On, k.Off, k.Refresh, k.Quit}
}

// FullHelp returns keybindings for the expanded help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

func defaultKeys() keyMap {
	return keyMap{
		Toggle:  key.NewBinding(key.WithKeys("t", " "), key.WithHelp("t", "toggle")),
		On:      key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "on")),
		Off:     key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "off")),
		Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	}
}

type readMsg struct {
	snap status.Snapshot
	err  error
}

type controlMsg struct {
	resp device.LEDResponse
	err  error
}

type tickMsg time.Time

// Model is the live watch view.
type Model struct {
	title    string
	dev      Device
	interval time.Duration
	timeout  time.Duration
	labels   view.Labels

	snap    status.Snapshot
	loaded  bool
	err     error
	message string
	busy    bool

	spinner spinner.Model
	help    help.Model
	keys    keyMap
}

// NewModel creates a watch model polling dev every interval.
func NewModel(title string, dev Device, interval, timeout time.Duration, labels view.Labels) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return Model{
		title:    title,
		dev:      dev,
		interval: interval,
		timeout:  timeout,
		labels:   labels,
		spinner:  s,
		help:     help.New(),
		keys:     defaultKeys(),
		busy:     true,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.read(), m.tick())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Toggle):
			return m.startControl(device.ActionToggle)
		case key.Matches(msg, m.keys.On):
			return m.startControl(device.ActionOn)
		case key.Matches(msg, m.keys.Off):
			return m.startControl(device.ActionOff)
		case key.Matches(msg, m.keys.Refresh):
			m.busy = true
			return m, m.read()
		}

	case tickMsg:
		return m, tea.Batch(m.read(), m.tick())

	case readMsg:
		m.busy = false
		m.err = msg.err
		if msg.err == nil {
			m.snap = msg.snap
			m.loaded = true
		}
		return m, nil

	case controlMsg:
		m.busy = false
		if msg.err != nil {
			m.message = status.MsgNetworkError
			if errors.Is(msg.err, device.ErrNonSuccess) {
				m.message = status.MsgOperationFailed
			}
			return m, nil
		}
		m.message = msg.resp.Message
		m.snap.LEDState = msg.resp.LEDState
		return m, m.read()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder
	switch {
	case m.loaded:
		b.WriteString(Card(m.title, m.snap, m.labels))
	case m.err == nil:
		b.WriteString(m.spinner.View() + " connecting…")
	}
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(ErrorStyle.Render("read failed: "+m.err.Error()) + "\n")
	}
	if m.message != "" {
		b.WriteString(m.message + "\n")
	}
	if m.busy && m.loaded {
		b.WriteString(m.spinner.View() + "\n")
	}
	b.WriteString(HelpStyle.Render(m.help.View(m.keys)))
	return b.String()
}

func (m Model) startControl(action device.Action) (tea.Model, tea.Cmd) {
	m.busy = true
	dev, timeout := m.dev, m.timeout
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		resp, err := dev.Control(ctx, action)
		return controlMsg{resp: resp, err: err}
	}
}

func (m Model) read() tea.Cmd {
	dev, timeout := m.dev, m.timeout
	return func() tea.Msg {
		// three sequential reads share one budget
		ctx, cancel := context.WithTimeout(context.Background(), 3*timeout)
		defer cancel()
		snap, err := Read(ctx, dev)
		return readMsg{snap: snap, err: err}
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}
