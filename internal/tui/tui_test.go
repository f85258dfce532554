package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jpalmerr/ledboard/internal/device"
	"github.com/jpalmerr/ledboard/internal/status"
	"github.com/jpalmerr/ledboard/internal/view"
)

type stubDevice struct {
	led       bool
	statusErr error
	ctrlErr   error
}

func (s *stubDevice) Control(_ context.Context, a device.Action) (device.LEDResponse, error) {
	if s.ctrlErr != nil {
		return device.LEDResponse{}, s.ctrlErr
	}
	s.led = a == device.ActionOn || (a == device.ActionToggle && !s.led)
	return device.LEDResponse{LEDState: s.led, Message: "done"}, nil
}

func (s *stubDevice) BulbStatus(context.Context) (device.BulbStatus, error) {
	return device.BulbStatus{Glow: "dim", StatusText: "Dimmed"}, nil
}

func (s *stubDevice) Status(context.Context) (device.SystemStatus, error) {
	if s.statusErr != nil {
		return device.SystemStatus{}, s.statusErr
	}
	return device.SystemStatus{LEDState: s.led, FreeHeap: 1000, WiFiRSSI: -50}, nil
}

func (s *stubDevice) SystemInfo(context.Context) (device.SystemInfo, error) {
	return device.SystemInfo{FreeHeap: 900, WiFiRSSI: -55, UptimeMs: 5000}, nil
}

func TestRead(t *testing.T) {
	snap, err := Read(context.Background(), &stubDevice{led: true})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !snap.LEDState || snap.BulbGlow != "dim" || snap.FreeHeapBytes != 900 || snap.UptimeMs != 5000 {
		t.Errorf("Read() = %+v", snap)
	}

	_, err = Read(context.Background(), &stubDevice{statusErr: device.ErrTransport})
	if !errors.Is(err, device.ErrTransport) {
		t.Errorf("Read() error = %v, want ErrTransport", err)
	}
}

func TestCard(t *testing.T) {
	out := Card("Desk Lamp", status.Snapshot{
		LEDState:      true,
		BulbGlow:      "bright",
		StatusText:    "Bulb is on",
		FreeHeapBytes: 2048,
		WiFiRSSIDBm:   -61,
		UptimeMs:      61000,
		Reachable:     true,
		PingRTT:       7 * time.Millisecond,
	}, view.Labels{On: "ON", Off: "OFF"})

	for _, want := range []string{"Desk Lamp", "ON", "Bulb is on (bright)", "2048 bytes", "-61 dBm", "1m 1s", "7 ms"} {
		if !strings.Contains(out, want) {
			t.Errorf("Card() missing %q:\n%s", want, out)
		}
	}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	mm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update() returned %T", next)
	}
	return mm, cmd
}

func TestModel_ReadAndControl(t *testing.T) {
	dev := &stubDevice{}
	m := NewModel("Lamp", dev, time.Second, time.Second, view.DefaultLabels())

	m, _ = update(t, m, readMsg{snap: status.Snapshot{StatusText: "Bulb is off", BulbGlow: "off"}})
	if !m.loaded || m.busy {
		t.Fatalf("after read: loaded=%v busy=%v", m.loaded, m.busy)
	}
	if !strings.Contains(m.View(), "Bulb is off") {
		t.Errorf("View() missing bulb text:\n%s", m.View())
	}

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("t")})
	if cmd == nil || !m.busy {
		t.Fatal("toggle key should start a control command")
	}
	msg := cmd()
	m, cmd = update(t, m, msg)
	if !m.snap.LEDState || m.message != "done" {
		t.Errorf("after toggle: snap=%+v message=%q", m.snap, m.message)
	}
	if cmd == nil {
		t.Error("successful control should trigger a re-read")
	}
}

func TestModel_ControlFailureMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{device.ErrNonSuccess, status.MsgOperationFailed},
		{device.ErrTransport, status.MsgNetworkError},
		{device.ErrMalformed, status.MsgNetworkError},
	}
	for _, tt := range tests {
		m := NewModel("Lamp", &stubDevice{}, time.Second, time.Second, view.DefaultLabels())
		m, _ = update(t, m, controlMsg{err: tt.err})
		if m.message != tt.want {
			t.Errorf("control error %v: message = %q, want %q", tt.err, m.message, tt.want)
		}
	}
}

func TestModel_ReadError(t *testing.T) {
	m := NewModel("Lamp", &stubDevice{}, time.Second, time.Second, view.DefaultLabels())
	m, _ = update(t, m, readMsg{err: errors.New("status: connection refused")})
	if !strings.Contains(m.View(), "connection refused") {
		t.Errorf("View() missing error:\n%s", m.View())
	}
}

func TestModel_Quit(t *testing.T) {
	m := NewModel("Lamp", &stubDevice{}, time.Second, time.Second, view.DefaultLabels())
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("quit key returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("quit key should return tea.Quit")
	}
}
