package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

type mockPinger struct {
	runErr     error
	stats      *probing.Statistics
	privileged bool
}

func (m *mockPinger) RunWithContext(context.Context) error { return m.runErr }
func (m *mockPinger) Statistics() *probing.Statistics    { return m.stats }
func (m *mockPinger) SetPrivileged(b bool)                { m.privileged = b }

func factory(m *mockPinger, gotCount *int) PingerFactory {
	return func(_ string, count int, _ time.Duration) (Pinger, error) {
		if gotCount != nil {
			*gotCount = count
		}
		return m, nil
	}
}

func TestProbe_Reachable(t *testing.T) {
	m := &mockPinger{stats: &probing.Statistics{PacketsSent: 3, PacketsRecv: 3, AvgRtt: 12 * time.Millisecond}}
	var count int
	p, err := New("192.168.1.50", WithCount(5), WithPrivileged(true), WithPingerFactory(factory(m, &count)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	rtt, err := p.Probe(context.Background())
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if rtt != 12*time.Millisecond {
		t.Errorf("rtt = %v, want 12ms", rtt)
	}
	if count != 5 || !m.privileged {
		t.Errorf("count = %d privileged = %v, want 5 true", count, m.privileged)
	}
}

func TestProbe_Unreachable(t *testing.T) {
	m := &mockPinger{stats: &probing.Statistics{PacketsSent: 3}}
	p, _ := New("10.0.0.9", WithPingerFactory(factory(m, nil)))

	if _, err := p.Probe(context.Background()); !errors.Is(err, ErrUnreachable) {
		t.Errorf("Probe() error = %v, want ErrUnreachable", err)
	}
}

func TestProbe_RunError(t *testing.T) {
	m := &mockPinger{runErr: errors.New("socket: operation not permitted")}
	p, _ := New("10.0.0.9", WithPingerFactory(factory(m, nil)))

	if _, err := p.Probe(context.Background()); err == nil || errors.Is(err, ErrUnreachable) {
		t.Errorf("Probe() error = %v, want run error", err)
	}
}

func TestProbe_FactoryError(t *testing.T) {
	p, _ := New("bad host", WithPingerFactory(func(string, int, time.Duration) (Pinger, error) {
		return nil, errors.New("lookup failed")
	}))
	if _, err := p.Probe(context.Background()); err == nil {
		t.Error("Probe() should fail when the pinger cannot be built")
	}
}

func TestNew_RequiresHost(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("New(\"\") should fail")
	}
}

func TestHostFromURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"http://192.168.1.50", "192.168.1.50", false},
		{"http://esp32.local:8080/", "esp32.local", false},
		{"https://[fe80::1]:443", "fe80::1", false},
		{"not a url", "", true},
		{"://", "", true},
	}
	for _, tt := range tests {
		got, err := HostFromURL(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("HostFromURL(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("HostFromURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
