package ledboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/jpalmerr/ledboard/internal/logging"
	"github.com/jpalmerr/ledboard/internal/simulator"
)

// freePort asks the kernel for an unused TCP port.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func newSimulator(t *testing.T, opts ...simulator.Option) (*simulator.Simulator, *httptest.Server) {
	t.Helper()
	opts = append([]simulator.Option{
		simulator.WithLogger(logging.Discard()),
		simulator.WithMemorySource(func(context.Context) (float64, error) { return 50, nil }),
	}, opts...)
	sim := simulator.New(opts...)
	ts := httptest.NewServer(sim.Handler())
	t.Cleanup(ts.Close)
	return sim, ts
}

// runBoard starts lb in the background and returns a stop function that
// cancels it and waits for Start to return.
func runBoard(t *testing.T, lb *LEDBoard) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- lb.Start(ctx)
	}()
	return func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Start() returned error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Start() did not return after context cancellation")
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		return 0, ""
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestStart_BlocksUntilContextCancelled(t *testing.T) {
	_, ts := newSimulator(t)

	lb, err := New(
		WithDevice(ts.URL),
		WithPort(freePort(t)),
		WithLogger(logging.Discard()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- lb.Start(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("Start() returned early with error: %v", err)
	default:
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after context cancellation")
	}
}

func TestStart_ReturnsImmediatelyIfContextAlreadyCancelled(t *testing.T) {
	lb, err := New(WithDevice(testDevice), WithPort(freePort(t)), WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() {
		done <- lb.Start(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return with already-cancelled context")
	}
}

func TestStart_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	_, ts := newSimulator(t)
	lb, err := New(WithDevice(ts.URL), WithPort(port), WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = lb.Start(ctx)
	if err == nil || !strings.Contains(err.Error(), "failed to start HTTP server") {
		t.Errorf("Start() error = %v, want bind failure", err)
	}
}

func TestStart_BadPage(t *testing.T) {
	lb, err := New(
		WithDevice(testDevice),
		WithPort(freePort(t)),
		WithPage(fstest.MapFS{}, "missing.html"),
		WithLogger(logging.Discard()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	err = lb.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "failed to load page") {
		t.Errorf("Start() error = %v, want page load failure", err)
	}
}

// TestStart_EndToEnd drives the dashboard against a simulated board: the
// first reads populate the page, and a bulb click toggles the LED, updates
// the page and shows a success notification.
func TestStart_EndToEnd(t *testing.T) {
	sim, ts := newSimulator(t)
	port := freePort(t)
	base := fmt.Sprintf("http://127.0.0.1:%d", port)

	lb, err := New(
		WithDevice(ts.URL),
		WithPort(port),
		WithTitle("Bench <Board>"),
		WithStatusInterval(100*time.Millisecond),
		WithBulbInterval(100*time.Millisecond),
		WithInfoInterval(100*time.Millisecond),
		WithLogger(logging.Discard()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	stop := runBoard(t, lb)
	defer stop()

	waitFor(t, "first device read", func() bool {
		return !lb.Snapshot().UpdatedAt.IsZero()
	})

	code, page := get(t, base+"/")
	if code != http.StatusOK {
		t.Fatalf("GET / status = %d", code)
	}
	if !strings.Contains(page, "Bench &lt;Board&gt;") {
		t.Error("page missing escaped title")
	}

	resp, err := http.Post(base+"/api/events", "application/json",
		strings.NewReader(`{"type":"click","target":"bulb"}`))
	if err != nil {
		t.Fatalf("POST /api/events: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("POST /api/events status = %d, want 204", resp.StatusCode)
	}

	if !sim.LED() {
		t.Error("simulator LED should be on after a bulb click")
	}
	waitFor(t, "LED state in snapshot", func() bool {
		return lb.Snapshot().LEDState
	})

	_, page = get(t, base+"/")
	if !strings.Contains(page, "LED turned on") {
		t.Error("page missing success notification")
	}

	_, body := get(t, base+"/api/snapshot")
	var snap Snapshot
	if err := json.Unmarshal([]byte(body), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if !snap.LEDState || snap.BulbGlow != GlowBright {
		t.Errorf("snapshot = %+v, want LED on and bright bulb", snap)
	}
}

func TestStart_DeviceFailureNotifies(t *testing.T) {
	sim, ts := newSimulator(t, simulator.WithFailEvery(1))
	port := freePort(t)
	base := fmt.Sprintf("http://127.0.0.1:%d", port)

	lb, err := New(WithDevice(ts.URL), WithPort(port), WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	stop := runBoard(t, lb)
	defer stop()

	waitFor(t, "server", func() bool {
		code, _ := get(t, base+"/api/dom")
		return code == http.StatusOK
	})

	resp, err := http.Post(base+"/api/events", "application/json",
		strings.NewReader(`{"type":"control","action":"on"}`))
	if err != nil {
		t.Fatalf("POST /api/events: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
	if sim.LED() {
		t.Error("failed request should not have changed the LED")
	}

	_, page := get(t, base+"/")
	if !strings.Contains(page, "Operation failed") {
		t.Error("page missing failure notification")
	}
}

func TestStart_MultipleSequentialRuns(t *testing.T) {
	_, ts := newSimulator(t)

	for i := 0; i < 3; i++ {
		lb, err := New(WithDevice(ts.URL), WithPort(freePort(t)), WithLogger(logging.Discard()))
		if err != nil {
			t.Fatalf("iteration %d: New() error = %v", i, err)
		}
		stop := runBoard(t, lb)
		time.Sleep(50 * time.Millisecond)
		stop()
	}
}
