package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jpalmerr/ledboard/internal/device"
	"github.com/jpalmerr/ledboard/internal/dom"
	"github.com/jpalmerr/ledboard/internal/notify"
	"github.com/jpalmerr/ledboard/internal/poller"
	"github.com/jpalmerr/ledboard/internal/view"
)

// Notification texts for failed control actions.
const (
	MsgOperationFailed = "Operation failed"
	MsgNetworkError    = "Network error"
)

// Task names used with the scheduler.
const (
	TaskStatus = "status"
	TaskBulb   = "bulb"
	TaskInfo   = "info"
	TaskPing   = "ping"
)

// Snapshot is the merged view of the latest successful device reads.
type Snapshot struct {
	LEDState      bool          `json:"led_state"`
	BulbGlow      string        `json:"bulb_glow,omitempty"`
	StatusText    string        `json:"status_text,omitempty"`
	FreeHeapBytes uint64        `json:"free_heap"`
	WiFiRSSIDBm   int           `json:"wifi_rssi"`
	UptimeMs      uint64        `json:"uptime_ms"`
	Reachable     bool          `json:"reachable"`
	PingRTT       time.Duration `json:"ping_rtt_ns,omitempty"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Notifier shows user-facing notifications.
type Notifier interface {
	Show(message string, kind notify.Kind) (string, error)
}

// Prober measures reachability of the device host.
type Prober interface {
	Probe(ctx context.Context) (time.Duration, error)
}

// Config wires a [Poller] to its collaborators.
type Config struct {
	Client   *device.Client
	Document *dom.Document
	Notifier Notifier
	Prober   Prober // optional
	Labels   view.Labels
	Logger   *slog.Logger

	// OnSnapshot callbacks run after every successful read. Panics are
	// recovered and logged.
	OnSnapshot []func(Snapshot)

	// Now overrides the timestamp source for UpdatedAt.
	Now func() time.Time
}

// Intervals are the refresh periods handed to the scheduler.
type Intervals struct {
	Status time.Duration
	Bulb   time.Duration
	Info   time.Duration
	Ping   time.Duration
}

// Poller owns device reads and their rendering.
type Poller struct {
	client   *device.Client
	doc      *dom.Document
	notifier Notifier
	prober   Prober
	labels   view.Labels
	logger   *slog.Logger
	now      func() time.Time

	callbacks []func(Snapshot)

	mu   sync.RWMutex
	snap Snapshot
}

// New creates a Poller. Client and Document are required.
func New(cfg Config) (*Poller, error) {
	if cfg.Client == nil {
		return nil, errors.New("device client is required")
	}
	if cfg.Document == nil {
		return nil, errors.New("document is required")
	}
	if cfg.Labels == (view.Labels{}) {
		cfg.Labels = view.DefaultLabels()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Poller{
		client:    cfg.Client,
		doc:       cfg.Document,
		notifier:  cfg.Notifier,
		prober:    cfg.Prober,
		labels:    cfg.Labels,
		logger:    cfg.Logger,
		now:       cfg.Now,
		callbacks: cfg.OnSnapshot,
	}, nil
}

// Snapshot returns the latest merged device state.
func (p *Poller) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

// Tasks returns the periodic refresh tasks. A zero interval leaves the task
// on the scheduler's default; the ping task is only included when a prober
// is configured and its interval is positive.
func (p *Poller) Tasks(iv Intervals) []poller.Task {
	tasks := []poller.Task{
		{Name: TaskStatus, Interval: iv.Status, Run: p.RefreshSystem},
		{Name: TaskBulb, Interval: iv.Bulb, Run: p.RefreshBulb},
		{Name: TaskInfo, Interval: iv.Info, Run: p.RefreshInfo},
	}
	if p.prober != nil && iv.Ping > 0 {
		tasks = append(tasks, poller.Task{Name: TaskPing, Interval: iv.Ping, Run: p.RefreshPing})
	}
	return tasks
}

// RefreshBulb reads the bulb status and renders the glow classes and text.
func (p *Poller) RefreshBulb(ctx context.Context) error {
	st, err := p.client.BulbStatus(ctx)
	if err != nil {
		p.readFailed("bulb", err)
		return err
	}
	render(p, "bulb", view.Bulb, st)
	p.update(func(s *Snapshot) {
		s.BulbGlow = st.Glow
		s.StatusText = st.StatusText
	})
	p.logger.Debug("bulb refreshed", "glow", st.Glow, "latency_ms", st.Latency.Milliseconds())
	return nil
}

// RefreshSystem reads the system status and renders the summary block.
func (p *Poller) RefreshSystem(ctx context.Context) error {
	st, err := p.client.Status(ctx)
	if err != nil {
		p.readFailed("status", err)
		return err
	}
	render(p, "status", func(doc view.Lookup, st device.SystemStatus) ([]dom.Mutation, bool) {
		return view.SystemStatus(doc, st, p.labels)
	}, st)
	p.update(func(s *Snapshot) {
		s.LEDState = st.LEDState
		s.FreeHeapBytes = st.FreeHeap
		s.WiFiRSSIDBm = st.WiFiRSSI
	})
	p.logger.Debug("status refreshed", "led_state", st.LEDState, "latency_ms", st.Latency.Milliseconds())
	return nil
}

// RefreshInfo reads system info and renders heap, signal and uptime.
func (p *Poller) RefreshInfo(ctx context.Context) error {
	info, err := p.client.SystemInfo(ctx)
	if err != nil {
		p.readFailed("info", err)
		return err
	}
	render(p, "info", view.SystemInfo, info)
	p.update(func(s *Snapshot) {
		s.FreeHeapBytes = info.FreeHeap
		s.WiFiRSSIDBm = info.WiFiRSSI
		s.UptimeMs = info.UptimeMs
	})
	p.logger.Debug("info refreshed", "uptime_ms", info.UptimeMs, "latency_ms", info.Latency.Milliseconds())
	return nil
}

// RefreshPing probes the device host and renders the round-trip time.
func (p *Poller) RefreshPing(ctx context.Context) error {
	if p.prober == nil {
		return nil
	}
	rtt, err := p.prober.Probe(ctx)
	reachable := err == nil
	if err != nil {
		p.logger.Debug("ping failed", "error", err)
	}
	render(p, "ping", func(doc view.Lookup, rtt time.Duration) ([]dom.Mutation, bool) {
		return view.Ping(doc, reachable, rtt)
	}, rtt)
	p.update(func(s *Snapshot) {
		s.Reachable = reachable
		s.PingRTT = rtt
	})
	return err
}

// Toggle flips the LED. It is equivalent to Control with [device.ActionToggle].
func (p *Poller) Toggle(ctx context.Context) error {
	return p.Control(ctx, device.ActionToggle)
}

// Control sends an LED action. On success the page is updated in order:
// LED indicator, bulb, success notification, system status, system info.
// On failure an error notification is shown and the page is left as is.
func (p *Poller) Control(ctx context.Context, action device.Action) error {
	if err := action.Validate(); err != nil {
		return err
	}
	resp, err := p.client.Control(ctx, action)
	if err != nil {
		msg := MsgNetworkError
		if errors.Is(err, device.ErrNonSuccess) {
			msg = MsgOperationFailed
		}
		p.logger.Warn("led control failed", "action", action, "error", err)
		p.notify(msg, notify.Error)
		return fmt.Errorf("led %s: %w", action, err)
	}

	render(p, "led", func(doc view.Lookup, on bool) ([]dom.Mutation, bool) {
		return view.LED(doc, on, p.labels)
	}, resp.LEDState)
	p.update(func(s *Snapshot) { s.LEDState = resp.LEDState })
	p.logger.Info("led control", "action", action, "led_state", resp.LEDState)

	// follow-up reads are background refreshes; their failures stay silent
	_ = p.RefreshBulb(ctx)
	p.notify(resp.Message, notify.Success)
	_ = p.RefreshSystem(ctx)
	_ = p.RefreshInfo(ctx)
	return nil
}

func (p *Poller) notify(msg string, kind notify.Kind) {
	if p.notifier == nil {
		return
	}
	if _, err := p.notifier.Show(msg, kind); err != nil {
		p.logger.Debug("notification not shown", "error", err)
	}
}

func (p *Poller) readFailed(what string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	if errors.Is(err, device.ErrTransport) {
		p.logger.Debug("device read failed", "endpoint", what, "error", err)
		return
	}
	p.logger.Warn("device read failed", "endpoint", what, "error", err)
}

// render maps v onto the page. Missing targets abort only this render.
func render[T any](p *Poller, what string, fn func(view.Lookup, T) ([]dom.Mutation, bool), v T) {
	muts, ok := fn(p.doc, v)
	if !ok {
		p.logger.Debug("render skipped, page element missing", "view", what)
		return
	}
	if err := p.doc.Apply(muts...); err != nil {
		p.logger.Debug("render skipped", "view", what, "error", err)
	}
}

func (p *Poller) update(fn func(*Snapshot)) {
	p.mu.Lock()
	fn(&p.snap)
	p.snap.UpdatedAt = p.now()
	snap := p.snap
	p.mu.Unlock()

	for _, cb := range p.callbacks {
		invokeCallbackSafe(cb, snap, p.logger)
	}
}

// invokeCallbackSafe calls a snapshot callback with panic recovery.
func invokeCallbackSafe(cb func(Snapshot), snap Snapshot, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("snapshot callback panicked", "panic", r)
		}
	}()
	cb(snap)
}
