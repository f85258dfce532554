// Package simulator serves the LED device REST API for local development.
//
// The simulated board holds one LED. Its free heap tracks host memory
// pressure scaled onto a small heap budget, so the dashboard shows live,
// moving numbers without real hardware.
package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/v3/mem"
)

// HeapBudget is the simulated total heap in bytes.
const HeapBudget = 320 * 1024

// MemorySource reports host memory utilization in percent.
type MemorySource func(ctx context.Context) (float64, error)

// Simulator is an in-memory LED board.
type Simulator struct {
	logger  *slog.Logger
	memory  MemorySource
	latency time.Duration
	rssi    int
	now     func() time.Time
	started time.Time

	mu        sync.Mutex
	ledOn     bool
	requests  int
	failEvery int
	rng       *rand.Rand
}

// Option configures a [Simulator].
type Option func(*Simulator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulator) { s.logger = l }
}

// WithLatency delays every reply.
func WithLatency(d time.Duration) Option {
	return func(s *Simulator) { s.latency = d }
}

// WithFailEvery makes every nth request reply with a non-success envelope.
func WithFailEvery(n int) Option {
	return func(s *Simulator) { s.failEvery = n }
}

// WithMemorySource replaces the host memory reader.
func WithMemorySource(m MemorySource) Option {
	return func(s *Simulator) { s.memory = m }
}

// WithClock replaces the time source used for uptime.
func WithClock(now func() time.Time) Option {
	return func(s *Simulator) { s.now = now }
}

// WithSeed fixes the Wi-Fi jitter sequence.
func WithSeed(seed int64) Option {
	return func(s *Simulator) { s.rng = rand.New(rand.NewSource(seed)) }
}

// New creates a simulator with the LED off.
func New(opts ...Option) *Simulator {
	s := &Simulator{
		logger: slog.Default(),
		memory: hostMemory,
		rssi:   -60,
		now:    time.Now,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.started = s.now()
	return s
}

func hostMemory(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get memory stats: %w", err)
	}
	return vm.UsedPercent, nil
}

// LED reports the simulated LED state.
func (s *Simulator) LED() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledOn
}

// Handler returns the device API routes.
func (s *Simulator) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/led/{action}", s.handleLED).Methods(http.MethodPost)
	r.HandleFunc("/api/bulb/status", s.handleBulb).Methods(http.MethodGet)
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/system/info", s.handleInfo).Methods(http.MethodGet)
	r.Use(s.middleware)
	return r
}

// Serve listens on ln until ctx is cancelled.
func (s *Simulator) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// middleware applies latency and scheduled failures.
func (s *Simulator) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.latency > 0 {
			select {
			case <-time.After(s.latency):
			case <-r.Context().Done():
				return
			}
		}

		s.mu.Lock()
		s.requests++
		fail := s.failEvery > 0 && s.requests%s.failEvery == 0
		s.mu.Unlock()

		if fail {
			s.logger.Info("simulated failure", "path", r.URL.Path)
			s.write(w, map[string]any{"status": "error", "message": "simulated failure"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Simulator) handleLED(w http.ResponseWriter, r *http.Request) {
	action := mux.Vars(r)["action"]

	s.mu.Lock()
	switch action {
	case "on":
		s.ledOn = true
	case "off":
		s.ledOn = false
	case "toggle":
		s.ledOn = !s.ledOn
	default:
		s.mu.Unlock()
		s.write(w, map[string]any{"status": "error", "message": "unknown action " + action})
		return
	}
	on := s.ledOn
	s.mu.Unlock()

	s.logger.Info("led changed", "action", action, "led_state", on)
	msg := "LED turned off"
	if on {
		msg = "LED turned on"
	}
	s.write(w, map[string]any{"status": "success", "led_state": on, "message": msg})
}

func (s *Simulator) handleBulb(w http.ResponseWriter, _ *http.Request) {
	glow, text := "off", "Bulb is off"
	if s.LED() {
		glow, text = "bright", "Bulb is on"
	}
	s.write(w, map[string]any{"status": "success", "bulb_glow": glow, "status_text": text})
}

func (s *Simulator) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.write(w, map[string]any{
		"status":    "success",
		"led_state": s.LED(),
		"free_heap": s.freeHeap(r.Context()),
		"wifi_rssi": s.signal(),
	})
}

func (s *Simulator) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.write(w, map[string]any{
		"status": "success",
		"memory": map[string]any{"free_heap": s.freeHeap(r.Context())},
		"wifi":   map[string]any{"rssi": s.signal()},
		"system": map[string]any{"uptime": s.now().Sub(s.started).Milliseconds()},
	})
}

// freeHeap scales host memory pressure onto the simulated heap.
func (s *Simulator) freeHeap(ctx context.Context) uint64 {
	used, err := s.memory(ctx)
	if err != nil {
		s.logger.Debug("memory source failed", "error", err)
		used = 50
	}
	if used < 0 {
		used = 0
	} else if used > 100 {
		used = 100
	}
	return uint64(float64(HeapBudget) * (100 - used) / 100)
}

// signal returns the base RSSI with up to ±3 dBm jitter.
func (s *Simulator) signal() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rssi + s.rng.Intn(7) - 3
}

func (s *Simulator) write(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}
