package ledboard

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/jpalmerr/ledboard/dashboard"
	"github.com/jpalmerr/ledboard/internal/clock"
	"github.com/jpalmerr/ledboard/internal/device"
	"github.com/jpalmerr/ledboard/internal/dom"
	"github.com/jpalmerr/ledboard/internal/notify"
	"github.com/jpalmerr/ledboard/internal/poller"
	"github.com/jpalmerr/ledboard/internal/probe"
	"github.com/jpalmerr/ledboard/internal/server"
	"github.com/jpalmerr/ledboard/internal/sidebar"
	"github.com/jpalmerr/ledboard/internal/status"
	"github.com/jpalmerr/ledboard/internal/ui"
	"github.com/jpalmerr/ledboard/internal/view"
)

const (
	defaultPort           = 8080
	defaultStatusInterval = time.Second
	defaultBulbInterval   = time.Second
	defaultInfoInterval   = 5 * time.Second
	defaultBreakpoint     = sidebar.DefaultBreakpoint
	defaultNavCloseDelay  = sidebar.DefaultNavCloseDelay
	minInterval           = 100 * time.Millisecond
)

// LEDBoard is the main orchestrator for device polling and dashboard serving.
//
// LEDBoard reads the device on fixed intervals, renders each reply into the
// page model, and serves the page with live updates. It is created using
// [New] with functional options and started with [LEDBoard.Start].
//
// The typical lifecycle is:
//
//	lb, err := ledboard.New(ledboard.WithDevice("http://192.168.1.50"))
//	if err != nil {
//	    slog.Error("failed to create ledboard", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	lb.Start(ctx) // blocks until context cancelled
//
// The caller controls the lifecycle via the context. Cancel the context to
// trigger graceful shutdown.
type LEDBoard struct {
	cfg    lbConfig
	logger *slog.Logger

	mu      sync.RWMutex
	running *status.Poller
}

// New creates a new [LEDBoard] instance with the given options.
//
// A device URL must be configured via [WithDevice]. Other options have
// sensible defaults:
//   - Status and bulb interval: 1 second
//   - Info interval: 5 seconds
//   - Port: 8080
//   - Sidebar breakpoint: 768px, nav close delay: 300ms
//
// Returns an error if no device is configured or if any option is invalid.
func New(opts ...Option) (*LEDBoard, error) {
	cfg := lbConfig{
		deviceTimeout:  device.DefaultTimeout,
		statusInterval: defaultStatusInterval,
		bulbInterval:   defaultBulbInterval,
		infoInterval:   defaultInfoInterval,
		port:           defaultPort,
		title:          server.DefaultTitle,
		breakpoint:     defaultBreakpoint,
		navCloseDelay:  defaultNavCloseDelay,
		labelOn:        view.DefaultLabels().On,
		labelOff:       view.DefaultLabels().Off,
		pageFS:         dashboard.Assets,
		pagePath:       dashboard.PagePath,
	}

	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if cfg.deviceURL == "" {
		return nil, errors.New("device URL is required")
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &LEDBoard{cfg: cfg, logger: logger}, nil
}

// Start begins polling the device and serving the dashboard.
//
// Start is a blocking call that runs until the provided context is cancelled.
// During execution:
//
//   - The page is parsed and every device read is applied to it
//   - All reads run immediately, then at their configured intervals
//   - The HTTP server starts on the configured port
//   - Browser events drive the LED control and each tab's own sidebar
//
// Returns nil on graceful shutdown. Returns an error if the page cannot be
// loaded or the HTTP server fails to start.
func (lb *LEDBoard) Start(ctx context.Context) error {
	lb.logger.Info("ledboard starting", "device", lb.cfg.deviceURL)
	lb.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", lb.cfg.port))

	if ctx.Err() != nil {
		return nil
	}

	doc, err := loadPage(lb.cfg.pageFS, lb.cfg.pagePath, lb.cfg.title)
	if err != nil {
		return err
	}

	client, err := device.NewClient(lb.cfg.deviceURL,
		device.WithHeaders(lb.cfg.deviceHeaders),
		device.WithTimeout(lb.cfg.deviceTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create device client: %w", err)
	}
	defer client.Close()

	notifier := notify.New(doc, clock.Real{}, lb.logger)
	defer notifier.Close()

	// every browser tab gets its own sidebar; the streams close them
	newSidebar := func(page *dom.Session) ui.Sidebar {
		return sidebar.New(page, sidebar.Config{
			Breakpoint:    lb.cfg.breakpoint,
			NavCloseDelay: lb.cfg.navCloseDelay,
			Logger:        lb.logger,
		})
	}

	var prober status.Prober
	if lb.cfg.pingInterval > 0 {
		p, err := lb.newProber()
		if err != nil {
			return err
		}
		prober = p
	}

	callbacks := make([]func(status.Snapshot), 0, len(lb.cfg.callbacks))
	for _, cb := range lb.cfg.callbacks {
		callbacks = append(callbacks, func(s status.Snapshot) { cb(fromStatus(s)) })
	}

	p, err := status.New(status.Config{
		Client:     client,
		Document:   doc,
		Notifier:   notifier,
		Prober:     prober,
		Labels:     view.Labels{On: lb.cfg.labelOn, Off: lb.cfg.labelOff},
		Logger:     lb.logger,
		OnSnapshot: callbacks,
	})
	if err != nil {
		return err
	}
	lb.mu.Lock()
	lb.running = p
	lb.mu.Unlock()

	tasks := p.Tasks(status.Intervals{
		Status: lb.cfg.statusInterval,
		Bulb:   lb.cfg.bulbInterval,
		Info:   lb.cfg.infoInterval,
		Ping:   lb.cfg.pingInterval,
	})
	scheduler := poller.NewScheduler(tasks, lb.cfg.statusInterval, lb.logger)
	scheduler.Start(ctx)

	// track the results consumer goroutine to ensure clean shutdown
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for result := range scheduler.Results() {
			logAttrs := []any{
				"task", result.Task,
				"duration_ms", result.Duration.Milliseconds(),
			}
			if result.Error != nil && !errors.Is(result.Error, context.Canceled) {
				lb.logger.Debug("refresh failed", append(logAttrs, "error", result.Error.Error())...)
			} else {
				lb.logger.Debug("refresh completed", logAttrs...)
			}
		}
	}()

	cleanup := func() {
		scheduler.Stop() // closes results channel
		wg.Wait()
	}

	dispatcher := ui.NewDispatcher(doc, p, newSidebar, lb.logger)
	httpServer := server.NewServer(doc, dispatcher, func() any { return fromStatus(p.Snapshot()) }, lb.cfg.port, lb.logger)
	if err := httpServer.Start(ctx); err != nil {
		cleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	<-ctx.Done()
	cleanup()
	lb.logger.Info("ledboard stopped")
	return nil
}

func (lb *LEDBoard) newProber() (*probe.Prober, error) {
	host, err := probe.HostFromURL(lb.cfg.deviceURL)
	if err != nil {
		return nil, err
	}
	return probe.New(host, probe.WithPrivileged(lb.cfg.pingPrivileged))
}

func loadPage(fsys fs.FS, path, title string) (*dom.Document, error) {
	markup, err := server.PageMarkup(fsys, path, title)
	if err != nil {
		return nil, fmt.Errorf("failed to load page: %w", err)
	}
	doc, err := dom.ParseString(markup)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return doc, nil
}

// Snapshot returns the latest merged device state. Before [LEDBoard.Start]
// has wired the poller, it returns the zero Snapshot.
func (lb *LEDBoard) Snapshot() Snapshot {
	lb.mu.RLock()
	p := lb.running
	lb.mu.RUnlock()
	if p == nil {
		return Snapshot{}
	}
	return fromStatus(p.Snapshot())
}

// Device returns the configured device base URL.
func (lb *LEDBoard) Device() string {
	return lb.cfg.deviceURL
}

// Port returns the configured HTTP port for the dashboard server.
func (lb *LEDBoard) Port() int {
	return lb.cfg.port
}

// StatusInterval returns the configured interval between status reads.
func (lb *LEDBoard) StatusInterval() time.Duration {
	return lb.cfg.statusInterval
}
