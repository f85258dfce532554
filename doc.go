// Package ledboard provides an embeddable companion dashboard for a small
// networked LED board.
//
// LEDBoard polls the board's REST API, keeps a server-side model of the
// dashboard page, and streams changes to connected browsers over WebSocket
// or Server-Sent Events. Browser interactions come back as UI events and
// drive the LED control action and the navigation sidebar.
//
// # Quick Start
//
//	lb, _ := ledboard.New(ledboard.WithDevice("http://192.168.1.50"))
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	lb.Start(ctx) // blocks until context is cancelled
//
// # Configuration
//
// LEDBoard uses the functional options pattern for configuration:
//
//	lb, err := ledboard.New(
//	    ledboard.WithDevice("http://esp32.local"),
//	    ledboard.WithDeviceHeaders(map[string]string{"Authorization": "Bearer token"}),
//	    ledboard.WithStatusInterval(time.Second),
//	    ledboard.WithInfoInterval(5*time.Second),
//	    ledboard.WithLabels("On", "Off"),
//	    ledboard.WithPort(9090),
//	)
//
// # Page Binding
//
// The dashboard page is parsed into a document model. Device replies are
// written into fixed element ids (ledState, bulb, filament, bulbStatus,
// systemStatus, heapMemory, wifiRSSI, uptime, pingLatency) and the sidebar
// controller binds to sidebar, sidebarOverlay and .nav-link elements. A
// page supplied with [WithPage] may omit any of them; updates aimed at a
// missing element are skipped.
//
// # Architecture
//
// LEDBoard consists of several internal packages (under internal/):
//
//   - internal/device: Device REST client and reply decoding
//   - internal/dom: Page model with atomic mutations and patch streaming
//   - internal/status: Device reads rendered into the page, LED control
//   - internal/sidebar: Sidebar state machine
//   - internal/notify: Toast notifications with a timed lifecycle
//   - internal/poller: Interval scheduler with panic recovery
//   - internal/server: HTTP routes, SSE and WebSocket streams
//   - dashboard: Embedded page
//
// The internal packages are not part of the public API and may change
// without notice.
package ledboard
