package ledboard

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"time"
)

// lbConfig holds mutable state during LEDBoard construction.
type lbConfig struct {
	deviceURL      string
	deviceHeaders  map[string]string
	deviceTimeout  time.Duration
	statusInterval time.Duration
	bulbInterval   time.Duration
	infoInterval   time.Duration
	port           int
	title          string
	logger         *slog.Logger
	breakpoint     int
	navCloseDelay  time.Duration
	labelOn        string
	labelOff       string
	pageFS         fs.FS
	pagePath       string
	pingInterval   time.Duration
	pingPrivileged bool
	callbacks      []func(Snapshot)
}

// Option is a function that configures a [LEDBoard] instance during construction.
//
// Options return an error if validation fails.
type Option func(*lbConfig) error

// WithDevice sets the device base URL, e.g. "http://192.168.1.50".
// Required.
func WithDevice(rawURL string) Option {
	return func(cfg *lbConfig) error {
		u, err := url.Parse(rawURL)
		if err != nil {
			return fmt.Errorf("invalid device URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("device URL must use http or https, got %q", u.Scheme)
		}
		if u.Host == "" {
			return errors.New("device URL must have a host")
		}
		cfg.deviceURL = rawURL
		return nil
	}
}

// WithDeviceHeaders adds headers, such as an auth token, to every device
// request. Can be called multiple times; later values win.
func WithDeviceHeaders(headers map[string]string) Option {
	return func(cfg *lbConfig) error {
		if cfg.deviceHeaders == nil {
			cfg.deviceHeaders = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			if k == "" {
				return errors.New("header name cannot be empty")
			}
			cfg.deviceHeaders[k] = v
		}
		return nil
	}
}

// WithDeviceTimeout bounds each device request. Defaults to 2 seconds.
//
// Returns an error if the duration is zero or negative.
func WithDeviceTimeout(d time.Duration) Option {
	return func(cfg *lbConfig) error {
		if d <= 0 {
			return errors.New("device timeout must be positive")
		}
		cfg.deviceTimeout = d
		return nil
	}
}

func positiveInterval(name string, d time.Duration, dst *time.Duration) error {
	if d < minInterval {
		return fmt.Errorf("%s interval must be at least %s, got %s", name, minInterval, d)
	}
	*dst = d
	return nil
}

// WithStatusInterval sets how often /api/status is read. Defaults to 1 second.
func WithStatusInterval(d time.Duration) Option {
	return func(cfg *lbConfig) error {
		return positiveInterval("status", d, &cfg.statusInterval)
	}
}

// WithBulbInterval sets how often /api/bulb/status is read. Defaults to 1 second.
func WithBulbInterval(d time.Duration) Option {
	return func(cfg *lbConfig) error {
		return positiveInterval("bulb", d, &cfg.bulbInterval)
	}
}

// WithInfoInterval sets how often /api/system/info is read. Defaults to 5 seconds.
func WithInfoInterval(d time.Duration) Option {
	return func(cfg *lbConfig) error {
		return positiveInterval("info", d, &cfg.infoInterval)
	}
}

// WithPort sets the HTTP port for the dashboard server.
//
// Defaults to 8080 if not specified. Returns an error if the port is outside
// the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *lbConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithTitle sets the dashboard title displayed in the browser tab and header.
func WithTitle(title string) Option {
	return func(cfg *lbConfig) error {
		cfg.title = title
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. If not specified, [slog.Default]
// is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *lbConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithBreakpoint sets the viewport width in pixels below which the sidebar
// behaves as a mobile overlay. Defaults to 768.
func WithBreakpoint(px int) Option {
	return func(cfg *lbConfig) error {
		if px <= 0 {
			return errors.New("breakpoint must be positive")
		}
		cfg.breakpoint = px
		return nil
	}
}

// WithNavCloseDelay sets how long the mobile overlay stays open after a
// navigation link is followed. Defaults to 300ms.
func WithNavCloseDelay(d time.Duration) Option {
	return func(cfg *lbConfig) error {
		if d <= 0 {
			return errors.New("nav close delay must be positive")
		}
		cfg.navCloseDelay = d
		return nil
	}
}

// WithLabels sets the words shown for the LED state.
//
// Example:
//
//	lb, err := ledboard.New(
//	    ledboard.WithDevice(url),
//	    ledboard.WithLabels("開啟", "關閉"),
//	)
func WithLabels(on, off string) Option {
	return func(cfg *lbConfig) error {
		if on == "" || off == "" {
			return errors.New("labels cannot be empty")
		}
		cfg.labelOn, cfg.labelOff = on, off
		return nil
	}
}

// WithPage replaces the embedded dashboard page with name read from fsys.
// The page is read when [LEDBoard.Start] runs.
func WithPage(fsys fs.FS, name string) Option {
	return func(cfg *lbConfig) error {
		if fsys == nil || name == "" {
			return errors.New("page filesystem and name are required")
		}
		cfg.pageFS, cfg.pagePath = fsys, name
		return nil
	}
}

// WithPing enables an ICMP reachability probe of the device host every
// interval. Privileged selects raw sockets over unprivileged UDP pings.
func WithPing(interval time.Duration, privileged bool) Option {
	return func(cfg *lbConfig) error {
		if err := positiveInterval("ping", interval, &cfg.pingInterval); err != nil {
			return err
		}
		cfg.pingPrivileged = privileged
		return nil
	}
}

// WithSnapshotCallback registers a function called after every successful
// device read with the merged [Snapshot].
//
// Callbacks run on the polling goroutine and must be non-blocking. Panics
// within callbacks are recovered and logged.
//
// Nil callbacks are silently ignored.
func WithSnapshotCallback(cb func(Snapshot)) Option {
	return func(cfg *lbConfig) error {
		if cb == nil {
			return nil
		}
		cfg.callbacks = append(cfg.callbacks, cb)
		return nil
	}
}
