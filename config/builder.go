package config

import (
	"os"
	"path/filepath"

	"github.com/jpalmerr/ledboard"
)

// BuildOptions converts parsed configuration into SDK options.
//
// The logger is left to the caller. A relative Page path resolves
// against the working directory.
func BuildOptions(cfg *Config) []ledboard.Option {
	opts := []ledboard.Option{
		ledboard.WithDevice(cfg.Device.URL),
		ledboard.WithDeviceTimeout(cfg.Device.Timeout.Duration()),
		ledboard.WithPort(cfg.Port),
		ledboard.WithStatusInterval(cfg.Poll.Status.Duration()),
		ledboard.WithBulbInterval(cfg.Poll.Bulb.Duration()),
		ledboard.WithInfoInterval(cfg.Poll.Info.Duration()),
		ledboard.WithBreakpoint(cfg.Sidebar.Breakpoint),
		ledboard.WithNavCloseDelay(cfg.Sidebar.NavCloseDelay.Duration()),
	}

	if cfg.Title != "" {
		opts = append(opts, ledboard.WithTitle(cfg.Title))
	}
	if len(cfg.Device.Headers) > 0 {
		opts = append(opts, ledboard.WithDeviceHeaders(cfg.Device.Headers))
	}
	if cfg.Labels.On != "" {
		opts = append(opts, ledboard.WithLabels(cfg.Labels.On, cfg.Labels.Off))
	}
	if cfg.Page != "" {
		dir, name := filepath.Split(cfg.Page)
		if dir == "" {
			dir = "."
		}
		opts = append(opts, ledboard.WithPage(os.DirFS(dir), name))
	}
	if cfg.Ping.Enabled {
		opts = append(opts, ledboard.WithPing(cfg.Ping.Interval.Duration(), cfg.Ping.Privileged))
	}

	return opts
}
