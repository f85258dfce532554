// Package config provides YAML configuration parsing for LEDBoard.
//
// This package enables running LEDBoard as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	title: Workshop Board
//	port: 8080
//
//	device:
//	  url: http://${LED_HOST:-192.168.1.50}
//	  timeout: 2s
//	  headers:
//	    Authorization: Bearer ${LED_TOKEN}
//
//	poll:
//	  status: 1s
//	  bulb: 1s
//	  info: 5s
//
//	labels:
//	  on: 開啟
//	  off: 關閉
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Interval bounds for every periodic read.
const (
	minInterval = 100 * time.Millisecond
	maxInterval = time.Hour
)

// Defaults applied by [Parse] to zero fields.
const (
	DefaultPort           = 8080
	DefaultStatusInterval = time.Second
	DefaultBulbInterval   = time.Second
	DefaultInfoInterval   = 5 * time.Second
	DefaultTimeout        = 2 * time.Second
	DefaultBreakpoint     = 768
	DefaultNavCloseDelay  = 300 * time.Millisecond
	DefaultPingInterval   = 10 * time.Second
)

// Config is the root configuration structure for LEDBoard.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the dashboard title. Defaults to "LED Dashboard" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	Device  DeviceConfig  `yaml:"device"`
	Poll    PollConfig    `yaml:"poll"`
	Sidebar SidebarConfig `yaml:"sidebar"`
	Labels  LabelsConfig  `yaml:"labels"`
	Ping    PingConfig    `yaml:"ping"`
	Log     LogConfig     `yaml:"log"`

	// Page is an optional path to a replacement dashboard page.
	Page string `yaml:"page"`
}

// DeviceConfig locates the LED board.
type DeviceConfig struct {
	// URL is the board's base URL.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url"`

	// Timeout bounds each request. Defaults to 2s.
	Timeout Duration `yaml:"timeout"`

	// Headers are sent with every request. Values support environment
	// variable substitution.
	Headers map[string]string `yaml:"headers"`
}

// PollConfig holds the periodic read intervals.
type PollConfig struct {
	Status Duration `yaml:"status"`
	Bulb   Duration `yaml:"bulb"`
	Info   Duration `yaml:"info"`
}

// SidebarConfig tunes the responsive sidebar.
type SidebarConfig struct {
	// Breakpoint is the viewport width in pixels below which the sidebar
	// is a mobile overlay. Defaults to 768.
	Breakpoint int `yaml:"breakpoint"`

	// NavCloseDelay is how long the overlay stays open after a nav link
	// is followed. Defaults to 300ms.
	NavCloseDelay Duration `yaml:"nav_close_delay"`
}

// LabelsConfig sets the words shown for the LED state. Both or neither.
type LabelsConfig struct {
	On  string `yaml:"on"`
	Off string `yaml:"off"`
}

// PingConfig enables the ICMP reachability probe.
type PingConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Interval   Duration `yaml:"interval"`
	Privileged bool     `yaml:"privileged"`
}

// LogConfig selects the CLI logger. The LEDBOARD_LOG_LEVEL environment
// variable overrides Level.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		sub := envVarPattern.FindStringSubmatch(match)
		if len(sub) < 2 {
			return match
		}

		name := sub[1]
		hasDefault := len(sub) > 2 && sub[2] != ""

		value, exists := os.LookupEnv(name)
		if exists {
			return value
		}
		if hasDefault {
			return sub[3]
		}
		firstErr = fmt.Errorf("environment variable %q is not set", name)
		return match
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in the device URL and header values.
// Zero fields receive the package defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Device.Timeout == 0 {
		c.Device.Timeout = Duration(DefaultTimeout)
	}
	if c.Poll.Status == 0 {
		c.Poll.Status = Duration(DefaultStatusInterval)
	}
	if c.Poll.Bulb == 0 {
		c.Poll.Bulb = Duration(DefaultBulbInterval)
	}
	if c.Poll.Info == 0 {
		c.Poll.Info = Duration(DefaultInfoInterval)
	}
	if c.Sidebar.Breakpoint == 0 {
		c.Sidebar.Breakpoint = DefaultBreakpoint
	}
	if c.Sidebar.NavCloseDelay == 0 {
		c.Sidebar.NavCloseDelay = Duration(DefaultNavCloseDelay)
	}
	if c.Ping.Enabled && c.Ping.Interval == 0 {
		c.Ping.Interval = Duration(DefaultPingInterval)
	}
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.Device.URL == "" {
		return errors.New("device.url is required")
	}
	expanded, err := expandEnvVars(c.Device.URL)
	if err != nil {
		return fmt.Errorf("device.url: %w", err)
	}
	c.Device.URL = expanded

	u, err := url.Parse(c.Device.URL)
	if err != nil {
		return fmt.Errorf("device.url: invalid url: %w", err)
	}
	if u.Scheme == "" {
		return errors.New("device.url: url must have a scheme (http:// or https://)")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("device.url: url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("device.url: url must have a host")
	}

	for k, v := range c.Device.Headers {
		if k == "" {
			return errors.New("device.headers: header name cannot be empty")
		}
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("device.headers[%s]: %w", k, err)
		}
		c.Device.Headers[k] = expanded
	}

	if d := c.Device.Timeout.Duration(); d < minInterval {
		return fmt.Errorf("device.timeout must be at least %s, got %s", minInterval, d)
	}

	intervals := []struct {
		name string
		d    Duration
	}{
		{"poll.status", c.Poll.Status},
		{"poll.bulb", c.Poll.Bulb},
		{"poll.info", c.Poll.Info},
	}
	if c.Ping.Enabled {
		intervals = append(intervals, struct {
			name string
			d    Duration
		}{"ping.interval", c.Ping.Interval})
	}
	for _, iv := range intervals {
		if iv.d.Duration() < minInterval {
			return fmt.Errorf("%s must be at least %s, got %s", iv.name, minInterval, iv.d.Duration())
		}
		if iv.d.Duration() > maxInterval {
			return fmt.Errorf("%s must not exceed %s, got %s", iv.name, maxInterval, iv.d.Duration())
		}
	}

	if c.Sidebar.Breakpoint < 0 {
		return fmt.Errorf("sidebar.breakpoint must be positive, got %d", c.Sidebar.Breakpoint)
	}
	if c.Sidebar.NavCloseDelay < 0 {
		return fmt.Errorf("sidebar.nav_close_delay cannot be negative, got %s", c.Sidebar.NavCloseDelay.Duration())
	}

	if (c.Labels.On == "") != (c.Labels.Off == "") {
		return errors.New("labels: on and off must be set together")
	}

	switch c.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", c.Log.Format)
	}

	return nil
}
