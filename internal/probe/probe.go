// Package probe measures ICMP reachability of the device host.
package probe

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// ErrUnreachable is returned when no echo reply arrives.
var ErrUnreachable = errors.New("host unreachable")

// Defaults for [New].
const (
	DefaultCount   = 3
	DefaultTimeout = 2 * time.Second
)

// Pinger is the subset of probing.Pinger the probe drives.
type Pinger interface {
	RunWithContext(ctx context.Context) error
	Statistics() *probing.Statistics
	SetPrivileged(bool)
}

// PingerFactory creates a configured pinger for one probe.
type PingerFactory func(host string, count int, timeout time.Duration) (Pinger, error)

// Prober pings one host and reports the average round-trip time.
type Prober struct {
	host       string
	count      int
	timeout    time.Duration
	privileged bool
	newPinger  PingerFactory
}

// Option configures a [Prober].
type Option func(*Prober)

// WithCount sets echo requests per probe.
func WithCount(n int) Option {
	return func(p *Prober) {
		if n > 0 {
			p.count = n
		}
	}
}

// WithTimeout bounds one probe.
func WithTimeout(d time.Duration) Option {
	return func(p *Prober) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithPrivileged switches to raw ICMP sockets, which need CAP_NET_RAW.
// The default uses unprivileged UDP pings.
func WithPrivileged(on bool) Option {
	return func(p *Prober) { p.privileged = on }
}

// WithPingerFactory replaces the pinger constructor, for tests.
func WithPingerFactory(f PingerFactory) Option {
	return func(p *Prober) { p.newPinger = f }
}

// New creates a Prober for host.
func New(host string, opts ...Option) (*Prober, error) {
	if host == "" {
		return nil, errors.New("probe host is required")
	}
	p := &Prober{
		host:      host,
		count:     DefaultCount,
		timeout:   DefaultTimeout,
		newPinger: newPinger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// HostFromURL extracts the host name of a device base URL.
func HostFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid device URL: %w", err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("device URL %q has no host", raw)
	}
	return u.Hostname(), nil
}

// Host returns the probed host.
func (p *Prober) Host() string {
	return p.host
}

// Probe sends the configured echo requests and returns the average RTT.
func (p *Prober) Probe(ctx context.Context) (time.Duration, error) {
	pinger, err := p.newPinger(p.host, p.count, p.timeout)
	if err != nil {
		return 0, fmt.Errorf("ping %s: %w", p.host, err)
	}
	pinger.SetPrivileged(p.privileged)

	if err := pinger.RunWithContext(ctx); err != nil {
		return 0, fmt.Errorf("ping %s: %w", p.host, err)
	}
	stats := pinger.Statistics()
	if stats == nil || stats.PacketsRecv == 0 {
		return 0, fmt.Errorf("ping %s: %w", p.host, ErrUnreachable)
	}
	return stats.AvgRtt, nil
}

func newPinger(host string, count int, timeout time.Duration) (Pinger, error) {
	p, err := probing.NewPinger(host)
	if err != nil {
		return nil, err
	}
	p.Count = count
	p.Timeout = timeout
	return p, nil
}
