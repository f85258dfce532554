// Package discovery finds LED devices on the local network over mDNS and
// advertises the simulator the same way.
package discovery

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceType is the mDNS service type devices advertise.
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain.
	ServiceDomain = "local."

	// DefaultScanTimeout bounds a scan.
	DefaultScanTimeout = 5 * time.Second

	// DefaultPort is assumed when an entry carries no port.
	DefaultPort = 80

	// APIKey and APIValue form the TXT record that marks a service as
	// speaking the LED REST API.
	APIKey   = "api"
	APIValue = "led-v1"
)

// Device is one discovered service.
type Device struct {
	Instance     string
	Hostname     string
	IP           string
	Port         int
	Metadata     map[string]string
	DiscoveredAt time.Time
}

// URL returns the device's base URL.
func (d Device) URL() string {
	return "http://" + net.JoinHostPort(d.IP, strconv.Itoa(d.Port))
}

// IsLED reports whether the device advertises the LED API.
func (d Device) IsLED() bool {
	return d.Metadata[APIKey] == APIValue
}

// Scanner browses for devices.
type Scanner struct {
	// Timeout is the maximum time to wait for device discovery.
	Timeout time.Duration

	// All includes every HTTP service, not only LED devices.
	All bool
}

// NewScanner creates a new mDNS scanner with default settings.
func NewScanner() *Scanner {
	return &Scanner{Timeout: DefaultScanTimeout}
}

// Scan browses until the timeout or ctx ends and returns the devices seen,
// sorted by instance name.
func (s *Scanner) Scan(ctx context.Context) ([]Device, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	collected := make(chan []Device, 1)
	go func() {
		seen := make(map[string]Device)
		for entry := range entries {
			d, ok := parseServiceEntry(entry)
			if !ok || (!s.All && !d.IsLED()) {
				continue
			}
			seen[d.Instance] = d
		}
		out := make([]Device, 0, len(seen))
		for _, d := range seen {
			out = append(out, d)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Instance < out[j].Instance })
		collected <- out
	}()

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	// the resolver closes entries once ctx is done
	<-ctx.Done()
	return <-collected, nil
}

// parseServiceEntry converts a zeroconf entry, preferring IPv4.
func parseServiceEntry(entry *zeroconf.ServiceEntry) (Device, bool) {
	if entry == nil {
		return Device{}, false
	}

	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return Device{}, false
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	metadata := make(map[string]string, len(entry.Text))
	for _, txt := range entry.Text {
		k, v, _ := strings.Cut(txt, "=")
		metadata[k] = v
	}

	return Device{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}, true
}

// Advertise registers an LED API service under instance on port. The
// returned function withdraws it.
func Advertise(instance string, port int, extra ...string) (func(), error) {
	txt := append([]string{APIKey + "=" + APIValue}, extra...)
	server, err := zeroconf.Register(instance, ServiceType, ServiceDomain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}
	return server.Shutdown, nil
}
