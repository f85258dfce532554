package ledboard

import (
	"time"

	"github.com/jpalmerr/ledboard/internal/status"
)

// BulbGlow is the glow level reported by the device.
//
// Devices may report other tokens; any value made of letters, digits,
// dashes and underscores is accepted and used as a CSS class.
type BulbGlow string

const (
	GlowOff    BulbGlow = "off"
	GlowDim    BulbGlow = "dim"
	GlowBright BulbGlow = "bright"
)

// String returns the glow token.
func (g BulbGlow) String() string {
	return string(g)
}

// Snapshot is the merged latest device state.
//
// Each successful read replaces the fields it carries; fields from other
// endpoints keep their last value. UpdatedAt is the time of the most recent
// successful read.
type Snapshot struct {
	LEDState      bool          `json:"led_state"`
	BulbGlow      BulbGlow      `json:"bulb_glow"`
	StatusText    string        `json:"status_text"`
	FreeHeapBytes uint64        `json:"free_heap_bytes"`
	WiFiRSSIDBm   int           `json:"wifi_rssi_dbm"`
	UptimeMs      uint64        `json:"uptime_ms"`
	Reachable     bool          `json:"reachable"`
	PingRTT       time.Duration `json:"ping_rtt"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func fromStatus(s status.Snapshot) Snapshot {
	return Snapshot{
		LEDState:      s.LEDState,
		BulbGlow:      BulbGlow(s.BulbGlow),
		StatusText:    s.StatusText,
		FreeHeapBytes: s.FreeHeapBytes,
		WiFiRSSIDBm:   s.WiFiRSSIDBm,
		UptimeMs:      s.UptimeMs,
		Reachable:     s.Reachable,
		PingRTT:       s.PingRTT,
		UpdatedAt:     s.UpdatedAt,
	}
}
