package device

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// StatusSuccess is the envelope status of a successful response.
const StatusSuccess = "success"

var (
	// ErrTransport indicates a network or HTTP-level failure.
	ErrTransport = errors.New("device unreachable")

	// ErrNonSuccess indicates the envelope status was not "success".
	ErrNonSuccess = errors.New("device reported failure")

	// ErrMalformed indicates an unparseable or incomplete body.
	ErrMalformed = errors.New("malformed device response")

	// ErrInvalidAction is returned for LED actions the device does not accept.
	ErrInvalidAction = errors.New("unknown LED action")
)

// Action is an LED command accepted by POST /api/led/{action}.
type Action string

const (
	ActionOn     Action = "on"
	ActionOff    Action = "off"
	ActionToggle Action = "toggle"
)

// Validate returns an error for actions the device does not accept.
func (a Action) Validate() error {
	switch a {
	case ActionOn, ActionOff, ActionToggle:
		return nil
	default:
		return fmt.Errorf("%w %q (expected on, off or toggle)", ErrInvalidAction, string(a))
	}
}

// glowPattern restricts bulb_glow to tokens usable as a CSS class.
var glowPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Meta carries transport details of a decoded response.
type Meta struct {
	StatusCode int
	Latency    time.Duration
}

// LEDResponse is the reply to an LED command.
type LEDResponse struct {
	Meta
	LEDState bool
	Message  string
}

// BulbStatus is the reply of GET /api/bulb/status.
type BulbStatus struct {
	Meta
	Glow       string
	StatusText string
}

// SystemStatus is the reply of GET /api/status.
type SystemStatus struct {
	Meta
	LEDState bool
	FreeHeap uint64
	WiFiRSSI int
}

// SystemInfo is the reply of GET /api/system/info.
type SystemInfo struct {
	Meta
	FreeHeap uint64
	WiFiRSSI int
	UptimeMs uint64
}

// envelope is the common head of every device reply.
type envelope struct {
	Status  *string `json:"status"`
	Message string  `json:"message"`
}

// open checks the transport result and the envelope status, then decodes the
// full body into v.
func open(resp Response, v any) (Meta, error) {
	meta := Meta{StatusCode: resp.StatusCode, Latency: resp.Latency}
	if resp.Error != nil {
		return meta, resp.Error
	}

	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return meta, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Status == nil {
		return meta, fmt.Errorf("%w: missing status field", ErrMalformed)
	}
	if *env.Status != StatusSuccess {
		if env.Message != "" {
			return meta, fmt.Errorf("%w: status %q: %s", ErrNonSuccess, *env.Status, env.Message)
		}
		return meta, fmt.Errorf("%w: status %q", ErrNonSuccess, *env.Status)
	}

	if err := json.Unmarshal(resp.Body, v); err != nil {
		return meta, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return meta, nil
}

func missing(field string) error {
	return fmt.Errorf("%w: missing %s field", ErrMalformed, field)
}

func decodeLED(resp Response) (LEDResponse, error) {
	var raw struct {
		LEDState *bool `json:"led_state"`
		Message  string `json:"message"`
	}
	meta, err := open(resp, &raw)
	if err != nil {
		return LEDResponse{Meta: meta}, err
	}
	if raw.LEDState == nil {
		return LEDResponse{Meta: meta}, missing("led_state")
	}
	return LEDResponse{Meta: meta, LEDState: *raw.LEDState, Message: raw.Message}, nil
}

func decodeBulb(resp Response) (BulbStatus, error) {
	var raw struct {
		Glow       *string `json:"bulb_glow"`
		StatusText *string `json:"status_text"`
	}
	meta, err := open(resp, &raw)
	if err != nil {
		return BulbStatus{Meta: meta}, err
	}
	if raw.Glow == nil {
		return BulbStatus{Meta: meta}, missing("bulb_glow")
	}
	if raw.StatusText == nil {
		return BulbStatus{Meta: meta}, missing("status_text")
	}
	if !glowPattern.MatchString(*raw.Glow) {
		return BulbStatus{Meta: meta}, fmt.Errorf("%w: invalid bulb_glow %q", ErrMalformed, *raw.Glow)
	}
	return BulbStatus{Meta: meta, Glow: *raw.Glow, StatusText: *raw.StatusText}, nil
}

func decodeStatus(resp Response) (SystemStatus, error) {
	var raw struct {
		LEDState *bool   `json:"led_state"`
		FreeHeap *uint64 `json:"free_heap"`
		WiFiRSSI *int    `json:"wifi_rssi"`
	}
	meta, err := open(resp, &raw)
	if err != nil {
		return SystemStatus{Meta: meta}, err
	}
	switch {
	case raw.LEDState == nil:
		return SystemStatus{Meta: meta}, missing("led_state")
	case raw.FreeHeap == nil:
		return SystemStatus{Meta: meta}, missing("free_heap")
	case raw.WiFiRSSI == nil:
		return SystemStatus{Meta: meta}, missing("wifi_rssi")
	}
	return SystemStatus{
		Meta:     meta,
		LEDState: *raw.LEDState,
		FreeHeap: *raw.FreeHeap,
		WiFiRSSI: *raw.WiFiRSSI,
	}, nil
}

func decodeSystemInfo(resp Response) (SystemInfo, error) {
	var raw struct {
		Memory *struct {
			FreeHeap *uint64 `json:"free_heap"`
		} `json:"memory"`
		WiFi *struct {
			RSSI *int `json:"rssi"`
		} `json:"wifi"`
		System *struct {
			Uptime *uint64 `json:"uptime"`
		} `json:"system"`
	}
	meta, err := open(resp, &raw)
	if err != nil {
		return SystemInfo{Meta: meta}, err
	}
	switch {
	case raw.Memory == nil || raw.Memory.FreeHeap == nil:
		return SystemInfo{Meta: meta}, missing("memory.free_heap")
	case raw.WiFi == nil || raw.WiFi.RSSI == nil:
		return SystemInfo{Meta: meta}, missing("wifi.rssi")
	case raw.System == nil || raw.System.Uptime == nil:
		return SystemInfo{Meta: meta}, missing("system.uptime")
	}
	return SystemInfo{
		Meta:     meta,
		FreeHeap: *raw.Memory.FreeHeap,
		WiFiRSSI: *raw.WiFi.RSSI,
		UptimeMs: *raw.System.Uptime,
	}, nil
}
