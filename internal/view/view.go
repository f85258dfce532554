// Package view maps device payloads onto dashboard elements.
//
// Every function here is pure: it reads the page structure through a
// [Lookup], and returns the mutations to apply together with ok=false when
// any of its target elements is absent. Nothing is written; the caller
// commits the batch with dom.Document.Apply so a render either lands
// completely or not at all.
package view

import (
	"fmt"
	"html"
	"strconv"
	"time"

	"github.com/chasefleming/elem-go"

	"github.com/jpalmerr/ledboard/internal/device"
	"github.com/jpalmerr/ledboard/internal/dom"
)

// Element ids and classes the views bind to.
const (
	IDLEDState      = "ledState"
	ClassLEDStatus  = "led-status"
	IDBulb          = "bulb"
	IDFilament      = "filament"
	IDBulbStatus    = "bulbStatus"
	IDSystemStatus  = "systemStatus"
	IDHeapMemory    = "heapMemory"
	IDWiFiRSSI      = "wifiRSSI"
	IDUptime        = "uptime"
	IDPingLatency   = "pingLatency"
	ledClassOn      = "green"
	ledClassOff     = "red"
	bulbBaseClass   = "bulb"
	filamentBaseCls = "filament"
)

// Lookup is the read side of the page model.
type Lookup interface {
	ByID(id string) (dom.Element, bool)
	First(class string) (dom.Element, bool)
}

// Labels are the user-facing words for the LED state.
type Labels struct {
	On  string
	Off string
}

// DefaultLabels returns English labels.
func DefaultLabels() Labels {
	return Labels{On: "On", Off: "Off"}
}

func (l Labels) state(on bool) string {
	if on {
		return l.On
	}
	return l.Off
}

// LED renders the LED state text and the status indicator class.
func LED(doc Lookup, on bool, labels Labels) ([]dom.Mutation, bool) {
	text, ok1 := doc.ByID(IDLEDState)
	indicator, ok2 := doc.First(ClassLEDStatus)
	if !ok1 || !ok2 {
		return nil, false
	}

	class := ledClassOff
	if on {
		class = ledClassOn
	}
	return []dom.Mutation{
		dom.SetText(text.Ref, labels.state(on)),
		dom.SetClassName(indicator.Ref, ClassLEDStatus+" "+class),
	}, true
}

// Bulb renders the bulb glow classes and the status text.
func Bulb(doc Lookup, st device.BulbStatus) ([]dom.Mutation, bool) {
	bulb, ok1 := doc.ByID(IDBulb)
	filament, ok2 := doc.ByID(IDFilament)
	status, ok3 := doc.ByID(IDBulbStatus)
	if !ok1 || !ok2 || !ok3 {
		return nil, false
	}

	return []dom.Mutation{
		dom.SetClassName(bulb.Ref, bulbBaseClass+" "+st.Glow),
		dom.SetClassName(filament.Ref, filamentBaseCls+" "+st.Glow),
		dom.SetText(status.Ref, st.StatusText),
	}, true
}

// SystemStatus renders the three-line summary block.
func SystemStatus(doc Lookup, st device.SystemStatus, labels Labels) ([]dom.Mutation, bool) {
	block, ok := doc.ByID(IDSystemStatus)
	if !ok {
		return nil, false
	}

	fragment := elem.P(nil, elem.Text(html.EscapeString("LED state: "+labels.state(st.LEDState)))).Render() +
		elem.P(nil, elem.Text(fmt.Sprintf("Free memory: %d bytes", st.FreeHeap))).Render() +
		elem.P(nil, elem.Text(fmt.Sprintf("Wi-Fi signal: %d dBm", st.WiFiRSSI))).Render()

	return []dom.Mutation{dom.SetHTML(block.Ref, fragment)}, true
}

// SystemInfo renders heap, signal and uptime fields.
func SystemInfo(doc Lookup, info device.SystemInfo) ([]dom.Mutation, bool) {
	heap, ok1 := doc.ByID(IDHeapMemory)
	rssi, ok2 := doc.ByID(IDWiFiRSSI)
	uptime, ok3 := doc.ByID(IDUptime)
	if !ok1 || !ok2 || !ok3 {
		return nil, false
	}

	return []dom.Mutation{
		dom.SetText(heap.Ref, FormatBytes(info.FreeHeap)),
		dom.SetText(rssi.Ref, strconv.Itoa(info.WiFiRSSI)+" dBm"),
		dom.SetText(uptime.Ref, FormatUptime(info.UptimeMs)),
	}, true
}

// Ping renders the round-trip time, or "unreachable" when reachable is false.
func Ping(doc Lookup, reachable bool, rtt time.Duration) ([]dom.Mutation, bool) {
	el, ok := doc.ByID(IDPingLatency)
	if !ok {
		return nil, false
	}
	text := "unreachable"
	if reachable {
		text = fmt.Sprintf("%d ms", rtt.Milliseconds())
	}
	return []dom.Mutation{dom.SetText(el.Ref, text)}, true
}

// FormatBytes renders a heap size the way the device reports it.
func FormatBytes(n uint64) string {
	return strconv.FormatUint(n, 10) + " bytes"
}

// FormatUptime renders milliseconds as "1d 2h 3m 4s", dropping leading
// zero units.
func FormatUptime(ms uint64) string {
	total := ms / 1000
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
