// Package ui routes browser interactions to the dashboard controllers.
package ui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/jpalmerr/ledboard/internal/device"
	"github.com/jpalmerr/ledboard/internal/dom"
)

// Event types sent by the page script.
const (
	TypeLoad     = "load"
	TypeClick    = "click"
	TypeResize   = "resize"
	TypeKeydown  = "keydown"
	TypeNavigate = "navigate"
	TypeControl  = "control"
)

// Click targets.
const (
	TargetBulb    = "bulb"
	TargetToggle  = "sidebarToggle"
	TargetOverlay = "sidebarOverlay"
)

// KeyEscape is the keydown key that dismisses the mobile overlay.
const KeyEscape = "Escape"

var (
	// ErrUnknownEvent is returned for events no handler accepts.
	ErrUnknownEvent = errors.New("unknown event")

	// ErrUnknownSession is returned for sidebar events that name no open
	// session. It wraps [ErrUnknownEvent].
	ErrUnknownSession = fmt.Errorf("%w: unknown session", ErrUnknownEvent)
)

// Event is one interaction reported by the browser.
type Event struct {
	Type   string `json:"type"`
	Target string `json:"target,omitempty"`
	Width  int    `json:"width,omitempty"`
	Key    string `json:"key,omitempty"`
	Path   string `json:"path,omitempty"`
	Action string `json:"action,omitempty"`

	// Session names the viewer whose sidebar the event belongs to. The
	// page learns it from the first message of its patch stream.
	Session string `json:"session,omitempty"`
}

// Decode parses a JSON event.
func Decode(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("invalid event: %w", err)
	}
	if ev.Type == "" {
		return Event{}, errors.New("invalid event: missing type")
	}
	return ev, nil
}

// LED is the control side of the status poller.
type LED interface {
	Toggle(ctx context.Context) error
	Control(ctx context.Context, action device.Action) error
}

// Sidebar is the event side of the sidebar controller.
type Sidebar interface {
	Init(width int, path string)
	Toggle()
	Resize(width int)
	Escape()
	OverlayClick()
	Navigate(path string)
	Close()
}

// SidebarFactory builds the sidebar for one viewer, rendering onto that
// viewer's session.
type SidebarFactory func(page *dom.Session) Sidebar

type session struct {
	page    *dom.Session
	sidebar Sidebar
}

// Dispatcher routes events to the LED handler and to each viewer's sidebar.
type Dispatcher struct {
	doc        *dom.Document
	led        LED
	newSidebar SidebarFactory
	logger     *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// NewDispatcher creates a Dispatcher. led may be nil, and so may doc or
// newSidebar; the matching events are then rejected with [ErrUnknownEvent].
func NewDispatcher(doc *dom.Document, led LED, newSidebar SidebarFactory, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		doc:        doc,
		led:        led,
		newSidebar: newSidebar,
		logger:     logger,
		sessions:   make(map[string]*session),
	}
}

// Open starts a viewer session with its own sidebar state. It returns the
// session id and the channel of patches meant for that viewer only. Without
// a sidebar the id is empty and the channel nil.
func (d *Dispatcher) Open() (string, <-chan dom.Patch) {
	if d.doc == nil || d.newSidebar == nil {
		return "", nil
	}
	page := d.doc.NewSession()
	id := uuid.NewString()

	d.mu.Lock()
	d.sessions[id] = &session{page: page, sidebar: d.newSidebar(page)}
	n := len(d.sessions)
	d.mu.Unlock()

	d.logger.Debug("viewer session opened", "session", id, "sessions", n)
	return id, page.Patches()
}

// Close ends a session and cancels its pending sidebar work. Unknown ids
// are ignored.
func (d *Dispatcher) Close(id string) {
	d.mu.Lock()
	s, ok := d.sessions[id]
	delete(d.sessions, id)
	d.mu.Unlock()
	if !ok {
		return
	}
	s.sidebar.Close()
	s.page.Close()
	d.logger.Debug("viewer session closed", "session", id)
}

// Sessions returns the number of open sessions.
func (d *Dispatcher) Sessions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sessions)
}

// Dispatch handles one event. LED control errors are returned after the
// user has already been notified on the page.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) error {
	d.logger.Debug("ui event", "type", ev.Type, "target", ev.Target, "session", ev.Session)

	switch {
	case ev.Type == TypeClick && ev.Target == TargetBulb && d.led != nil:
		return d.led.Toggle(ctx)
	case ev.Type == TypeControl && d.led != nil:
		return d.led.Control(ctx, device.Action(ev.Action))
	case d.newSidebar == nil:
		return fmt.Errorf("%w: %s", ErrUnknownEvent, describe(ev))
	}
	if !isSidebarEvent(ev) {
		return fmt.Errorf("%w: %s", ErrUnknownEvent, describe(ev))
	}

	d.mu.Lock()
	s, ok := d.sessions[ev.Session]
	d.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownSession, ev.Session)
	}

	bar := s.sidebar
	switch ev.Type {
	case TypeLoad:
		bar.Init(ev.Width, ev.Path)
	case TypeResize:
		bar.Resize(ev.Width)
	case TypeNavigate:
		bar.Navigate(ev.Path)
	case TypeKeydown:
		bar.Escape()
	case TypeClick:
		if ev.Target == TargetToggle {
			bar.Toggle()
		} else {
			bar.OverlayClick()
		}
	}
	return nil
}

func isSidebarEvent(ev Event) bool {
	switch ev.Type {
	case TypeLoad, TypeResize, TypeNavigate:
		return true
	case TypeKeydown:
		return ev.Key == KeyEscape
	case TypeClick:
		return ev.Target == TargetToggle || ev.Target == TargetOverlay
	}
	return false
}

func describe(ev Event) string {
	if ev.Target != "" {
		return ev.Type + " on " + ev.Target
	}
	if ev.Key != "" {
		return ev.Type + " " + ev.Key
	}
	return ev.Type
}
