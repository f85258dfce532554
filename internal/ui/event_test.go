package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/jpalmerr/ledboard/internal/device"
	"github.com/jpalmerr/ledboard/internal/dom"
)

type recorder struct {
	calls []string
	err   error
}

func (r *recorder) Toggle(context.Context) error {
	r.calls = append(r.calls, "led.toggle")
	return r.err
}

func (r *recorder) Control(_ context.Context, a device.Action) error {
	r.calls = append(r.calls, "led.control "+string(a))
	return r.err
}

func (r *recorder) Init(w int, path string) { r.calls = append(r.calls, fmt.Sprintf("init %d %s", w, path)) }
func (r *recorder) Resize(w int)            { r.calls = append(r.calls, fmt.Sprintf("resize %d", w)) }
func (r *recorder) Escape()                 { r.calls = append(r.calls, "escape") }
func (r *recorder) OverlayClick()           { r.calls = append(r.calls, "overlay") }
func (r *recorder) Navigate(path string)    { r.calls = append(r.calls, "navigate "+path) }
func (r *recorder) Close()                  { r.calls = append(r.calls, "close") }

// sidebar Toggle collides with the LED method name; wrap it.
type sidebarRecorder struct{ *recorder }

func (s sidebarRecorder) Toggle() { s.calls = append(s.calls, "sidebar.toggle") }

const page = `<html><body><nav id="sidebar" class="sidebar"></nav></body></html>`

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newDispatcher returns a dispatcher with one open session whose sidebar
// records into the same recorder as the LED.
func newDispatcher(t *testing.T) (*Dispatcher, *recorder, string) {
	t.Helper()
	doc, err := dom.ParseString(page)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	r := &recorder{}
	d := NewDispatcher(doc, r, func(*dom.Session) Sidebar { return sidebarRecorder{r} }, discard())
	id, _ := d.Open()
	if id == "" {
		t.Fatal("Open() returned no session id")
	}
	return d, r, id
}

func TestDispatch_Routes(t *testing.T) {
	tests := []struct {
		ev   Event
		want string
	}{
		{Event{Type: TypeClick, Target: TargetBulb}, "led.toggle"},
		{Event{Type: TypeControl, Action: "on"}, "led.control on"},
		{Event{Type: TypeClick, Target: TargetToggle}, "sidebar.toggle"},
		{Event{Type: TypeClick, Target: TargetOverlay}, "overlay"},
		{Event{Type: TypeResize, Width: 500}, "resize 500"},
		{Event{Type: TypeKeydown, Key: KeyEscape}, "escape"},
		{Event{Type: TypeNavigate, Path: "#system"}, "navigate #system"},
		{Event{Type: TypeLoad, Width: 1280, Path: "#overview"}, "init 1280 #overview"},
	}
	for _, tt := range tests {
		t.Run(describe(tt.ev), func(t *testing.T) {
			d, r, id := newDispatcher(t)
			tt.ev.Session = id
			if err := d.Dispatch(context.Background(), tt.ev); err != nil {
				t.Fatalf("Dispatch() error = %v", err)
			}
			if len(r.calls) != 1 || r.calls[0] != tt.want {
				t.Errorf("calls = %v, want [%s]", r.calls, tt.want)
			}
		})
	}
}

func TestDispatch_Unknown(t *testing.T) {
	for _, ev := range []Event{
		{Type: "scroll"},
		{Type: TypeClick, Target: "footer"},
		{Type: TypeKeydown, Key: "Enter"},
	} {
		d, r, id := newDispatcher(t)
		ev.Session = id
		if err := d.Dispatch(context.Background(), ev); !errors.Is(err, ErrUnknownEvent) {
			t.Errorf("Dispatch(%+v) error = %v, want ErrUnknownEvent", ev, err)
		}
		if len(r.calls) != 0 {
			t.Errorf("Dispatch(%+v) called %v", ev, r.calls)
		}
	}
}

func TestDispatch_NilHandlers(t *testing.T) {
	d := NewDispatcher(nil, nil, nil, nil)
	if id, ch := d.Open(); id != "" || ch != nil {
		t.Errorf("Open() = %q, %v; want no session without a sidebar", id, ch)
	}
	for _, ev := range []Event{{Type: TypeClick, Target: TargetBulb}, {Type: TypeResize, Width: 10}} {
		if err := d.Dispatch(context.Background(), ev); !errors.Is(err, ErrUnknownEvent) {
			t.Errorf("Dispatch(%+v) error = %v, want ErrUnknownEvent", ev, err)
		}
	}
}

func TestDispatch_PropagatesControlError(t *testing.T) {
	d, r, _ := newDispatcher(t)
	r.err = device.ErrNonSuccess
	err := d.Dispatch(context.Background(), Event{Type: TypeClick, Target: TargetBulb})
	if !errors.Is(err, device.ErrNonSuccess) {
		t.Errorf("Dispatch() error = %v, want ErrNonSuccess", err)
	}
}

func TestDispatch_SidebarNeedsSession(t *testing.T) {
	d, r, _ := newDispatcher(t)

	for _, id := range []string{"", "stale"} {
		err := d.Dispatch(context.Background(), Event{Type: TypeClick, Target: TargetToggle, Session: id})
		if !errors.Is(err, ErrUnknownSession) || !errors.Is(err, ErrUnknownEvent) {
			t.Errorf("Dispatch(session %q) error = %v, want ErrUnknownSession", id, err)
		}
	}
	// LED events are not tied to a viewer
	if err := d.Dispatch(context.Background(), Event{Type: TypeClick, Target: TargetBulb}); err != nil {
		t.Errorf("Dispatch(bulb) error = %v", err)
	}
	if len(r.calls) != 1 || r.calls[0] != "led.toggle" {
		t.Errorf("calls = %v, want [led.toggle]", r.calls)
	}
}

func TestDispatch_SessionsAreIndependent(t *testing.T) {
	doc, err := dom.ParseString(page)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	var bars []*recorder
	d := NewDispatcher(doc, nil, func(*dom.Session) Sidebar {
		r := &recorder{}
		bars = append(bars, r)
		return sidebarRecorder{r}
	}, discard())

	desk, _ := d.Open()
	phone, _ := d.Open()
	if desk == phone {
		t.Fatalf("Open() returned the same id twice: %q", desk)
	}
	if d.Sessions() != 2 {
		t.Fatalf("Sessions() = %d, want 2", d.Sessions())
	}

	_ = d.Dispatch(context.Background(), Event{Type: TypeLoad, Width: 1280, Session: desk})
	_ = d.Dispatch(context.Background(), Event{Type: TypeLoad, Width: 400, Session: phone})
	_ = d.Dispatch(context.Background(), Event{Type: TypeClick, Target: TargetToggle, Session: phone})

	if got := strings.Join(bars[0].calls, ","); got != "init 1280 " {
		t.Errorf("desk calls = %q", got)
	}
	if got := strings.Join(bars[1].calls, ","); got != "init 400 ,sidebar.toggle" {
		t.Errorf("phone calls = %q", got)
	}

	d.Close(phone)
	d.Close(phone) // unknown ids are ignored
	if d.Sessions() != 1 {
		t.Errorf("Sessions() = %d after Close, want 1", d.Sessions())
	}
	if calls := bars[1].calls; calls[len(calls)-1] != "close" || len(calls) != 3 {
		t.Errorf("phone calls after Close = %v, want one trailing close", calls)
	}
	if err := d.Dispatch(context.Background(), Event{Type: TypeResize, Width: 500, Session: phone}); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("Dispatch() on closed session error = %v, want ErrUnknownSession", err)
	}
}

func TestDecode(t *testing.T) {
	ev, err := Decode([]byte(`{"type":"resize","width":640,"session":"abc"}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if ev.Type != TypeResize || ev.Width != 640 || ev.Session != "abc" {
		t.Errorf("Decode() = %+v", ev)
	}

	for _, bad := range []string{`{`, `{"width":1}`, `[]`} {
		if _, err := Decode([]byte(bad)); err == nil {
			t.Errorf("Decode(%s) should fail", bad)
		}
	}
}
