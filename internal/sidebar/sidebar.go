// Package sidebar implements the navigation sidebar controller.
//
// The controller works in one of two modes chosen by viewport width. Below
// the breakpoint (mobile) the sidebar is an overlay that locks page scroll
// while open. At or above it (desktop) the sidebar collapses in place.
// Every state change is rendered as class mutations on the page model, and
// mutations that would not change a class are dropped by the document, so
// repeated events produce no patches.
package sidebar

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jpalmerr/ledboard/internal/clock"
	"github.com/jpalmerr/ledboard/internal/dom"
)

// Defaults used when [Config] leaves a field zero.
const (
	DefaultBreakpoint    = 768
	DefaultNavCloseDelay = 300 * time.Millisecond
)

// Element ids and classes the controller binds to.
const (
	IDSidebar      = "sidebar"
	IDOverlay      = "sidebarOverlay"
	ClassNavLink   = "nav-link"
	ClassNavItem   = "nav-item"
	ClassCollapsed = "collapsed"
	ClassActive    = "active"
	ClassNoScroll  = "no-scroll"
)

// Mode is the layout mode derived from viewport width.
type Mode string

const (
	Mobile  Mode = "mobile"
	Desktop Mode = "desktop"
)

// State is the controller's view of the sidebar.
type State struct {
	Mode      Mode   `json:"mode"`
	Width     int    `json:"width"`
	Collapsed bool   `json:"collapsed"`
	Active    bool   `json:"active"`
	Path      string `json:"path,omitempty"`
}

// Page is the element model the controller reads and renders onto. A
// [dom.Session] gives each viewer its own sidebar state over a shared page.
type Page interface {
	ByID(id string) (dom.Element, bool)
	All(class string) []dom.Element
	Get(ref string) (dom.Element, bool)
	Body() dom.Element
	Apply(muts ...dom.Mutation) error
}

// Config carries the controller's UI context.
type Config struct {
	Breakpoint    int
	NavCloseDelay time.Duration
	Clock         clock.Clock
	Logger        *slog.Logger
}

// Controller owns the sidebar state. All methods are safe for concurrent use.
type Controller struct {
	doc    Page
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	pending clock.Timer
	closed  bool
}

// New creates a controller bound to a page. The initial mode assumes a desktop
// viewport until [Controller.Init] reports the real width; a sidebar already
// marked collapsed in the markup starts collapsed.
func New(doc Page, cfg Config) *Controller {
	if cfg.Breakpoint <= 0 {
		cfg.Breakpoint = DefaultBreakpoint
	}
	if cfg.NavCloseDelay <= 0 {
		cfg.NavCloseDelay = DefaultNavCloseDelay
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Controller{
		doc:    doc,
		cfg:    cfg,
		logger: cfg.Logger,
		state:  State{Mode: Desktop, Width: cfg.Breakpoint},
	}
	if el, ok := doc.ByID(IDSidebar); ok {
		c.state.Collapsed = el.HasClass(ClassCollapsed)
	}
	return c
}

// ModeFor returns the mode for a viewport width.
func (c *Controller) ModeFor(width int) Mode {
	if width < c.cfg.Breakpoint {
		return Mobile
	}
	return Desktop
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Init sets the viewport width, forces a consistent state for the resulting
// mode, and highlights the navigation link for path when one matches.
func (c *Controller) Init(width int, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelPending()
	c.state.Width = width
	c.enter(c.ModeFor(width))
	if path != "" {
		c.highlight(path)
	}
	c.render()
}

// Toggle opens or closes the overlay on mobile and collapses or expands the
// sidebar on desktop.
func (c *Controller) Toggle() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelPending()
	if c.state.Mode == Mobile {
		c.state.Active = !c.state.Active
	} else {
		c.state.Collapsed = !c.state.Collapsed
	}
	c.logger.Debug("sidebar toggled", "mode", c.state.Mode, "active", c.state.Active, "collapsed", c.state.Collapsed)
	c.render()
}

// Resize records a new viewport width. Crossing the breakpoint switches mode
// and resets the state that does not apply to the new mode; a width in the
// same band changes nothing on the page.
func (c *Controller) Resize(width int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Width = width
	mode := c.ModeFor(width)
	if mode == c.state.Mode {
		return
	}
	c.cancelPending()
	c.enter(mode)
	c.logger.Debug("sidebar mode changed", "mode", mode, "width", width)
	c.render()
}

// Escape closes the mobile overlay. It does nothing when the overlay is
// closed or in desktop mode.
func (c *Controller) Escape() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Mode != Mobile || !c.state.Active {
		return
	}
	c.closeOverlay()
}

// OverlayClick closes the overlay.
func (c *Controller) OverlayClick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.Active {
		return
	}
	c.closeOverlay()
}

// Navigate highlights the link for path and, on mobile with the overlay
// open, closes the overlay after the configured delay.
func (c *Controller) Navigate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.highlight(path)
	c.render()

	if c.state.Mode != Mobile || !c.state.Active || c.closed {
		return
	}
	c.cancelPending()
	var t clock.Timer
	t = c.cfg.Clock.AfterFunc(c.cfg.NavCloseDelay, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.pending != t {
			return
		}
		c.pending = nil
		if c.state.Mode == Mobile && c.state.Active {
			c.state.Active = false
			c.render()
		}
	})
	c.pending = t
}

// Close cancels a pending delayed close. Later navigation no longer
// schedules one.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cancelPending()
}

func (c *Controller) closeOverlay() {
	c.cancelPending()
	c.state.Active = false
	c.render()
}

func (c *Controller) cancelPending() {
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
}

// enter switches mode and clears state that belongs to the other mode.
func (c *Controller) enter(mode Mode) {
	c.state.Mode = mode
	if mode == Desktop {
		c.state.Active = false
	} else {
		c.state.Collapsed = false
	}
}

// highlight marks the link whose href equals path, and its nav item, as
// active and clears every other link.
func (c *Controller) highlight(path string) {
	links := c.doc.All(ClassNavLink)
	var muts []dom.Mutation
	matched := false
	for _, link := range links {
		on := link.Attrs["href"] == path
		matched = matched || on
		muts = append(muts, classIf(link.Ref, ClassActive, on))
		if item, ok := c.doc.Get(link.Parent); ok && item.HasClass(ClassNavItem) {
			muts = append(muts, classIf(item.Ref, ClassActive, on))
		}
	}
	if !matched {
		c.logger.Debug("no navigation link for path", "path", path)
	}
	c.state.Path = path
	c.apply(muts)
}

// render writes the current state onto the page.
func (c *Controller) render() {
	s := c.state
	muts := []dom.Mutation{classIf(c.doc.Body().Ref, ClassNoScroll, s.Mode == Mobile && s.Active)}
	if el, ok := c.doc.ByID(IDSidebar); ok {
		muts = append(muts,
			classIf(el.Ref, ClassCollapsed, s.Mode == Desktop && s.Collapsed),
			classIf(el.Ref, ClassActive, s.Mode == Mobile && s.Active),
		)
	}
	if el, ok := c.doc.ByID(IDOverlay); ok {
		muts = append(muts, classIf(el.Ref, ClassActive, s.Mode == Mobile && s.Active))
	}
	c.apply(muts)
}

func (c *Controller) apply(muts []dom.Mutation) {
	if len(muts) == 0 {
		return
	}
	if err := c.doc.Apply(muts...); err != nil {
		c.logger.Debug("sidebar render skipped", "error", err)
	}
}

func classIf(ref, class string, on bool) dom.Mutation {
	if on {
		return dom.AddClass(ref, class)
	}
	return dom.RemoveClass(ref, class)
}
