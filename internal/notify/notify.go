// Package notify shows transient toast notifications on the dashboard page.
//
// A notification is appended to the body at T, gains the "show" class at
// T+100ms, loses it at T+3000ms, and is removed from the page at T+3300ms.
package notify

import (
	"errors"
	"fmt"
	"html"
	"log/slog"
	"sync"
	"time"

	"github.com/chasefleming/elem-go"
	"github.com/chasefleming/elem-go/attrs"

	"github.com/jpalmerr/ledboard/internal/clock"
	"github.com/jpalmerr/ledboard/internal/dom"
)

// Kind selects the notification style.
type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
)

// Lifecycle offsets measured from the moment a notification is shown.
const (
	ShowAfter   = 100 * time.Millisecond
	HideAfter   = 3000 * time.Millisecond
	RemoveAfter = 3300 * time.Millisecond
)

const (
	classNotification = "notification"
	classShow         = "show"
	classIcon         = "notification-icon"
	classText         = "notification-text"
)

// ErrClosed is returned by [Notifier.Show] after [Notifier.Close].
var ErrClosed = errors.New("notifier closed")

// Notifier appends notifications to a document and drives their lifecycle.
type Notifier struct {
	doc    *dom.Document
	clock  clock.Clock
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	nextID int
	timers map[int][]clock.Timer
}

// New creates a Notifier. A nil clock uses the wall clock.
func New(doc *dom.Document, clk clock.Clock, logger *slog.Logger) *Notifier {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		doc:    doc,
		clock:  clk,
		logger: logger,
		timers: make(map[int][]clock.Timer),
	}
}

// Show appends a notification to the page body and schedules its lifecycle.
// It returns the ref of the notification element.
func (n *Notifier) Show(message string, kind Kind) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return "", ErrClosed
	}

	ref, err := n.doc.Append(n.doc.Body().Ref, Fragment(message, kind))
	if err != nil {
		return "", fmt.Errorf("failed to show notification: %w", err)
	}

	n.nextID++
	id := n.nextID
	n.timers[id] = []clock.Timer{
		n.clock.AfterFunc(ShowAfter, func() { n.step(ref, dom.AddClass(ref, classShow)) }),
		n.clock.AfterFunc(HideAfter, func() { n.step(ref, dom.RemoveClass(ref, classShow)) }),
		n.clock.AfterFunc(RemoveAfter, func() {
			n.step(ref, dom.Remove(ref))
			n.mu.Lock()
			delete(n.timers, id)
			n.mu.Unlock()
		}),
	}

	n.logger.Debug("notification shown", "kind", kind, "ref", ref)
	return ref, nil
}

func (n *Notifier) step(ref string, m dom.Mutation) {
	if err := n.doc.Apply(m); err != nil {
		// already gone from the page; nothing left to animate
		n.logger.Debug("notification step skipped", "ref", ref, "op", m.Op, "error", err)
	}
}

// Pending returns the number of notifications whose lifecycle is unfinished.
func (n *Notifier) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.timers)
}

// Close cancels every pending lifecycle timer. Notifications already on the
// page stay where they are.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	for id, ts := range n.timers {
		for _, t := range ts {
			t.Stop()
		}
		delete(n.timers, id)
	}
}

// Fragment renders the notification markup.
func Fragment(message string, kind Kind) string {
	icon := "✅"
	if kind != Success {
		icon = "❌"
	}
	return elem.Div(attrs.Props{attrs.Class: classNotification + " " + string(kind)},
		elem.Span(attrs.Props{attrs.Class: classIcon}, elem.Text(icon)),
		elem.Span(attrs.Props{attrs.Class: classText}, elem.Text(html.EscapeString(message))),
	).Render()
}
