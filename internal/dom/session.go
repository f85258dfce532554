package dom

import (
	"fmt"
	"maps"
	"strings"
	"sync"
)

// Session is one viewer's class state layered over a shared [Document].
//
// Class mutations applied through a session change only that viewer's view
// of an element and are delivered on [Session.Patches]; the shared markup
// and its seq are untouched; local patches are numbered from 1 per session. Reads see the shared element with the
// session's classes. Only class mutations are accepted.
type Session struct {
	doc *Document

	mu      sync.Mutex
	classes map[string]string
	seq     uint64
	patches chan Patch
	closed  bool
}

// NewSession creates a session over d.
func (d *Document) NewSession() *Session {
	return &Session{
		doc:     d,
		classes: make(map[string]string),
		patches: make(chan Patch, subscriberBuffer),
	}
}

// Patches returns the channel of this session's local patches. If the
// buffer fills, new patches are dropped.
func (s *Session) Patches() <-chan Patch {
	return s.patches
}

// Close stops delivery. Later mutations are accepted and discarded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// ByID returns the element with the given id attribute.
func (s *Session) ByID(id string) (Element, bool) {
	e, ok := s.doc.ByID(id)
	return s.overlay(e), ok
}

// All returns every element carrying class c in this session's view.
func (s *Session) All(class string) []Element {
	var out []Element
	for _, e := range s.doc.Elements() {
		if e = s.overlay(e); e.HasClass(class) {
			out = append(out, e)
		}
	}
	return out
}

// Get returns the element with the given ref.
func (s *Session) Get(ref string) (Element, bool) {
	e, ok := s.doc.Get(ref)
	return s.overlay(e), ok
}

// Body returns the body element.
func (s *Session) Body() Element {
	return s.overlay(s.doc.Body())
}

// Apply commits a batch of class mutations to this session. Every target
// must exist in the shared document; otherwise nothing changes.
func (s *Session) Apply(muts ...Mutation) error {
	base := make(map[string]string, len(muts))
	for _, m := range muts {
		switch m.Op {
		case OpClass, OpAddClass, OpRemoveClass:
		default:
			return fmt.Errorf("unsupported session mutation %q", m.Op)
		}
		e, ok := s.doc.Get(m.Ref)
		if !ok {
			return fmt.Errorf("%s %s: %w", m.Op, m.Ref, ErrMissingTarget)
		}
		base[m.Ref] = strings.Join(e.Classes, " ")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var patches []Patch
	for _, m := range muts {
		current, ok := s.classes[m.Ref]
		if !ok {
			current = base[m.Ref]
		}
		next, value, changed := changeClass(current, m)
		if !changed {
			continue
		}
		s.classes[m.Ref] = next
		s.seq++
		patches = append(patches, Patch{Seq: s.seq, Op: m.Op, Ref: m.Ref, Value: value, Local: true})
	}
	if s.closed {
		return nil
	}
	for _, p := range patches {
		select {
		case s.patches <- p:
		default:
			// viewer is slow, drop the patch
		}
	}
	return nil
}

func (s *Session) overlay(e Element) Element {
	if e.Ref == "" {
		return e
	}
	s.mu.Lock()
	class, ok := s.classes[e.Ref]
	s.mu.Unlock()
	if !ok {
		return e
	}
	e.Classes = strings.Fields(class)
	e.Attrs = maps.Clone(e.Attrs)
	if e.Attrs == nil {
		e.Attrs = make(map[string]string, 1)
	}
	e.Attrs["class"] = class
	return e
}
