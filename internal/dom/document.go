package dom

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// RefAttr is the attribute used to address elements in patches.
const RefAttr = "data-ref"

// subscriberBuffer is the per-subscriber patch buffer.
const subscriberBuffer = 100

// ErrMissingTarget is returned when a mutation addresses an element that is
// not (or no longer) part of the document.
var ErrMissingTarget = errors.New("target element not found")

// Element is a read-only snapshot of a referenced element.
type Element struct {
	Ref     string            `json:"ref"`
	ID      string            `json:"id,omitempty"`
	Tag     string            `json:"tag"`
	Classes []string          `json:"classes,omitempty"`
	Text    string            `json:"text,omitempty"`
	Attrs   map[string]string `json:"attrs,omitempty"`

	// Parent is the ref of the nearest referenced ancestor, empty for body.
	Parent string `json:"parent,omitempty"`
}

// HasClass reports whether the element carries class c.
func (e Element) HasClass(c string) bool {
	for _, have := range e.Classes {
		if have == c {
			return true
		}
	}
	return false
}

// Document is a concurrency-safe page model with patch publication.
type Document struct {
	mu      sync.RWMutex
	root    *html.Node
	body    *html.Node
	refs    map[string]*html.Node
	nextRef int
	seq     uint64

	subMu       sync.RWMutex
	subscribers map[chan Patch]struct{}
}

// Parse reads page markup and indexes its addressable elements.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	d := &Document{
		root:        root,
		refs:        make(map[string]*html.Node),
		subscribers: make(map[chan Patch]struct{}),
	}
	d.body = findBody(root)
	if d.body == nil {
		return nil, errors.New("page has no body element")
	}
	d.index(root)
	return d, nil
}

// ParseString is a convenience wrapper around [Parse].
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

// index assigns refs to every addressable element under n (inclusive).
func (d *Document) index(n *html.Node) {
	if n.Type == html.ElementNode && (n == d.body || getAttr(n, "id") != "" || getAttr(n, "class") != "") {
		d.nextRef++
		ref := "r" + strconv.Itoa(d.nextRef)
		setAttr(n, RefAttr, ref)
		d.refs[ref] = n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		d.index(c)
	}
}

// unindex drops refs for n and its descendants.
func (d *Document) unindex(n *html.Node) {
	if n.Type == html.ElementNode {
		if ref := getAttr(n, RefAttr); ref != "" && d.refs[ref] == n {
			delete(d.refs, ref)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		d.unindex(c)
	}
}

// ByID returns the element with the given id attribute.
func (d *Document) ByID(id string) (Element, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var found *html.Node
	d.walk(func(n *html.Node) bool {
		if getAttr(n, "id") == id {
			found = n
			return false
		}
		return true
	})
	if found == nil {
		return Element{}, false
	}
	return d.snapshot(found), true
}

// First returns the first element, in document order, carrying class c.
func (d *Document) First(class string) (Element, bool) {
	all := d.collect(class, 1)
	if len(all) == 0 {
		return Element{}, false
	}
	return all[0], true
}

// All returns every element carrying class c, in document order.
func (d *Document) All(class string) []Element {
	return d.collect(class, -1)
}

// Get returns the element with the given ref.
func (d *Document) Get(ref string) (Element, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n, ok := d.refs[ref]
	if !ok {
		return Element{}, false
	}
	return d.snapshot(n), true
}

// Body returns the body element.
func (d *Document) Body() Element {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snapshot(d.body)
}

// Elements returns every referenced element in document order.
func (d *Document) Elements() []Element {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []Element
	d.walk(func(n *html.Node) bool {
		out = append(out, d.snapshot(n))
		return true
	})
	return out
}

func (d *Document) collect(class string, limit int) []Element {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []Element
	d.walk(func(n *html.Node) bool {
		if hasClass(n, class) {
			out = append(out, d.snapshot(n))
			if limit > 0 && len(out) >= limit {
				return false
			}
		}
		return true
	})
	return out
}

// walk visits referenced elements in document order until fn returns false.
func (d *Document) walk(fn func(*html.Node) bool) {
	var visit func(*html.Node) bool
	visit = func(n *html.Node) bool {
		if n.Type == html.ElementNode && getAttr(n, RefAttr) != "" {
			if !fn(n) {
				return false
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !visit(c) {
				return false
			}
		}
		return true
	}
	visit(d.root)
}

func (d *Document) snapshot(n *html.Node) Element {
	e := Element{
		Ref:     getAttr(n, RefAttr),
		ID:      getAttr(n, "id"),
		Tag:     n.Data,
		Classes: strings.Fields(getAttr(n, "class")),
		Text:    strings.TrimSpace(textContent(n)),
	}
	if len(n.Attr) > 0 {
		e.Attrs = make(map[string]string, len(n.Attr))
		for _, a := range n.Attr {
			e.Attrs[a.Key] = a.Val
		}
	}
	for p := n.Parent; p != nil; p = p.Parent {
		if ref := getAttr(p, RefAttr); ref != "" && p.Type == html.ElementNode {
			e.Parent = ref
			break
		}
	}
	return e
}

// SeqAttr carries, on the rendered body, the seq of the last patch already
// reflected in the markup.
const SeqAttr = "data-seq"

// Render writes the current page, including data-ref attributes, and returns
// the seq of the last patch it reflects.
func (d *Document) Render(w io.Writer) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	setAttr(d.body, SeqAttr, strconv.FormatUint(d.seq, 10))
	return d.seq, html.Render(w, d.root)
}

// Seq returns the seq of the last committed patch.
func (d *Document) Seq() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.seq
}

// Append parses fragment in the context of the parent element and appends
// the resulting nodes. It returns the ref of the first appended element.
func (d *Document) Append(parentRef, fragment string) (string, error) {
	d.mu.Lock()
	parent, ok := d.refs[parentRef]
	if !ok {
		d.mu.Unlock()
		return "", fmt.Errorf("append to %s: %w", parentRef, ErrMissingTarget)
	}

	nodes, err := html.ParseFragment(strings.NewReader(fragment), parent)
	if err != nil {
		d.mu.Unlock()
		return "", fmt.Errorf("failed to parse fragment: %w", err)
	}

	var first string
	var buf bytes.Buffer
	for _, n := range nodes {
		parent.AppendChild(n)
		d.index(n)
		if first == "" && n.Type == html.ElementNode {
			first = getAttr(n, RefAttr)
		}
		if err := html.Render(&buf, n); err != nil {
			d.mu.Unlock()
			return "", fmt.Errorf("failed to render fragment: %w", err)
		}
	}
	// published under the document lock so subscribers see patches in seq order
	d.publish([]Patch{d.nextPatch(OpAppend, parentRef, buf.String())})
	d.mu.Unlock()
	return first, nil
}

// Apply commits a batch of mutations. Every target is checked and every
// fragment parsed first; if any step fails the batch is rejected and the
// document is left untouched. Mutations that would not change the document
// emit no patch.
func (d *Document) Apply(muts ...Mutation) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	fragments := make([][]*html.Node, len(muts))
	for i, m := range muts {
		n, ok := d.refs[m.Ref]
		if !ok {
			return fmt.Errorf("%s %s: %w", m.Op, m.Ref, ErrMissingTarget)
		}
		switch m.Op {
		case OpText, OpClass, OpAddClass, OpRemoveClass:
		case OpRemove:
			if n == d.body {
				return errors.New("cannot remove body")
			}
		case OpHTML:
			nodes, err := parseFragment(n, m.Value)
			if err != nil {
				return fmt.Errorf("%s %s: %w", m.Op, m.Ref, err)
			}
			fragments[i] = nodes
		default:
			return fmt.Errorf("unsupported mutation %q", m.Op)
		}
	}

	var patches []Patch
	for i, m := range muts {
		n, ok := d.refs[m.Ref]
		if !ok {
			// removed by an earlier mutation in the same batch
			continue
		}
		if value, changed := d.apply(n, m, fragments[i]); changed {
			patches = append(patches, d.nextPatch(m.Op, m.Ref, value))
		}
	}
	// published under the document lock so subscribers see patches in seq order
	d.publish(patches)
	return nil
}

// parseFragment parses markup in the context of n and checks that it
// renders.
func parseFragment(n *html.Node, markup string) ([]*html.Node, error) {
	nodes, err := html.ParseFragment(strings.NewReader(markup), n)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fragment: %w", err)
	}
	for _, c := range nodes {
		if err := html.Render(io.Discard, c); err != nil {
			return nil, fmt.Errorf("failed to render fragment: %w", err)
		}
	}
	return nodes, nil
}

// apply performs one validated mutation and returns the patch value.
func (d *Document) apply(n *html.Node, m Mutation, fragment []*html.Node) (string, bool) {
	switch m.Op {
	case OpText:
		if isPlainText(n, m.Value) {
			return "", false
		}
		d.clearChildren(n)
		n.AppendChild(&html.Node{Type: html.TextNode, Data: m.Value})
		return m.Value, true

	case OpClass, OpAddClass, OpRemoveClass:
		next, value, changed := changeClass(getAttr(n, "class"), m)
		if changed {
			setAttr(n, "class", next)
		}
		return value, changed

	case OpHTML:
		if sameChildren(n, fragment) {
			return "", false
		}
		d.clearChildren(n)
		var buf bytes.Buffer
		for _, c := range fragment {
			n.AppendChild(c)
			d.index(c)
			// rendered once already while validating
			_ = html.Render(&buf, c)
		}
		return buf.String(), true

	default: // OpRemove
		d.unindex(n)
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		return "", true
	}
}

// changeClass computes the class attribute after a class mutation. It
// returns the new attribute, the patch value and whether anything changed.
func changeClass(current string, m Mutation) (string, string, bool) {
	have := strings.Fields(current)
	switch m.Op {
	case OpClass:
		want := strings.Join(strings.Fields(m.Value), " ")
		return want, want, strings.Join(have, " ") != want

	case OpAddClass:
		if slices.Contains(have, m.Value) {
			return current, "", false
		}
		return strings.Join(append(have, m.Value), " "), m.Value, true

	default: // OpRemoveClass
		if !slices.Contains(have, m.Value) {
			return current, "", false
		}
		kept := make([]string, 0, len(have))
		for _, c := range have {
			if c != m.Value {
				kept = append(kept, c)
			}
		}
		return strings.Join(kept, " "), m.Value, true
	}
}

// sameChildren reports whether n's children already match nodes, ignoring
// the refs assigned by the document.
func sameChildren(n *html.Node, nodes []*html.Node) bool {
	c := n.FirstChild
	for _, want := range nodes {
		if c == nil || !sameNode(c, want) {
			return false
		}
		c = c.NextSibling
	}
	return c == nil
}

func sameNode(a, b *html.Node) bool {
	if a.Type != b.Type || a.Data != b.Data || a.Namespace != b.Namespace {
		return false
	}
	if !slices.Equal(withoutRef(a.Attr), withoutRef(b.Attr)) {
		return false
	}
	ac, bc := a.FirstChild, b.FirstChild
	for ; ac != nil && bc != nil; ac, bc = ac.NextSibling, bc.NextSibling {
		if !sameNode(ac, bc) {
			return false
		}
	}
	return ac == nil && bc == nil
}

func withoutRef(attrs []html.Attribute) []html.Attribute {
	out := make([]html.Attribute, 0, len(attrs))
	for _, a := range attrs {
		if a.Namespace == "" && a.Key == RefAttr {
			continue
		}
		out = append(out, a)
	}
	return out
}

func (d *Document) clearChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		d.unindex(c)
		n.RemoveChild(c)
		c = next
	}
}

func (d *Document) nextPatch(op Op, ref, value string) Patch {
	d.seq++
	return Patch{Seq: d.seq, Op: op, Ref: ref, Value: value}
}

// isPlainText reports whether n already holds exactly the text s.
func isPlainText(n *html.Node, s string) bool {
	c := n.FirstChild
	if c == nil {
		return s == ""
	}
	return c.NextSibling == nil && c.Type == html.TextNode && c.Data == s
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(textContent(c))
	}
	return sb.String()
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(getAttr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
