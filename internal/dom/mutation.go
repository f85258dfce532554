package dom

// Op names a document change. The same names are used on the wire.
type Op string

const (
	OpText        Op = "text"
	OpClass       Op = "class"
	OpAddClass    Op = "add-class"
	OpRemoveClass Op = "remove-class"
	OpHTML        Op = "html"
	OpAppend      Op = "append"
	OpRemove      Op = "remove"
)

// Mutation is one change addressed to an element ref.
type Mutation struct {
	Op    Op
	Ref   string
	Value string
}

// SetText replaces the element's children with a single text node.
func SetText(ref, text string) Mutation {
	return Mutation{Op: OpText, Ref: ref, Value: text}
}

// SetClassName replaces the element's class attribute.
func SetClassName(ref, className string) Mutation {
	return Mutation{Op: OpClass, Ref: ref, Value: className}
}

// AddClass adds a single class if absent.
func AddClass(ref, class string) Mutation {
	return Mutation{Op: OpAddClass, Ref: ref, Value: class}
}

// RemoveClass removes a single class if present.
func RemoveClass(ref, class string) Mutation {
	return Mutation{Op: OpRemoveClass, Ref: ref, Value: class}
}

// SetHTML replaces the element's children with the parsed fragment.
// The fragment must already be escaped.
func SetHTML(ref, fragment string) Mutation {
	return Mutation{Op: OpHTML, Ref: ref, Value: fragment}
}

// Remove detaches the element from the document.
func Remove(ref string) Mutation {
	return Mutation{Op: OpRemove, Ref: ref}
}

// Patch is a committed change as seen by subscribers.
//
// For [OpHTML] and [OpAppend] the value is the rendered markup including the
// data-ref attributes assigned to new elements, so replaying patches in
// order reproduces the server document.
//
// Local patches come from a [Session], are numbered in that session's own
// sequence, and only ever reach that session's viewer.
type Patch struct {
	Seq   uint64 `json:"seq"`
	Op    Op     `json:"op"`
	Ref   string `json:"ref"`
	Value string `json:"value,omitempty"`
	Local bool   `json:"local,omitempty"`
}
