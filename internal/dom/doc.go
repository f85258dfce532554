// Package dom holds the server-side model of the dashboard page.
//
// The page markup is parsed once with golang.org/x/net/html. Every element
// that carries an id or a class (and the body) is tagged with a stable
// data-ref attribute; mutations address elements by that ref and each
// effective change is published as a [Patch] so that connected browsers can
// replay it against their own copy of the page.
//
// Lookups are typed optionals: [Document.ByID] and [Document.First] return
// (Element, bool) and callers decide what absence means. [Document.Apply]
// checks every target before touching any of them, so a batch either
// commits completely or not at all.
package dom
