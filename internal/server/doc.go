// Package server provides the HTTP surface of the LED dashboard.
//
// Routes:
//
//   - GET /: the current page, rendered from the live document
//   - GET /api/dom: addressable elements as JSON
//   - GET /api/snapshot: latest merged device state as JSON
//   - GET /api/sse: Server-Sent Events stream of DOM patches
//   - GET /api/ws: WebSocket session, UI events in and DOM patches out
//   - POST /api/events: a single UI event
//
// Both patch streams open with a sync message carrying the document seq at
// subscription time. A client whose page is older reloads; otherwise it
// skips patches already reflected in its markup.
//
// When the dispatcher keeps per-viewer state, each stream also opens a
// session. Its id rides on the sync message, the stream carries that
// viewer's local patches alongside the shared ones, and POSTed events name
// it in their session field. WebSocket events always belong to their
// connection's session.
//
// The server shuts down gracefully when its context is cancelled, with a
// 5-second timeout for in-flight requests.
package server
