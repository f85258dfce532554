package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/jpalmerr/ledboard/internal/device"
	"github.com/jpalmerr/ledboard/internal/dom"
	"github.com/jpalmerr/ledboard/internal/ui"
)

const (
	// streamWriteTimeout bounds a single SSE or WebSocket write so a stalled
	// client cannot pin its handler. Must be <= shutdown timeout.
	streamWriteTimeout = 5 * time.Second

	shutdownTimeout = 5 * time.Second

	// pongWait is how long a WebSocket peer may stay silent.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxEventSize = 4 << 10

	// DefaultTitle is used when no custom title is configured.
	DefaultTitle = "LED Dashboard"

	// titlePlaceholder is the marker in the page that gets replaced with the title.
	titlePlaceholder = "{{.Title}}"

	// OpSync is the op of the first message on every patch stream.
	OpSync dom.Op = "sync"
)

// Dispatcher handles UI events.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev ui.Event) error
}

// Sessions is implemented by dispatchers that keep per-viewer state. Every
// patch stream opens one session and closes it when the stream ends.
type Sessions interface {
	Open() (id string, patches <-chan dom.Patch)
	Close(id string)
}

// syncMessage opens every patch stream.
type syncMessage struct {
	Seq     uint64 `json:"seq"`
	Op      dom.Op `json:"op"`
	Session string `json:"session,omitempty"`
}

// SnapshotFunc returns the value served at /api/snapshot.
type SnapshotFunc func() any

// Server serves the dashboard page, its patch streams and event intake.
type Server struct {
	doc        *dom.Document
	dispatcher Dispatcher
	snapshot   SnapshotFunc
	port       int
	httpServer *http.Server
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// NewServer creates a new HTTP [Server].
//
// Parameters:
//   - doc: Live page model served at / and streamed as patches
//   - dispatcher: Receiver for UI events (may be nil to reject all events)
//   - snapshot: Source for /api/snapshot (may be nil)
//   - port: TCP port to listen on
//   - logger: Logger for server events
//
// The server is not started until [Server.Start] is called.
func NewServer(doc *dom.Document, dispatcher Dispatcher, snapshot SnapshotFunc, port int, logger *slog.Logger) *Server {
	return &Server{
		doc:        doc,
		dispatcher: dispatcher,
		snapshot:   snapshot,
		port:       port,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
}

// PageMarkup reads the page template from assets and substitutes the
// HTML-escaped title.
func PageMarkup(assets fs.FS, path, title string) (string, error) {
	content, err := fs.ReadFile(assets, path)
	if err != nil {
		return "", fmt.Errorf("failed to read page %s: %w", path, err)
	}
	if title == "" {
		title = DefaultTitle
	}
	return strings.ReplaceAll(string(content), titlePlaceholder, html.EscapeString(title)), nil
}

// Handler returns the router with every route registered.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handlePage).Methods(http.MethodGet)
	r.HandleFunc("/api/dom", s.handleDOM).Methods(http.MethodGet)
	r.HandleFunc("/api/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/api/sse", s.handleSSE).Methods(http.MethodGet)
	r.HandleFunc("/api/ws", s.handleWS).Methods(http.MethodGet)
	r.HandleFunc("/api/events", s.handleEvent).Methods(http.MethodPost)
	return r
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts derive from ctx so long-lived streams end on shutdown
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

// handlePage renders the live document.
func (s *Server) handlePage(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	if _, err := s.doc.Render(&buf); err != nil {
		s.logger.Error("failed to render page", "error", err)
		http.Error(w, "Dashboard unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

func (s *Server) handleDOM(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.doc.Elements())
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	if s.snapshot == nil {
		s.writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	s.writeJSON(w, http.StatusOK, s.snapshot())
}

// handleEvent accepts one UI event. Unknown or invalid events are 400;
// a failed LED action is 502 after the page has shown its notification.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxEventSize))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	ev, err := ui.Decode(data)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.dispatch(r.Context(), ev); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, ui.ErrUnknownEvent) || errors.Is(err, device.ErrInvalidAction) {
			status = http.StatusBadRequest
		}
		s.writeError(w, status, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) dispatch(ctx context.Context, ev ui.Event) error {
	if s.dispatcher == nil {
		return fmt.Errorf("%w: %s", ui.ErrUnknownEvent, ev.Type)
	}
	err := s.dispatcher.Dispatch(ctx, ev)
	switch {
	case err == nil:
	case errors.Is(err, ui.ErrUnknownEvent), errors.Is(err, device.ErrInvalidAction):
		s.logger.Debug("event rejected", "type", ev.Type, "error", err)
	default:
		s.logger.Warn("event failed", "type", ev.Type, "error", err)
	}
	return err
}

// handleSSE streams DOM patches via Server-Sent Events.
//
// The handler uses write deadlines to prevent goroutine leaks when clients are
// slow or disconnected. Without deadlines, a blocked write would prevent
// the handler from detecting context cancellation or channel closure.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)
	deadlinesSupported := true

	writeAndFlush := func(v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
				// deadline not supported by underlying connection, continue without
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// subscribe before reading seq so no patch falls between the two
	ch := s.doc.Subscribe()
	defer s.doc.Unsubscribe(ch)

	session, local := s.openSession()
	defer s.closeSession(session)

	if err := writeAndFlush(syncMessage{Seq: s.doc.Seq(), Op: OpSync, Session: session}); err != nil {
		return
	}

	for {
		select {
		case p, ok := <-ch:
			if !ok {
				return
			}
			if err := writeAndFlush(p); err != nil {
				return
			}

		case p := <-local:
			if err := writeAndFlush(p); err != nil {
				return
			}

		case <-r.Context().Done():
			// fires on both client disconnect and server shutdown
			return
		}
	}
}

// openSession starts a viewer session when the dispatcher keeps them. The
// returned channel is nil otherwise and never fires.
func (s *Server) openSession() (string, <-chan dom.Patch) {
	if sessions, ok := s.dispatcher.(Sessions); ok {
		return sessions.Open()
	}
	return "", nil
}

func (s *Server) closeSession(id string) {
	if sessions, ok := s.dispatcher.(Sessions); ok && id != "" {
		sessions.Close(id)
	}
}

// handleWS runs a WebSocket session. Patches are written from this
// goroutine; events are read and dispatched from a second one.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	ch := s.doc.Subscribe()
	defer s.doc.Unsubscribe(ch)

	session, local := s.openSession()
	defer s.closeSession(session)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		defer cancel()
		s.readEvents(ctx, conn, session)
	}()

	s.writePatches(ctx, conn, ch, local, session)

	deadline := time.Now().Add(streamWriteTimeout)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	_ = conn.Close()
	<-readerDone
}

func (s *Server) writePatches(ctx context.Context, conn *websocket.Conn, ch, local <-chan dom.Patch, session string) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	write := func(v any) error {
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		return conn.WriteJSON(v)
	}

	if err := write(syncMessage{Seq: s.doc.Seq(), Op: OpSync, Session: session}); err != nil {
		return
	}

	for {
		select {
		case p, ok := <-ch:
			if !ok {
				return
			}
			if err := write(p); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				return
			}

		case p := <-local:
			if err := write(p); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
				return
			}

		case <-ctx.Done():
			return
		}
	}
}

// readEvents dispatches incoming events on behalf of session. The
// connection decides the session, not the event body.
func (s *Server) readEvents(ctx context.Context, conn *websocket.Conn, session string) {
	conn.SetReadLimit(maxEventSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		ev, err := ui.Decode(data)
		if err != nil {
			s.logger.Debug("invalid websocket event", "error", err)
			continue
		}
		ev.Session = session
		// failures are already logged and shown on the page
		_ = s.dispatch(ctx, ev)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
