// Package nethttp bridges net/http into the gateway protocol. It adapts
// each incoming request into a scope and channel pair and dispatches it
// through a gate application: plain requests become http-scope
// connections, websocket upgrades become socket sessions. Intended for
// development and tests; production deployments sit behind a server that
// speaks the gateway protocol natively.
package nethttp

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/veldra/gate"
)

// Bridge is an http.Handler that serves a gate application.
type Bridge struct {
	app      gate.Handler
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithUpgrader overrides the websocket upgrader, e.g. to set origin
// checks or buffer sizes.
func WithUpgrader(u websocket.Upgrader) Option {
	return func(b *Bridge) {
		b.upgrader = u
	}
}

// WithLogger sets the bridge's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		b.logger = logger
	}
}

// New creates a Bridge dispatching to app, normally a *gate.App.
func New(app gate.Handler, opts ...Option) *Bridge {
	b := &Bridge{
		app:    app,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ServeHTTP implements http.Handler.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		b.serveSocket(w, r)
		return
	}
	b.serveRequest(w, r)
}

func (b *Bridge) serveRequest(w http.ResponseWriter, r *http.Request) {
	scope := scopeFromRequest(r, gate.ScopeHTTP)
	rx := &requestReceiver{
		body:    r.Body,
		buf:     make([]byte, 32<<10),
		reqDone: r.Context().Done(),
	}
	tx := &responseSender{w: w}

	if err := b.app.Handle(r.Context(), scope, gate.Join(rx, tx)); err != nil {
		b.logger.Error("http dispatch failed", "path", r.URL.Path, "error", err)
	}
}

// scopeFromRequest builds the connection scope for a request.
func scopeFromRequest(r *http.Request, scopeType string) *gate.Scope {
	headers := make([]gate.Header, 0, len(r.Header))
	for name, values := range r.Header {
		for _, v := range values {
			headers = append(headers, gate.Header{name, v})
		}
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	return &gate.Scope{
		Type:         scopeType,
		Method:       r.Method,
		Scheme:       scheme,
		HTTPVersion:  r.Proto,
		Server:       r.Host,
		Client:       r.RemoteAddr,
		Path:         r.URL.Path,
		RawQuery:     r.URL.RawQuery,
		Headers:      headers,
		Subprotocols: websocket.Subprotocols(r),
	}
}

// requestReceiver streams the request body as http.request events, then
// reports the client disconnect.
type requestReceiver struct {
	body     io.Reader
	buf      []byte
	reqDone  <-chan struct{}
	bodyDone bool
	gone     bool
	notified bool
}

func (rx *requestReceiver) Receive(ctx context.Context) (gate.Event, error) {
	if rx.notified {
		return gate.Event{}, gate.ErrChannelClosed
	}
	if rx.gone {
		rx.notified = true
		return gate.Event{Type: gate.EventHTTPDisconnect}, nil
	}
	if rx.bodyDone {
		select {
		case <-rx.reqDone:
			rx.notified = true
			return gate.Event{Type: gate.EventHTTPDisconnect}, nil
		case <-ctx.Done():
			return gate.Event{}, ctx.Err()
		}
	}

	n, err := rx.body.Read(rx.buf)
	chunk := append([]byte(nil), rx.buf[:n]...)
	switch {
	case err == nil:
		return gate.RequestChunk(chunk, true), nil
	case err == io.EOF:
		rx.bodyDone = true
		return gate.RequestChunk(chunk, false), nil
	default:
		// Body read failure means the client went away mid-request.
		// Bytes already read still belong to the stream, so a partial
		// chunk goes out before the disconnect notice.
		rx.bodyDone = true
		rx.gone = true
		if n > 0 {
			return gate.RequestChunk(chunk, true), nil
		}
		rx.notified = true
		return gate.Event{Type: gate.EventHTTPDisconnect}, nil
	}
}

// responseSender writes response events to the ResponseWriter. Event
// ordering is already guaranteed by the engine's state machine.
type responseSender struct {
	w http.ResponseWriter
}

func (tx *responseSender) Send(ctx context.Context, ev gate.Event) error {
	switch ev.Type {
	case gate.EventHTTPResponseStart:
		header := tx.w.Header()
		for _, h := range ev.Headers {
			header.Add(h.Name(), h.Value())
		}
		tx.w.WriteHeader(ev.Status)
	case gate.EventHTTPResponseBody:
		if len(ev.Body) > 0 {
			if _, err := tx.w.Write(ev.Body); err != nil {
				return gate.ErrChannelClosed
			}
		}
		if ev.MoreBody {
			if f, ok := tx.w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}
	return nil
}
