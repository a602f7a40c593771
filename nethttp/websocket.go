package nethttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/veldra/gate"
)

func (b *Bridge) serveSocket(w http.ResponseWriter, r *http.Request) {
	scope := scopeFromRequest(r, gate.ScopeSocket)
	ch := &wsChannel{w: w, r: r, upgrader: &b.upgrader}

	if err := b.app.Handle(r.Context(), scope, ch); err != nil {
		b.logger.Error("socket dispatch failed", "path", r.URL.Path, "error", err)
	}

	// The upgrade hijacks the connection, so it must be closed here
	// even when the handler chain bailed out early.
	if ch.conn != nil {
		_ = ch.conn.Close()
	}
}

// wsChannel maps the socket-session event vocabulary onto a gorilla
// websocket connection. The upgrade is deferred until the application
// accepts the connect; a rejection before that point stays a plain HTTP
// refusal.
type wsChannel struct {
	w        http.ResponseWriter
	r        *http.Request
	upgrader *websocket.Upgrader

	conn        *websocket.Conn
	sentConnect bool
	closed      bool
}

func (c *wsChannel) Receive(ctx context.Context) (gate.Event, error) {
	if !c.sentConnect {
		c.sentConnect = true
		return gate.Event{Type: gate.EventSocketConnect}, nil
	}
	if c.conn == nil || c.closed {
		return gate.Event{}, gate.ErrChannelClosed
	}

	messageType, data, err := c.conn.ReadMessage()
	if err != nil {
		c.closed = true
		code := websocket.CloseAbnormalClosure
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) {
			code = closeErr.Code
		}
		return gate.Event{Type: gate.EventSocketDisconnect, Code: code}, nil
	}

	if messageType == websocket.BinaryMessage {
		return gate.Event{Type: gate.EventSocketReceive, Bytes: data}, nil
	}
	return gate.Event{Type: gate.EventSocketReceive, Text: string(data)}, nil
}

func (c *wsChannel) Send(ctx context.Context, ev gate.Event) error {
	switch ev.Type {
	case gate.EventSocketAccept:
		var header http.Header
		if ev.Subprotocol != "" {
			header = http.Header{"Sec-Websocket-Protocol": {ev.Subprotocol}}
		}
		conn, err := c.upgrader.Upgrade(c.w, c.r, header)
		if err != nil {
			// Upgrade already wrote the HTTP error for us.
			c.closed = true
			return gate.ErrChannelClosed
		}
		c.conn = conn
		return nil

	case gate.EventSocketReject:
		if c.conn == nil {
			http.Error(c.w, "Forbidden", http.StatusForbidden)
		}
		c.closed = true
		return nil

	case gate.EventSocketSend:
		if c.conn == nil || c.closed {
			return gate.ErrChannelClosed
		}
		var err error
		if ev.Bytes != nil {
			err = c.conn.WriteMessage(websocket.BinaryMessage, ev.Bytes)
		} else {
			err = c.conn.WriteMessage(websocket.TextMessage, []byte(ev.Text))
		}
		if err != nil {
			c.closed = true
			return gate.ErrChannelClosed
		}
		return nil

	case gate.EventSocketClose:
		if c.conn != nil && !c.closed {
			code := ev.Code
			if code == 0 {
				code = websocket.CloseNormalClosure
			}
			deadline := time.Now().Add(time.Second)
			_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""), deadline)
		}
		c.closed = true
		return nil

	default:
		return gate.ErrChannelClosed
	}
}
