package gate

import (
	"context"
	"log/slog"
)

// Socket-session state machine phases, as reported in
// ProtocolSequenceError. The receive side tracks the client, the send
// side tracks the application; spec-wise they join into
// awaiting-connect -> accepted -> open -> closing -> closed.
const (
	stateSocketConnecting = "awaiting-connect"
	stateSocketOpen       = "open"
	stateSocketClosed     = "closed"
	stateSocketRejected   = "rejected"
)

// socketChannel enforces the socket-session lifecycle: the handler must
// accept or reject the connect before any data frame moves, frames are
// legal only while open, and sends after close are discarded, not fatal.
type socketChannel struct {
	inner  Channel
	logger *slog.Logger

	recvState string
	sendState string
}

func newSocketChannel(inner Channel, logger *slog.Logger) *socketChannel {
	return &socketChannel{
		inner:     inner,
		logger:    logger,
		recvState: stateSocketConnecting,
		sendState: stateSocketConnecting,
	}
}

func (c *socketChannel) accepted() bool { return c.sendState == stateSocketOpen }
func (c *socketChannel) terminal() bool {
	return c.sendState == stateSocketClosed || c.sendState == stateSocketRejected
}

func (c *socketChannel) violation(state, event, reason string) error {
	return &ProtocolSequenceError{Protocol: ScopeSocket, State: state, Event: event, Reason: reason}
}

// Receive pulls the next client event, tracking the client side of the
// session.
func (c *socketChannel) Receive(ctx context.Context) (Event, error) {
	if c.recvState == stateSocketClosed {
		return Event{}, ErrChannelClosed
	}

	ev, err := c.inner.Receive(ctx)
	if err != nil {
		return Event{}, err
	}
	if ev.Protocol() != ScopeSocket {
		return Event{}, c.violation(c.recvState, ev.Type, "event protocol does not match connection")
	}

	switch c.recvState {
	case stateSocketConnecting:
		if ev.Type != EventSocketConnect {
			return Event{}, c.violation(c.recvState, ev.Type, "expected socket.connect")
		}
		c.recvState = stateSocketOpen
		return ev, nil

	default: // open
		switch ev.Type {
		case EventSocketReceive:
			return ev, nil
		case EventSocketDisconnect:
			c.recvState = stateSocketClosed
			// The peer is gone; anything the application still sends
			// is a discard, not an error.
			c.sendState = stateSocketClosed
			return ev, nil
		default:
			return Event{}, c.violation(c.recvState, ev.Type, "unexpected inbound event")
		}
	}
}

// Send enforces the application side of the session. Sends after the
// session is closed are logged and dropped; the session is already gone.
func (c *socketChannel) Send(ctx context.Context, ev Event) error {
	if ev.Protocol() != ScopeSocket {
		return c.violation(c.sendState, ev.Type, "event protocol does not match connection")
	}

	switch c.sendState {
	case stateSocketConnecting:
		switch ev.Type {
		case EventSocketAccept:
			if err := c.inner.Send(ctx, ev); err != nil {
				return err
			}
			c.sendState = stateSocketOpen
			return nil
		case EventSocketReject:
			if err := c.inner.Send(ctx, ev); err != nil {
				return err
			}
			c.sendState = stateSocketRejected
			return nil
		case EventSocketClose:
			// Closing before accepting is a rejection.
			if err := c.inner.Send(ctx, Event{Type: EventSocketReject}); err != nil {
				return err
			}
			c.sendState = stateSocketRejected
			return nil
		default:
			return c.violation(c.sendState, ev.Type, "frame before socket.accept")
		}

	case stateSocketOpen:
		switch ev.Type {
		case EventSocketSend:
			return c.inner.Send(ctx, ev)
		case EventSocketClose:
			if err := c.inner.Send(ctx, ev); err != nil {
				return err
			}
			c.sendState = stateSocketClosed
			return nil
		default:
			return c.violation(c.sendState, ev.Type, "illegal outbound event")
		}

	default: // closed or rejected
		c.logger.Debug("discarding send on closed socket session", "event", ev.Type)
		return nil
	}
}

// SocketConn is session sugar over a socket-guarded channel.
type SocketConn struct {
	Channel
	scope *Scope
}

// NewSocketConn wraps the guarded channel a handler received.
func NewSocketConn(scope *Scope, channel Channel) *SocketConn {
	return &SocketConn{Channel: channel, scope: scope}
}

// Scope returns the connection's scope.
func (c *SocketConn) Scope() *Scope { return c.scope }

// Connect waits for the client's socket.connect event.
func (c *SocketConn) Connect(ctx context.Context) error {
	_, err := c.Receive(ctx)
	return err
}

// Accept accepts the pending connect. subprotocol may be empty.
func (c *SocketConn) Accept(ctx context.Context, subprotocol string) error {
	return c.Send(ctx, Accept(subprotocol))
}

// Reject rejects the pending connect.
func (c *SocketConn) Reject(ctx context.Context) error {
	return c.Send(ctx, Event{Type: EventSocketReject})
}

// SendText sends a text frame.
func (c *SocketConn) SendText(ctx context.Context, text string) error {
	return c.Send(ctx, TextFrame(text))
}

// SendBinary sends a binary frame.
func (c *SocketConn) SendBinary(ctx context.Context, data []byte) error {
	return c.Send(ctx, BinaryFrame(data))
}

// Close closes the session with the given close code.
func (c *SocketConn) Close(ctx context.Context, code int) error {
	return c.Send(ctx, CloseFrame(code))
}
