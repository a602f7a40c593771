package gate

import (
	"bytes"
	"context"
)

// HTTP state machine phases, as reported in ProtocolSequenceError.
const (
	stateResponseNotStarted = "response-not-started"
	stateResponseStarted    = "response-headers-sent"
	stateResponseStreaming  = "response-body-streaming"
	stateResponseComplete   = "response-complete"
)

// httpChannel enforces the HTTP lifecycle on a connection's channel.
// All sequencing rules live here, at the boundary, so violations carry a
// consistent taxonomy no matter which middleware or endpoint caused them.
type httpChannel struct {
	inner Channel

	state      string
	clientGone bool
}

func newHTTPChannel(inner Channel) *httpChannel {
	return &httpChannel{inner: inner, state: stateResponseNotStarted}
}

func (c *httpChannel) started() bool  { return c.state != stateResponseNotStarted }
func (c *httpChannel) complete() bool { return c.state == stateResponseComplete }

func (c *httpChannel) violation(event, reason string) error {
	return &ProtocolSequenceError{Protocol: ScopeHTTP, State: c.state, Event: event, Reason: reason}
}

// Receive pulls the next request body chunk or disconnect notice.
func (c *httpChannel) Receive(ctx context.Context) (Event, error) {
	if c.clientGone {
		return Event{}, ErrChannelClosed
	}

	ev, err := c.inner.Receive(ctx)
	if err != nil {
		return Event{}, err
	}

	switch ev.Type {
	case EventHTTPRequest:
		return ev, nil
	case EventHTTPDisconnect:
		c.clientGone = true
		return ev, nil
	default:
		return Event{}, c.violation(ev.Type, "unexpected inbound event")
	}
}

// Send enforces the legal order: one http.response.start, then one or
// more http.response.body chunks, the last flagged more_body=false.
func (c *httpChannel) Send(ctx context.Context, ev Event) error {
	if ev.Protocol() != ScopeHTTP {
		return c.violation(ev.Type, "event protocol does not match connection")
	}

	switch ev.Type {
	case EventHTTPResponseStart:
		if c.state != stateResponseNotStarted {
			return c.violation(ev.Type, "response already started")
		}
		if err := c.inner.Send(ctx, ev); err != nil {
			return err
		}
		c.state = stateResponseStarted
		return nil

	case EventHTTPResponseBody:
		switch c.state {
		case stateResponseNotStarted:
			return c.violation(ev.Type, "body before response start")
		case stateResponseComplete:
			return c.violation(ev.Type, "send after response complete")
		}
		if err := c.inner.Send(ctx, ev); err != nil {
			return err
		}
		if ev.MoreBody {
			c.state = stateResponseStreaming
		} else {
			c.state = stateResponseComplete
		}
		return nil

	default:
		return c.violation(ev.Type, "illegal outbound event")
	}
}

// HTTPConn is request/response sugar over an HTTP-guarded channel. The
// sequencing rules stay in the channel; these helpers only shape the
// common receive-all, respond-once exchange.
type HTTPConn struct {
	Channel
	scope *Scope
}

// NewHTTPConn wraps the guarded channel a handler received.
func NewHTTPConn(scope *Scope, channel Channel) *HTTPConn {
	return &HTTPConn{Channel: channel, scope: scope}
}

// Scope returns the connection's scope.
func (c *HTTPConn) Scope() *Scope { return c.scope }

// Body drains every request chunk into one buffer. Returns
// ErrChannelClosed if the client disconnects mid-body.
func (c *HTTPConn) Body(ctx context.Context) ([]byte, error) {
	var buf bytes.Buffer
	err := c.Stream(ctx, func(chunk []byte) error {
		_, _ = buf.Write(chunk)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Stream invokes fn for each request body chunk until the final chunk
// arrives. Returns ErrChannelClosed on client disconnect.
func (c *HTTPConn) Stream(ctx context.Context, fn func(chunk []byte) error) error {
	for {
		ev, err := c.Receive(ctx)
		if err != nil {
			return err
		}
		if ev.Type == EventHTTPDisconnect {
			return ErrChannelClosed
		}
		if err := fn(ev.Body); err != nil {
			return err
		}
		if !ev.MoreBody {
			return nil
		}
	}
}

// SendResponse renders the response into its event sequence and sends it.
func (c *HTTPConn) SendResponse(ctx context.Context, resp Response) error {
	for _, ev := range resp.Events() {
		if err := c.Send(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}
