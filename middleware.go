package gate

import "context"

// Handler is the capability every endpoint and composed chain implements:
// drive one connection through its protocol lifecycle using the guarded
// channel. The scope is read-only; derived state travels via WithParams
// and WithValue copies. A returned error is an application fault and is
// classified at the engine boundary.
type Handler interface {
	Handle(ctx context.Context, scope *Scope, channel Channel) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, scope *Scope, channel Channel) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, scope *Scope, channel Channel) error {
	return f(ctx, scope, channel)
}

// Middleware wraps a Handler, producing a new one. A middleware may run
// code before and after the inner handler, swap the scope for an
// annotated copy, wrap the channel to intercept receive/send, or
// short-circuit by not calling next at all. A short-circuiting middleware
// must itself send a protocol-legal terminal event (for example an HTTP
// response) before returning; the engine reports the omission as a
// ProtocolSequenceError.
type Middleware func(next Handler) Handler

// Chain composes middleware around an endpoint. The first middleware is
// outermost: Chain(h, a, b) runs a, then b, then h. Chains are built once
// at registration freeze and hold no per-connection state.
func Chain(endpoint Handler, middleware ...Middleware) Handler {
	h := endpoint
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}
