// Package gate is a minimal application-server framework implementing an
// asynchronous gateway protocol between a network-facing server process
// and application code.
//
// The external server owns the wire: TCP, TLS, HTTP parsing, websocket
// framing. For each connection it hands the engine a scope descriptor and
// a pair of ordered message channels, then calls Handle. The engine
// resolves a route, runs the registered middleware chain and endpoint,
// and drives the exchange through a per-protocol state machine so the
// legal event order is enforced no matter what application code does.
//
// Three connection lifecycles are covered: process startup/shutdown
// (lifespan), HTTP request/response exchanges, and persistent
// bidirectional socket sessions.
//
// # Quick Start
//
// Register routes on an App, then hand Handle to the server:
//
//	app := gate.New()
//
//	app.HTTP("/items/{id}", gate.HandlerFunc(func(ctx context.Context, scope *gate.Scope, ch gate.Channel) error {
//	    conn := gate.NewHTTPConn(scope, ch)
//	    id, _ := scope.Param("id")
//	    return conn.SendResponse(ctx, gate.PlainText(200, "item "+id))
//	}))
//
//	app.Socket("/feed", gate.HandlerFunc(func(ctx context.Context, scope *gate.Scope, ch gate.Channel) error {
//	    conn := gate.NewSocketConn(scope, ch)
//	    if err := conn.Connect(ctx); err != nil {
//	        return err
//	    }
//	    if err := conn.Accept(ctx, ""); err != nil {
//	        return err
//	    }
//	    // ... frames ...
//	    return conn.Close(ctx, 1000)
//	}))
//
//	// per connection, on the server side:
//	err := app.Handle(ctx, scope, channel)
//
// # Design
//
// The package separates concerns into three layers:
//
//   - Channels: the ordered, bidirectional event stream for one
//     connection, supplied by the server (Receiver, Sender, Join, Pipe)
//   - Engine: route resolution, chain execution, fault classification
//     (App.Handle)
//   - State machines: per-protocol guards wrapping the channel, so
//     sequencing violations are detected at the boundary with a uniform
//     taxonomy regardless of which middleware or endpoint caused them
//
// Handlers see only the guarded channel. Sends and receives are the two
// suspension points; both take a context and observe cancellation there.
//
// # Routing
//
// Routes are (pattern, protocol, handler chain) entries. Patterns use
// {name} parameter segments:
//
//	app.HTTP("/users/{id}", handler)
//
// Resolution is deterministic: entries are tried in registration order
// and the first match wins. The table freezes on the first Handle call;
// later registration fails with ErrTableFrozen. Unmatched HTTP scopes get
// a synthesized not-found response, unmatched socket connects are
// rejected, and an absent lifespan handler completes both phases
// immediately.
//
// # Middleware
//
// Middleware wraps handlers outermost-first:
//
//	app.Use(gate.RateLimit(100, 20))
//	app.HTTP("/admin", endpoint, requireAuth)
//
// A middleware may annotate the scope (copy-on-write via WithValue), wrap
// the channel, or short-circuit — in which case it must send the
// protocol-legal terminal event itself before returning.
//
// # Error Handling
//
// Every fault escaping a handler chain is caught at the Handle boundary
// and classified: ProtocolSequenceError for ordering bugs,
// LifespanStartupError for fatal startup failures, ApplicationError
// (wrapping the cause, panics included) for everything else. The engine
// ends the connection per the protocol — a generic 500-equivalent when no
// response bytes have gone out, forced closure afterwards — and returns
// the classified error for the server's error reporting. Clients never
// see internal detail.
//
// # Hooks
//
// Observability attaches through functional options, without coupling the
// engine to a logging or metrics system:
//
//	app := gate.New(
//	    gate.WithOnSuccess(func(ctx context.Context, protocol, pattern string, d time.Duration) {
//	        metrics.Timing("gate.dispatch", d, "route:"+pattern)
//	    }),
//	    gate.WithOnViolation(func(ctx context.Context, v *gate.ProtocolSequenceError) {
//	        logger.Error("sequencing bug", "detail", v)
//	    }),
//	)
//
// # Wire Codec
//
// External servers that deliver scopes and events as JSON frames can use
// DecodeScope, DecodeEvent and EncodeEvent; frames carry exactly the
// per-type field sets of the gateway protocol, with byte fields base64
// encoded.
//
// # Serving
//
// The nethttp subpackage bridges net/http into this contract for
// development and tests, including websocket upgrades for socket
// sessions. Production deployments sit behind whatever server implements
// the gateway protocol.
package gate
