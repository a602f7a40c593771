package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// App is the dispatch engine: it owns the route table, the app-wide
// middleware order, and the hook set. Configure it before serving; the
// table freezes on the first Handle call and every later registration
// fails with ErrTableFrozen. A frozen App is immutable and safe for any
// number of concurrent Handle calls.
//
// Usage:
//  1. Create an app with New
//  2. Register routes with HTTP, Socket, Lifespan (or Route)
//  3. Add app-wide middleware with Use
//  4. Hand Handle to the external server as the application callable
type App struct {
	routes     table
	middleware []Middleware
	hooks      hooks

	logger      *slog.Logger
	notFound    Response
	serverError Response
}

// New creates an App with the given options.
//
// Example:
//
//	app := gate.New(
//	    gate.WithOnFailure(func(ctx context.Context, protocol, pattern string, err error, d time.Duration) {
//	        logger.Error("dispatch failed", "route", pattern, "error", err)
//	    }),
//	    gate.WithNotFound(gate.PlainText(404, "nothing here")),
//	)
func New(opts ...Option) *App {
	a := &App{
		logger:      slog.Default(),
		notFound:    PlainText(404, "Not Found"),
		serverError: PlainText(500, "Internal Server Error"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Use appends app-wide middleware, applied to every route outermost in
// the order given. Fails once the table is frozen.
func (a *App) Use(mw ...Middleware) error {
	if a.routes.frozen.Load() {
		return ErrTableFrozen
	}
	a.middleware = append(a.middleware, mw...)
	return nil
}

// Route registers a handler chain for a (pattern, protocol) pair.
// Patterns are slash-separated with {name} parameter segments. The first
// matching registration wins when patterns overlap.
func (a *App) Route(pattern, protocol string, endpoint Handler, mw ...Middleware) error {
	switch protocol {
	case ScopeLifespan, ScopeHTTP, ScopeSocket:
	default:
		return &UnknownProtocolError{Type: protocol}
	}
	return a.routes.add(pattern, protocol, endpoint, mw...)
}

// HTTP registers a handler chain for HTTP request scopes.
func (a *App) HTTP(pattern string, endpoint Handler, mw ...Middleware) error {
	return a.routes.add(pattern, ScopeHTTP, endpoint, mw...)
}

// Socket registers a handler chain for socket-session scopes.
func (a *App) Socket(pattern string, endpoint Handler, mw ...Middleware) error {
	return a.routes.add(pattern, ScopeSocket, endpoint, mw...)
}

// Lifespan registers the process startup/shutdown handler. At most one;
// with none registered, both phases complete immediately.
func (a *App) Lifespan(endpoint Handler, mw ...Middleware) error {
	return a.routes.add("/", ScopeLifespan, endpoint, mw...)
}

// Handle drives one connection: it validates the scope, selects the
// protocol state machine, resolves the route, and supervises the handler
// chain through a guarded channel. Application faults never propagate
// raw; they are classified and converted into the protocol's failure
// behavior, and the classified error is returned as the external
// server's error-channel report. A nil return means the connection ended
// within its protocol contract.
func (a *App) Handle(ctx context.Context, scope *Scope, channel Channel) error {
	a.routes.freeze(a.middleware)

	if scope == nil {
		return fmt.Errorf("nil scope")
	}
	if err := scope.validate(); err != nil {
		return err
	}

	switch scope.Type {
	case ScopeLifespan:
		return a.handleLifespan(ctx, scope, channel)
	case ScopeHTTP:
		return a.handleHTTP(ctx, scope, channel)
	default:
		return a.handleSocket(ctx, scope, channel)
	}
}

// invoke runs a handler chain, converting panics into errors so a fault
// in one connection never takes down its peer connections.
func (a *App) invoke(ctx context.Context, h Handler, scope *Scope, ch Channel) (err error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("panic in handler", "protocol", scope.Type, "path", scope.Path, "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.Handle(ctx, scope, ch)
}

// closedBenignly reports errors that mean the connection is simply gone:
// client disconnect or cancellation from the external server. Nothing to
// report, nothing left to send.
func closedBenignly(err error) bool {
	return errors.Is(err, ErrChannelClosed) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (a *App) handleHTTP(ctx context.Context, scope *Scope, channel Channel) error {
	hc := newHTTPChannel(channel)

	match := a.routes.resolve(scope)
	if match == nil {
		a.hooks.noRoute(ctx, scope.Type, scope.Path)
		a.logger.Debug("dispatch", "error", &RouteNotFoundError{Protocol: scope.Type, Path: scope.Path})
		return a.respond(ctx, hc, a.notFound)
	}
	if match.Params != nil {
		scope = scope.WithParams(match.Params)
	}

	a.hooks.dispatch(ctx, scope.Type, match.Route.Pattern)
	start := time.Now()
	err := a.invoke(ctx, match.Route.composed, scope, hc)
	duration := time.Since(start)

	if err == nil && !hc.complete() {
		err = &ProtocolSequenceError{
			Protocol: ScopeHTTP,
			State:    hc.state,
			Reason:   "handler returned without completing the response",
		}
	}
	if err == nil {
		a.hooks.success(ctx, scope.Type, match.Route.Pattern, duration)
		return nil
	}
	if closedBenignly(err) {
		return nil
	}

	err = a.classify(ctx, err, ScopeHTTP, match.Route.Pattern)
	a.hooks.failure(ctx, scope.Type, match.Route.Pattern, err, duration)

	// Before any bytes went out a generic failure response is still
	// possible; after that the partial response is forcibly closed by
	// the server when we surface the error.
	if !hc.started() {
		if serr := a.respond(ctx, hc, a.serverError); serr != nil && !closedBenignly(serr) {
			a.logger.Debug("failed to synthesize error response", "error", serr)
		}
	}
	return err
}

func (a *App) handleSocket(ctx context.Context, scope *Scope, channel Channel) error {
	sc := newSocketChannel(channel, a.logger)

	match := a.routes.resolve(scope)
	if match == nil {
		a.hooks.noRoute(ctx, scope.Type, scope.Path)
		a.logger.Debug("dispatch", "error", &RouteNotFoundError{Protocol: scope.Type, Path: scope.Path})
		// Consume the pending connect, then turn the session away.
		if _, err := sc.Receive(ctx); err != nil {
			return nil
		}
		_ = sc.Send(ctx, Event{Type: EventSocketReject})
		return nil
	}
	if match.Params != nil {
		scope = scope.WithParams(match.Params)
	}

	a.hooks.dispatch(ctx, scope.Type, match.Route.Pattern)
	start := time.Now()
	err := a.invoke(ctx, match.Route.composed, scope, sc)
	duration := time.Since(start)

	if err == nil && sc.sendState == stateSocketConnecting {
		err = &ProtocolSequenceError{
			Protocol: ScopeSocket,
			State:    sc.sendState,
			Reason:   "handler returned without accepting or rejecting the connect",
		}
	}
	if err == nil {
		a.hooks.success(ctx, scope.Type, match.Route.Pattern, duration)
		if !sc.terminal() {
			_ = sc.Send(ctx, CloseFrame(1000))
		}
		return nil
	}
	if closedBenignly(err) {
		return nil
	}

	err = a.classify(ctx, err, ScopeSocket, match.Route.Pattern)
	a.hooks.failure(ctx, scope.Type, match.Route.Pattern, err, duration)

	if !sc.terminal() {
		if sc.accepted() {
			_ = sc.Send(ctx, CloseFrame(1011))
		} else {
			_ = sc.Send(ctx, Event{Type: EventSocketReject})
		}
	}
	return err
}

func (a *App) handleLifespan(ctx context.Context, scope *Scope, channel Channel) error {
	lc := newLifespanChannel(channel)

	match := a.routes.resolve(scope)
	if match == nil {
		// No lifespan handler: both phases complete immediately.
		start := time.Now()
		err := lc.runIdle(ctx)
		if err == nil || closedBenignly(err) {
			return nil
		}
		err = a.classify(ctx, err, ScopeLifespan, "")
		a.hooks.failure(ctx, scope.Type, "", err, time.Since(start))
		return err
	}

	a.hooks.dispatch(ctx, scope.Type, match.Route.Pattern)
	start := time.Now()
	err := a.invoke(ctx, match.Route.composed, scope, lc)
	duration := time.Since(start)

	if err != nil {
		if closedBenignly(err) {
			return nil
		}
		err = a.classify(ctx, err, ScopeLifespan, match.Route.Pattern)
		a.hooks.failure(ctx, scope.Type, match.Route.Pattern, err, duration)

		switch lc.state {
		case stateLifespanIdle:
			// Faulted before the startup event arrived; consume it so
			// the failure can still be reported on the wire.
			if _, rerr := lc.Receive(ctx); rerr == nil {
				_ = lc.Send(ctx, Event{Type: EventLifespanStartupFailed, Message: err.Error()})
			}
			return &LifespanStartupError{Err: err}
		case stateLifespanStarting:
			_ = lc.Send(ctx, Event{Type: EventLifespanStartupFailed, Message: err.Error()})
			return &LifespanStartupError{Err: err}
		case stateLifespanStopping:
			_ = lc.Send(ctx, Event{Type: EventLifespanShutdownFailed, Message: err.Error()})
			return err
		default:
			return err
		}
	}

	a.hooks.success(ctx, scope.Type, match.Route.Pattern, duration)

	// A handler that returns early hands the rest of the cycle back.
	switch lc.state {
	case stateLifespanStopped, stateLifespanFailed:
		return nil
	case stateLifespanStarting:
		if serr := lc.Send(ctx, Event{Type: EventLifespanStartupComplete}); serr != nil {
			return serr
		}
	case stateLifespanStopping:
		return lc.Send(ctx, Event{Type: EventLifespanShutdownComplete})
	}
	if err := lc.runIdle(ctx); err != nil && !closedBenignly(err) {
		return a.classify(ctx, err, ScopeLifespan, match.Route.Pattern)
	}
	return nil
}

// classify wraps unrecognized handler errors as ApplicationError;
// sequence violations pass through with their hook fired.
func (a *App) classify(ctx context.Context, err error, protocol, pattern string) error {
	var seq *ProtocolSequenceError
	if errors.As(err, &seq) {
		a.hooks.violation(ctx, seq)
		return err
	}
	return &ApplicationError{Protocol: protocol, Pattern: pattern, Err: err}
}

// respond sends a synthesized response through the guarded channel.
func (a *App) respond(ctx context.Context, ch Channel, resp Response) error {
	for _, ev := range resp.Events() {
		if err := ch.Send(ctx, ev); err != nil {
			if closedBenignly(err) {
				return nil
			}
			return err
		}
	}
	return nil
}
