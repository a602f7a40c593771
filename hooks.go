package gate

import (
	"context"
	"log/slog"
	"time"
)

// OnDispatchFunc is called just before a matched handler chain executes.
type OnDispatchFunc func(ctx context.Context, protocol, pattern string)

// OnSuccessFunc is called after a dispatch completes cleanly.
type OnSuccessFunc func(ctx context.Context, protocol, pattern string, duration time.Duration)

// OnFailureFunc is called after a dispatch ends with a classified error.
type OnFailureFunc func(ctx context.Context, protocol, pattern string, err error, duration time.Duration)

// OnNoRouteFunc is called when a scope matches no registered route. The
// engine still synthesizes the protocol-appropriate terminal response.
type OnNoRouteFunc func(ctx context.Context, protocol, path string)

// OnViolationFunc is called when a handler chain breaks its protocol's
// event ordering, before the failure hooks run.
type OnViolationFunc func(ctx context.Context, violation *ProtocolSequenceError)

// hooks holds all configured hook functions.
type hooks struct {
	onDispatch  []OnDispatchFunc
	onSuccess   []OnSuccessFunc
	onFailure   []OnFailureFunc
	onNoRoute   []OnNoRouteFunc
	onViolation []OnViolationFunc
}

func (h *hooks) dispatch(ctx context.Context, protocol, pattern string) {
	for _, fn := range h.onDispatch {
		fn(ctx, protocol, pattern)
	}
}

func (h *hooks) success(ctx context.Context, protocol, pattern string, d time.Duration) {
	for _, fn := range h.onSuccess {
		fn(ctx, protocol, pattern, d)
	}
}

func (h *hooks) failure(ctx context.Context, protocol, pattern string, err error, d time.Duration) {
	for _, fn := range h.onFailure {
		fn(ctx, protocol, pattern, err, d)
	}
}

func (h *hooks) noRoute(ctx context.Context, protocol, path string) {
	for _, fn := range h.onNoRoute {
		fn(ctx, protocol, path)
	}
}

func (h *hooks) violation(ctx context.Context, v *ProtocolSequenceError) {
	for _, fn := range h.onViolation {
		fn(ctx, v)
	}
}

// Option configures an App.
type Option func(*App)

// WithOnDispatch adds a hook called just before a handler chain executes.
// Multiple hooks are called in order.
//
// Example:
//
//	gate.WithOnDispatch(func(ctx context.Context, protocol, pattern string) {
//	    logger.Info("dispatching", "protocol", protocol, "route", pattern)
//	})
func WithOnDispatch(fn OnDispatchFunc) Option {
	return func(a *App) {
		a.hooks.onDispatch = append(a.hooks.onDispatch, fn)
	}
}

// WithOnSuccess adds a hook called after a dispatch completes cleanly.
// Multiple hooks are called in order.
//
// Example:
//
//	gate.WithOnSuccess(func(ctx context.Context, protocol, pattern string, d time.Duration) {
//	    metrics.Timing("gate.dispatch", d, "route:"+pattern)
//	})
func WithOnSuccess(fn OnSuccessFunc) Option {
	return func(a *App) {
		a.hooks.onSuccess = append(a.hooks.onSuccess, fn)
	}
}

// WithOnFailure adds a hook called after a dispatch ends with an error.
// The error is already classified (ApplicationError,
// ProtocolSequenceError, LifespanStartupError). Multiple hooks are called
// in order.
func WithOnFailure(fn OnFailureFunc) Option {
	return func(a *App) {
		a.hooks.onFailure = append(a.hooks.onFailure, fn)
	}
}

// WithOnNoRoute adds a hook called when no route matches a scope.
func WithOnNoRoute(fn OnNoRouteFunc) Option {
	return func(a *App) {
		a.hooks.onNoRoute = append(a.hooks.onNoRoute, fn)
	}
}

// WithOnViolation adds a hook called on protocol sequence violations.
func WithOnViolation(fn OnViolationFunc) Option {
	return func(a *App) {
		a.hooks.onViolation = append(a.hooks.onViolation, fn)
	}
}

// WithLogger sets the logger used for discarded sends and recovered
// panics. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

// WithNotFound overrides the response synthesized for unmatched HTTP
// routes.
func WithNotFound(resp Response) Option {
	return func(a *App) {
		a.notFound = resp
	}
}

// WithServerError overrides the response synthesized when a handler
// faults before any response bytes have been sent.
func WithServerError(resp Response) Option {
	return func(a *App) {
		a.serverError = resp
	}
}
