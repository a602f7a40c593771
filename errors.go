package gate

import (
	"errors"
	"fmt"
)

// ErrChannelClosed reports an operation on a channel whose connection is
// gone. Receives treat it as the terminal signal; sends where the
// protocol defines post-close sends as benign are discarded instead of
// returning it.
var ErrChannelClosed = errors.New("channel closed")

// ErrTableFrozen reports route registration after serving has begun.
var ErrTableFrozen = errors.New("route table is frozen")

// UnknownProtocolError reports a scope whose type names no supported
// protocol.
type UnknownProtocolError struct {
	Type string
}

func (e *UnknownProtocolError) Error() string {
	return fmt.Sprintf("unknown scope type %q", e.Type)
}

// DuplicateRouteError reports registration of a (pattern, protocol) pair
// that already exists in the table.
type DuplicateRouteError struct {
	Pattern  string
	Protocol string
}

func (e *DuplicateRouteError) Error() string {
	return fmt.Sprintf("duplicate route %s %q", e.Protocol, e.Pattern)
}

// RouteNotFoundError reports a scope that matched no registered route.
// The engine handles it by synthesizing the protocol's terminal response;
// it never surfaces as a fatal dispatch error.
type RouteNotFoundError struct {
	Protocol string
	Path     string
}

func (e *RouteNotFoundError) Error() string {
	return fmt.Sprintf("no %s route matches %q", e.Protocol, e.Path)
}

// ProtocolSequenceError reports an event that is illegal in the
// connection's current state: out-of-order sends, frames before a socket
// is accepted, events whose protocol does not match the connection, or a
// handler that returned without completing its response. Always a
// programming defect in application or middleware code.
type ProtocolSequenceError struct {
	// Protocol is the connection's protocol.
	Protocol string
	// State is the state machine's phase when the violation occurred.
	State string
	// Event is the attempted event type, if the violation involved one.
	Event string
	// Reason describes the violation.
	Reason string
}

func (e *ProtocolSequenceError) Error() string {
	if e.Event == "" {
		return fmt.Sprintf("%s protocol violation in state %s: %s", e.Protocol, e.State, e.Reason)
	}
	return fmt.Sprintf("%s protocol violation: %s event %q in state %s", e.Protocol, e.Reason, e.Event, e.State)
}

// LifespanStartupError reports a failed application startup. Fatal:
// serving must not proceed.
type LifespanStartupError struct {
	Err error
}

func (e *LifespanStartupError) Error() string {
	return fmt.Sprintf("application startup failed: %v", e.Err)
}

func (e *LifespanStartupError) Unwrap() error { return e.Err }

// ApplicationError wraps an unhandled fault that escaped a handler chain,
// including recovered panics. Caught at the engine boundary; the
// connection is ended protocol-legally and the error is returned for the
// external server's error reporting.
type ApplicationError struct {
	Protocol string
	Pattern  string
	Err      error
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("%s handler %q: %v", e.Protocol, e.Pattern, e.Err)
}

func (e *ApplicationError) Unwrap() error { return e.Err }
