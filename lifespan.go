package gate

import (
	"context"
	"errors"
)

// Lifespan state machine phases. One cycle per process; no restart.
const (
	stateLifespanIdle     = "idle"
	stateLifespanStarting = "starting"
	stateLifespanStarted  = "started"
	stateLifespanStopping = "stopping"
	stateLifespanStopped  = "stopped"
	stateLifespanFailed   = "failed"
)

// lifespanChannel enforces the process startup/shutdown protocol:
// receive lifespan.startup, answer complete or failed, then the same for
// shutdown.
type lifespanChannel struct {
	inner Channel
	state string
}

func newLifespanChannel(inner Channel) *lifespanChannel {
	return &lifespanChannel{inner: inner, state: stateLifespanIdle}
}

func (c *lifespanChannel) violation(event, reason string) error {
	return &ProtocolSequenceError{Protocol: ScopeLifespan, State: c.state, Event: event, Reason: reason}
}

// Receive yields the next lifecycle event from the server.
func (c *lifespanChannel) Receive(ctx context.Context) (Event, error) {
	switch c.state {
	case stateLifespanStopped, stateLifespanFailed:
		return Event{}, ErrChannelClosed
	}

	ev, err := c.inner.Receive(ctx)
	if err != nil {
		return Event{}, err
	}

	switch ev.Type {
	case EventLifespanStartup:
		if c.state != stateLifespanIdle {
			return Event{}, c.violation(ev.Type, "startup already received")
		}
		c.state = stateLifespanStarting
		return ev, nil
	case EventLifespanShutdown:
		if c.state != stateLifespanStarted {
			return Event{}, c.violation(ev.Type, "shutdown before startup completed")
		}
		c.state = stateLifespanStopping
		return ev, nil
	default:
		return Event{}, c.violation(ev.Type, "unexpected inbound event")
	}
}

// Send answers the pending lifecycle phase.
func (c *lifespanChannel) Send(ctx context.Context, ev Event) error {
	if ev.Protocol() != ScopeLifespan {
		return c.violation(ev.Type, "event protocol does not match connection")
	}

	switch ev.Type {
	case EventLifespanStartupComplete, EventLifespanStartupFailed:
		if c.state != stateLifespanStarting {
			return c.violation(ev.Type, "no startup pending")
		}
		if err := c.inner.Send(ctx, ev); err != nil {
			return err
		}
		if ev.Type == EventLifespanStartupComplete {
			c.state = stateLifespanStarted
		} else {
			c.state = stateLifespanFailed
		}
		return nil

	case EventLifespanShutdownComplete, EventLifespanShutdownFailed:
		if c.state != stateLifespanStopping {
			return c.violation(ev.Type, "no shutdown pending")
		}
		if err := c.inner.Send(ctx, ev); err != nil {
			return err
		}
		if ev.Type == EventLifespanShutdownComplete {
			c.state = stateLifespanStopped
		} else {
			c.state = stateLifespanFailed
		}
		return nil

	default:
		return c.violation(ev.Type, "illegal outbound event")
	}
}

// runIdle completes both phases on the application's behalf.
// Used when no lifespan handler is registered, and to finish the cycle
// when a handler returns before shutdown.
func (c *lifespanChannel) runIdle(ctx context.Context) error {
	for {
		ev, err := c.Receive(ctx)
		if err != nil {
			if errors.Is(err, ErrChannelClosed) {
				return nil
			}
			return err
		}
		switch ev.Type {
		case EventLifespanStartup:
			if err := c.Send(ctx, Event{Type: EventLifespanStartupComplete}); err != nil {
				return err
			}
		case EventLifespanShutdown:
			if err := c.Send(ctx, Event{Type: EventLifespanShutdownComplete}); err != nil {
				return err
			}
			return nil
		}
	}
}
