package gate

import (
	"context"
	"sync"
)

// Receiver yields the next inbound event for a connection. Receive blocks
// until an event is available, the context is cancelled, or the
// connection is gone (ErrChannelClosed). It is one of the two suspension
// points in the core.
type Receiver interface {
	Receive(ctx context.Context) (Event, error)
}

// Sender enqueues an outbound event. Send blocks only if the channel
// applies backpressure; it is the other suspension point. Sending on a
// closed connection returns ErrChannelClosed.
type Sender interface {
	Send(ctx context.Context, ev Event) error
}

// Channel is the bidirectional, ordered message channel pair supplied by
// the external server for one connection. Events are FIFO in each
// direction; no ordering holds across connections.
type Channel interface {
	Receiver
	Sender
}

// ReceiverFunc adapts a function to the Receiver interface.
type ReceiverFunc func(ctx context.Context) (Event, error)

// Receive implements Receiver.
func (f ReceiverFunc) Receive(ctx context.Context) (Event, error) { return f(ctx) }

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, ev Event) error

// Send implements Sender.
func (f SenderFunc) Send(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Join combines a receive operation and a send operation into a Channel.
// This is the shape external servers usually hand over: a (scope,
// receive, send) triple.
func Join(rx Receiver, tx Sender) Channel {
	return joined{rx: rx, tx: tx}
}

type joined struct {
	rx Receiver
	tx Sender
}

func (j joined) Receive(ctx context.Context) (Event, error) { return j.rx.Receive(ctx) }
func (j joined) Send(ctx context.Context, ev Event) error   { return j.tx.Send(ctx, ev) }

// Pipe is an in-memory FIFO event queue implementing both halves of the
// channel contract. One Pipe carries one direction; pair two to emulate a
// full connection. Used by the nethttp bridge and by tests.
type Pipe struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
}

// NewPipe creates a pipe with the given buffer size. A zero buffer makes
// every Send rendezvous with a Receive, which is the tightest
// backpressure setting.
func NewPipe(buffer int) *Pipe {
	return &Pipe{
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
	}
}

// Send enqueues ev, blocking while the buffer is full.
func (p *Pipe) Send(ctx context.Context, ev Event) error {
	select {
	case <-p.done:
		return ErrChannelClosed
	default:
	}
	select {
	case p.ch <- ev:
		return nil
	case <-p.done:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive dequeues the next event, blocking while the pipe is empty.
// Events already buffered remain receivable after Close; once drained,
// Receive returns ErrChannelClosed.
func (p *Pipe) Receive(ctx context.Context) (Event, error) {
	select {
	case ev := <-p.ch:
		return ev, nil
	default:
	}
	select {
	case ev := <-p.ch:
		return ev, nil
	case <-p.done:
		// Drain anything raced in before the close.
		select {
		case ev := <-p.ch:
			return ev, nil
		default:
			return Event{}, ErrChannelClosed
		}
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

// Close marks the pipe closed. Safe to call more than once.
func (p *Pipe) Close() {
	p.once.Do(func() { close(p.done) })
}
