package gate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
)

// scriptChannel replays a scripted inbound sequence and records every
// outbound event. Empty script means the connection is gone.
type scriptChannel struct {
	inbound []Event
	sent    []Event
}

func (c *scriptChannel) Receive(ctx context.Context) (Event, error) {
	if len(c.inbound) == 0 {
		return Event{}, ErrChannelClosed
	}
	ev := c.inbound[0]
	c.inbound = c.inbound[1:]
	return ev, nil
}

func (c *scriptChannel) Send(ctx context.Context, ev Event) error {
	c.sent = append(c.sent, ev)
	return nil
}

func quietApp(opts ...Option) *App {
	opts = append(opts, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	return New(opts...)
}

func httpScope(path string) *Scope {
	return &Scope{Type: ScopeHTTP, Method: "GET", Path: path}
}

func socketScope(path string) *Scope {
	return &Scope{Type: ScopeSocket, Path: path}
}

func eventTypes(events []Event) []string {
	types := make([]string, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

func TestApp_Handle(t *testing.T) {
	t.Run("rejects unknown scope type", func(t *testing.T) {
		app := quietApp()
		err := app.Handle(context.Background(), &Scope{Type: "gopher"}, &scriptChannel{})

		var unknown *UnknownProtocolError
		if !errors.As(err, &unknown) {
			t.Fatalf("error = %v, want UnknownProtocolError", err)
		}
	})

	t.Run("rejects malformed http scope", func(t *testing.T) {
		app := quietApp()
		err := app.Handle(context.Background(), &Scope{Type: ScopeHTTP}, &scriptChannel{})
		if err == nil {
			t.Fatal("expected error for http scope without method and path")
		}
	})

	t.Run("freezes the table on first dispatch", func(t *testing.T) {
		app := quietApp()
		if err := app.HTTP("/", okHandler("hi")); err != nil {
			t.Fatal(err)
		}

		_ = app.Handle(context.Background(), httpScope("/"), &scriptChannel{})

		if err := app.HTTP("/late", okHandler("late")); !errors.Is(err, ErrTableFrozen) {
			t.Errorf("error = %v, want ErrTableFrozen", err)
		}
		if err := app.Use(func(next Handler) Handler { return next }); !errors.Is(err, ErrTableFrozen) {
			t.Errorf("Use error = %v, want ErrTableFrozen", err)
		}
	})

	t.Run("recovers handler panics", func(t *testing.T) {
		app := quietApp()
		_ = app.HTTP("/boom", HandlerFunc(func(ctx context.Context, scope *Scope, ch Channel) error {
			panic("kaboom")
		}))

		ch := &scriptChannel{}
		err := app.Handle(context.Background(), httpScope("/boom"), ch)

		var appErr *ApplicationError
		if !errors.As(err, &appErr) {
			t.Fatalf("error = %v, want ApplicationError", err)
		}
		got := eventTypes(ch.sent)
		want := []string{EventHTTPResponseStart, EventHTTPResponseBody}
		if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
			t.Errorf("sent = %v, want synthesized failure response %v", got, want)
		}
		if ch.sent[0].Status != 500 {
			t.Errorf("status = %d, want 500", ch.sent[0].Status)
		}
	})

	t.Run("faults are isolated per connection", func(t *testing.T) {
		app := quietApp()
		_ = app.HTTP("/boom", HandlerFunc(func(ctx context.Context, scope *Scope, ch Channel) error {
			return errors.New("broken")
		}))
		_ = app.HTTP("/ok", okHandler("fine"))

		if err := app.Handle(context.Background(), httpScope("/boom"), &scriptChannel{}); err == nil {
			t.Fatal("expected error from faulting handler")
		}

		ch := &scriptChannel{}
		if err := app.Handle(context.Background(), httpScope("/ok"), ch); err != nil {
			t.Fatalf("healthy route failed after fault elsewhere: %v", err)
		}
		if string(ch.sent[1].Body) != "fine" {
			t.Errorf("body = %q, want %q", ch.sent[1].Body, "fine")
		}
	})

	t.Run("concurrent first dispatches all see composed chains", func(t *testing.T) {
		app := quietApp()
		marker := func(next Handler) Handler {
			return HandlerFunc(func(ctx context.Context, scope *Scope, ch Channel) error {
				return next.Handle(ctx, scope, ch)
			})
		}
		if err := app.Use(marker); err != nil {
			t.Fatal(err)
		}
		if err := app.HTTP("/items/{id}", okHandler("ok")); err != nil {
			t.Fatal(err)
		}

		const dispatches = 64
		errs := make([]error, dispatches)
		channels := make([]*scriptChannel, dispatches)

		var wg sync.WaitGroup
		for i := 0; i < dispatches; i++ {
			channels[i] = &scriptChannel{}
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = app.Handle(context.Background(), httpScope("/items/7"), channels[i])
			}(i)
		}
		wg.Wait()

		for i := 0; i < dispatches; i++ {
			if errs[i] != nil {
				t.Fatalf("dispatch %d: %v", i, errs[i])
			}
			if len(channels[i].sent) == 0 || channels[i].sent[0].Status != 200 {
				t.Fatalf("dispatch %d sent = %+v, want a 200", i, channels[i].sent)
			}
		}
	})

	t.Run("benign closure is not an error", func(t *testing.T) {
		app := quietApp()
		_ = app.HTTP("/", HandlerFunc(func(ctx context.Context, scope *Scope, ch Channel) error {
			_, err := ch.Receive(ctx)
			return err
		}))

		// Empty script: receive reports the channel closed.
		err := app.Handle(context.Background(), httpScope("/"), &scriptChannel{})
		if err != nil {
			t.Errorf("err = %v, want nil for closed channel", err)
		}
	})
}

// okHandler responds 200 with the given body.
func okHandler(body string) Handler {
	return HandlerFunc(func(ctx context.Context, scope *Scope, ch Channel) error {
		return NewHTTPConn(scope, ch).SendResponse(ctx, PlainText(200, body))
	})
}
