package gate

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPipe(t *testing.T) {
	t.Run("events come out in order", func(t *testing.T) {
		p := NewPipe(4)
		ctx := context.Background()

		for _, text := range []string{"a", "b", "c"} {
			if err := p.Send(ctx, TextFrame(text)); err != nil {
				t.Fatal(err)
			}
		}
		for _, want := range []string{"a", "b", "c"} {
			ev, err := p.Receive(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if ev.Text != want {
				t.Errorf("got %q, want %q", ev.Text, want)
			}
		}
	})

	t.Run("buffered events survive close", func(t *testing.T) {
		p := NewPipe(2)
		ctx := context.Background()

		_ = p.Send(ctx, TextFrame("last words"))
		p.Close()

		ev, err := p.Receive(ctx)
		if err != nil {
			t.Fatalf("buffered event lost on close: %v", err)
		}
		if ev.Text != "last words" {
			t.Errorf("text = %q", ev.Text)
		}

		if _, err := p.Receive(ctx); !errors.Is(err, ErrChannelClosed) {
			t.Errorf("drained receive = %v, want ErrChannelClosed", err)
		}
		if err := p.Send(ctx, TextFrame("x")); !errors.Is(err, ErrChannelClosed) {
			t.Errorf("send after close = %v, want ErrChannelClosed", err)
		}
	})

	t.Run("close unblocks a waiting receive", func(t *testing.T) {
		p := NewPipe(0)
		done := make(chan error, 1)
		go func() {
			_, err := p.Receive(context.Background())
			done <- err
		}()

		p.Close()
		select {
		case err := <-done:
			if !errors.Is(err, ErrChannelClosed) {
				t.Errorf("err = %v, want ErrChannelClosed", err)
			}
		case <-time.After(time.Second):
			t.Fatal("receive did not unblock on close")
		}
	})

	t.Run("cancellation unblocks send and receive", func(t *testing.T) {
		p := NewPipe(0)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if _, err := p.Receive(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("receive err = %v, want context.Canceled", err)
		}
		if err := p.Send(ctx, TextFrame("x")); !errors.Is(err, context.Canceled) {
			t.Errorf("send err = %v, want context.Canceled", err)
		}
	})

	t.Run("double close is safe", func(t *testing.T) {
		p := NewPipe(0)
		p.Close()
		p.Close()
	})
}

func TestJoin(t *testing.T) {
	var sent []Event
	ch := Join(
		ReceiverFunc(func(ctx context.Context) (Event, error) {
			return TextFrame("in"), nil
		}),
		SenderFunc(func(ctx context.Context, ev Event) error {
			sent = append(sent, ev)
			return nil
		}),
	)

	ev, err := ch.Receive(context.Background())
	if err != nil || ev.Text != "in" {
		t.Fatalf("receive = %+v, %v", ev, err)
	}
	if err := ch.Send(context.Background(), TextFrame("out")); err != nil {
		t.Fatal(err)
	}
	if len(sent) != 1 || sent[0].Text != "out" {
		t.Errorf("sent = %+v", sent)
	}
}

// Two pipes paired as a full connection driving a real dispatch.
func TestPipePairDrivesDispatch(t *testing.T) {
	app := quietApp()
	_ = app.HTTP("/", okHandler("pipe"))

	toApp := NewPipe(4)
	fromApp := NewPipe(4)
	toApp.Close() // no request body, connection otherwise quiet

	done := make(chan error, 1)
	go func() {
		done <- app.Handle(context.Background(), httpScope("/"), Join(toApp, fromApp))
	}()

	ctx := context.Background()
	start, err := fromApp.Receive(ctx)
	if err != nil || start.Type != EventHTTPResponseStart {
		t.Fatalf("first event = %+v, %v", start, err)
	}
	body, err := fromApp.Receive(ctx)
	if err != nil || string(body.Body) != "pipe" {
		t.Fatalf("body event = %+v, %v", body, err)
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}
