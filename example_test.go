package gate_test

import (
	"context"
	"fmt"

	"github.com/veldra/gate"
)

func ExampleApp_Handle() {
	app := gate.New()
	_ = app.HTTP("/hello/{name}", gate.HandlerFunc(func(ctx context.Context, scope *gate.Scope, ch gate.Channel) error {
		name, _ := scope.Param("name")
		conn := gate.NewHTTPConn(scope, ch)
		return conn.SendResponse(ctx, gate.PlainText(200, "hello "+name))
	}))

	// Emulate the external server with a pipe pair: one direction in, one
	// direction out.
	toApp := gate.NewPipe(1)
	fromApp := gate.NewPipe(4)
	toApp.Close()

	scope := &gate.Scope{Type: gate.ScopeHTTP, Method: "GET", Path: "/hello/gopher"}
	if err := app.Handle(context.Background(), scope, gate.Join(toApp, fromApp)); err != nil {
		fmt.Println("error:", err)
		return
	}

	start, _ := fromApp.Receive(context.Background())
	body, _ := fromApp.Receive(context.Background())
	fmt.Println(start.Status)
	fmt.Println(string(body.Body))
	// Output:
	// 200
	// hello gopher
}

func ExampleMiddleware() {
	logging := func(next gate.Handler) gate.Handler {
		return gate.HandlerFunc(func(ctx context.Context, scope *gate.Scope, ch gate.Channel) error {
			fmt.Println("dispatching", scope.Path)
			return next.Handle(ctx, scope, ch)
		})
	}

	app := gate.New()
	_ = app.Use(logging)
	_ = app.HTTP("/ping", gate.HandlerFunc(func(ctx context.Context, scope *gate.Scope, ch gate.Channel) error {
		return gate.NewHTTPConn(scope, ch).SendResponse(ctx, gate.PlainText(200, "pong"))
	}))

	toApp := gate.NewPipe(1)
	fromApp := gate.NewPipe(4)
	toApp.Close()

	scope := &gate.Scope{Type: gate.ScopeHTTP, Method: "GET", Path: "/ping"}
	_ = app.Handle(context.Background(), scope, gate.Join(toApp, fromApp))

	_, _ = fromApp.Receive(context.Background())
	body, _ := fromApp.Receive(context.Background())
	fmt.Println(string(body.Body))
	// Output:
	// dispatching /ping
	// pong
}

func ExampleEncodeEvent() {
	frame, _ := gate.EncodeEvent(gate.ResponseStart(204, nil))
	fmt.Println(string(frame))
	// Output: {"headers":[],"status":204,"type":"http.response.start"}
}

func ExampleDecodeScope() {
	scope, _ := gate.DecodeScope([]byte(`{"type":"http","method":"GET","path":"/items/7"}`))
	fmt.Println(scope.Method, scope.Path)
	// Output: GET /items/7
}
