package gate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type HooksSuite struct {
	suite.Suite
}

func TestHooksSuite(t *testing.T) {
	suite.Run(t, new(HooksSuite))
}

func (s *HooksSuite) TestDispatchAndSuccess() {
	var dispatched, succeeded []string
	var elapsed time.Duration

	app := quietApp(
		WithOnDispatch(func(ctx context.Context, protocol, pattern string) {
			dispatched = append(dispatched, protocol+" "+pattern)
		}),
		WithOnSuccess(func(ctx context.Context, protocol, pattern string, d time.Duration) {
			succeeded = append(succeeded, pattern)
			elapsed = d
		}),
	)
	s.Require().NoError(app.HTTP("/items/{id}", okHandler("ok")))

	err := app.Handle(context.Background(), httpScope("/items/7"), &scriptChannel{})
	s.Require().NoError(err)

	s.Equal([]string{"http /items/{id}"}, dispatched)
	s.Equal([]string{"/items/{id}"}, succeeded)
	s.GreaterOrEqual(elapsed, time.Duration(0))
}

func (s *HooksSuite) TestFailureReceivesClassifiedError() {
	var got error
	app := quietApp(
		WithOnFailure(func(ctx context.Context, protocol, pattern string, err error, d time.Duration) {
			got = err
		}),
	)
	s.Require().NoError(app.HTTP("/", HandlerFunc(func(ctx context.Context, scope *Scope, ch Channel) error {
		return errors.New("boom")
	})))

	err := app.Handle(context.Background(), httpScope("/"), &scriptChannel{})
	s.Error(err)

	appErr := new(ApplicationError)
	s.Require().ErrorAs(got, &appErr)
	s.Equal(ScopeHTTP, appErr.Protocol)
	s.Equal("/", appErr.Pattern)
}

func (s *HooksSuite) TestNoRoute() {
	var paths []string
	app := quietApp(
		WithOnNoRoute(func(ctx context.Context, protocol, path string) {
			paths = append(paths, protocol+" "+path)
		}),
	)

	err := app.Handle(context.Background(), httpScope("/missing"), &scriptChannel{})
	s.Require().NoError(err)
	s.Equal([]string{"http /missing"}, paths)
}

func (s *HooksSuite) TestViolationFiresBeforeFailure() {
	var order []string
	var violation *ProtocolSequenceError

	app := quietApp(
		WithOnViolation(func(ctx context.Context, v *ProtocolSequenceError) {
			order = append(order, "violation")
			violation = v
		}),
		WithOnFailure(func(ctx context.Context, protocol, pattern string, err error, d time.Duration) {
			order = append(order, "failure")
		}),
	)
	s.Require().NoError(app.HTTP("/", HandlerFunc(func(ctx context.Context, scope *Scope, ch Channel) error {
		return ch.Send(ctx, ResponseBody([]byte("x"), false))
	})))

	err := app.Handle(context.Background(), httpScope("/"), &scriptChannel{})
	s.Error(err)

	s.Equal([]string{"violation", "failure"}, order)
	s.Require().NotNil(violation)
	s.Equal(ScopeHTTP, violation.Protocol)
	s.Equal(stateResponseNotStarted, violation.State)
}

func (s *HooksSuite) TestMultipleHooksRunInOrder() {
	var order []string
	app := quietApp(
		WithOnDispatch(func(ctx context.Context, protocol, pattern string) {
			order = append(order, "first")
		}),
		WithOnDispatch(func(ctx context.Context, protocol, pattern string) {
			order = append(order, "second")
		}),
	)
	s.Require().NoError(app.HTTP("/", okHandler("ok")))

	s.Require().NoError(app.Handle(context.Background(), httpScope("/"), &scriptChannel{}))
	s.Equal([]string{"first", "second"}, order)
}
