package gate

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimit returns middleware applying a token bucket per client
// address. Denied HTTP requests get a 429 response; denied socket
// connects are rejected after the connect event is consumed. In both
// cases the middleware short-circuits and emits the terminal event
// itself, as the short-circuit contract requires. Lifespan dispatches
// and scopes without a client address pass through.
func RateLimit(rps float64, burst int) Middleware {
	limiter := newClientLimiter(rps, burst, 10*time.Minute)

	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, scope *Scope, channel Channel) error {
			if scope.Type == ScopeLifespan || scope.Client == "" {
				return next.Handle(ctx, scope, channel)
			}
			if limiter.allow(scope.Client, time.Now()) {
				return next.Handle(ctx, scope, channel)
			}

			switch scope.Type {
			case ScopeHTTP:
				for _, ev := range PlainText(429, "Too Many Requests").Events() {
					if err := channel.Send(ctx, ev); err != nil {
						return err
					}
				}
				return nil
			default:
				if _, err := channel.Receive(ctx); err != nil {
					return err
				}
				return channel.Send(ctx, Event{Type: EventSocketReject})
			}
		})
	}
}

// clientLimiter keeps one token bucket per key and periodically evicts
// idle entries.
type clientLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration

	mu    sync.Mutex
	byKey map[string]*limiterEntry
	hits  uint64
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(rps float64, burst int, idleTTL time.Duration) *clientLimiter {
	return &clientLimiter{
		limit:   rate.Limit(rps),
		burst:   burst,
		idleTTL: idleTTL,
		byKey:   make(map[string]*limiterEntry),
	}
}

// allow reports whether one token can be consumed for key at now.
func (l *clientLimiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byKey[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byKey[key] = e
	}
	e.lastSeen = now
	allowed := e.limiter.AllowN(now, 1)

	l.hits++
	if l.hits%512 == 0 {
		cutoff := now.Add(-l.idleTTL)
		for k, v := range l.byKey {
			if v.lastSeen.Before(cutoff) {
				delete(l.byKey, k)
			}
		}
	}

	return allowed
}
