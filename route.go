package gate

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// Route is one registered (pattern, protocol, handler chain) entry.
type Route struct {
	Pattern  string
	Protocol string

	segments   []segment
	endpoint   Handler
	middleware []Middleware

	// composed is the full chain (app middleware, route middleware,
	// endpoint), built once when the table freezes.
	composed Handler
}

// segment is one path segment of a compiled pattern. A parameter segment
// has param set; a literal segment matches exactly.
type segment struct {
	literal string
	param   string
}

// Match is the result of resolving a scope against the table.
type Match struct {
	Route  *Route
	Params map[string]string
}

// table is the ordered, freeze-once route collection. Registration order
// is the tie-break for overlapping patterns; after freeze the table is
// immutable and safe for concurrent resolution without locking.
type table struct {
	routes []*Route
	frozen atomic.Bool
	once   sync.Once
}

// add registers a route. Fails with ErrTableFrozen once serving has
// begun and with DuplicateRouteError on an identical (pattern, protocol)
// pair.
func (t *table) add(pattern, protocol string, endpoint Handler, middleware ...Middleware) error {
	if t.frozen.Load() {
		return ErrTableFrozen
	}
	if endpoint == nil {
		return fmt.Errorf("route %s %q: nil handler", protocol, pattern)
	}
	for _, r := range t.routes {
		if r.Pattern == pattern && r.Protocol == protocol {
			return &DuplicateRouteError{Pattern: pattern, Protocol: protocol}
		}
	}

	segs, err := compilePattern(pattern)
	if err != nil {
		return err
	}

	t.routes = append(t.routes, &Route{
		Pattern:    pattern,
		Protocol:   protocol,
		segments:   segs,
		endpoint:   endpoint,
		middleware: middleware,
	})
	return nil
}

// freeze locks the table and composes each route's chain with the
// app-wide middleware outermost. Concurrent callers all wait until the
// chains are built, so no dispatch can observe a half-frozen table.
func (t *table) freeze(app []Middleware) {
	t.once.Do(func() {
		for _, r := range t.routes {
			h := Chain(r.endpoint, r.middleware...)
			r.composed = Chain(h, app...)
		}
		t.frozen.Store(true)
	})
}

// resolve finds the first registered route matching the scope's protocol
// and path, returning extracted path parameters. Lifespan routes ignore
// the path. Nil when nothing matches.
func (t *table) resolve(scope *Scope) *Match {
	for _, r := range t.routes {
		if r.Protocol != scope.Type {
			continue
		}
		if r.Protocol == ScopeLifespan {
			return &Match{Route: r}
		}
		if params, ok := r.match(scope.Path); ok {
			return &Match{Route: r, Params: params}
		}
	}
	return nil
}

// match tests the compiled pattern against a request path.
func (r *Route) match(path string) (map[string]string, bool) {
	parts := splitPath(path)
	if len(parts) != len(r.segments) {
		return nil, false
	}

	var params map[string]string
	for i, seg := range r.segments {
		if seg.param != "" {
			if params == nil {
				params = make(map[string]string)
			}
			params[seg.param] = parts[i]
			continue
		}
		if seg.literal != parts[i] {
			return nil, false
		}
	}
	return params, true
}

// compilePattern splits a pattern like /items/{id} into segments.
func compilePattern(pattern string) ([]segment, error) {
	if !strings.HasPrefix(pattern, "/") {
		return nil, fmt.Errorf("pattern %q must start with /", pattern)
	}

	parts := splitPath(pattern)
	segs := make([]segment, 0, len(parts))
	seen := make(map[string]bool)

	for _, part := range parts {
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			name := part[1 : len(part)-1]
			if name == "" {
				return nil, fmt.Errorf("pattern %q has an unnamed parameter", pattern)
			}
			if seen[name] {
				return nil, fmt.Errorf("pattern %q repeats parameter %q", pattern, name)
			}
			seen[name] = true
			segs = append(segs, segment{param: name})
			continue
		}
		segs = append(segs, segment{literal: part})
	}
	return segs, nil
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
