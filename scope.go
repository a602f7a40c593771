package gate

import (
	"fmt"
	"strings"
)

// Scope type names, one per protocol lifecycle.
const (
	ScopeLifespan = "lifespan"
	ScopeHTTP     = "http"
	ScopeSocket   = "socket"
)

// Scope describes one connection. It is created by the external server,
// handed to the engine once per connection, and read-only from then on:
// annotation helpers (WithParams, WithValue) return copies and never
// mutate the original, so middleware can attach derived state without
// racing other references.
type Scope struct {
	// Type is one of ScopeLifespan, ScopeHTTP, ScopeSocket.
	Type string `json:"type"`

	Method      string   `json:"method,omitempty"`
	Scheme      string   `json:"scheme,omitempty"`
	HTTPVersion string   `json:"http_version,omitempty"`
	Server      string   `json:"server,omitempty"`
	Client      string   `json:"client,omitempty"`
	RootPath    string   `json:"root_path,omitempty"`
	Path        string   `json:"path,omitempty"`
	RawQuery    string   `json:"query_string,omitempty"`
	Headers     []Header `json:"headers,omitempty"`

	// Subprotocols lists the sub-protocols offered on a socket connect.
	Subprotocols []string `json:"subprotocols,omitempty"`

	params map[string]string
	values map[string]any
}

// Header returns the first value of the named header, case-insensitively.
// Empty string if absent.
func (s *Scope) Header(name string) string {
	for _, h := range s.Headers {
		if strings.EqualFold(h.Name(), name) {
			return h.Value()
		}
	}
	return ""
}

// Param returns the path parameter extracted during route resolution.
func (s *Scope) Param(name string) (string, bool) {
	v, ok := s.params[name]
	return v, ok
}

// WithParams returns a copy of the scope carrying the given path
// parameters. The receiver is not modified.
func (s *Scope) WithParams(params map[string]string) *Scope {
	dup := *s
	dup.params = params
	return &dup
}

// Value returns middleware-attached state for key, or nil.
func (s *Scope) Value(key string) any {
	return s.values[key]
}

// WithValue returns a copy of the scope with key bound to value. The
// receiver and its value map are not modified.
func (s *Scope) WithValue(key string, value any) *Scope {
	dup := *s
	dup.values = make(map[string]any, len(s.values)+1)
	for k, v := range s.values {
		dup.values[k] = v
	}
	dup.values[key] = value
	return &dup
}

// validate checks the scope has the shape its protocol requires.
func (s *Scope) validate() error {
	switch s.Type {
	case ScopeLifespan:
		return nil
	case ScopeHTTP:
		if s.Method == "" || s.Path == "" {
			return fmt.Errorf("http scope requires method and path")
		}
		return nil
	case ScopeSocket:
		if s.Path == "" {
			return fmt.Errorf("socket scope requires path")
		}
		return nil
	default:
		return &UnknownProtocolError{Type: s.Type}
	}
}
