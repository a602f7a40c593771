package gate

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Event type names for the lifespan protocol.
const (
	EventLifespanStartup          = "lifespan.startup"
	EventLifespanStartupComplete  = "lifespan.startup.complete"
	EventLifespanStartupFailed    = "lifespan.startup.failed"
	EventLifespanShutdown         = "lifespan.shutdown"
	EventLifespanShutdownComplete = "lifespan.shutdown.complete"
	EventLifespanShutdownFailed   = "lifespan.shutdown.failed"
)

// Event type names for the http protocol.
const (
	EventHTTPRequest       = "http.request"
	EventHTTPResponseStart = "http.response.start"
	EventHTTPResponseBody  = "http.response.body"
	EventHTTPDisconnect    = "http.disconnect"
)

// Event type names for the socket-session protocol.
const (
	EventSocketConnect    = "socket.connect"
	EventSocketAccept     = "socket.accept"
	EventSocketReject     = "socket.reject"
	EventSocketReceive    = "socket.receive"
	EventSocketSend       = "socket.send"
	EventSocketClose      = "socket.close"
	EventSocketDisconnect = "socket.disconnect"
)

// Header is a single header pair. Headers travel as two-element arrays on
// the wire, matching the gateway protocol's header encoding.
type Header [2]string

// Name returns the header name.
func (h Header) Name() string { return h[0] }

// Value returns the header value.
func (h Header) Value() string { return h[1] }

// Event is one message exchanged over a connection's channel pair. The
// Type field selects which of the remaining fields are meaningful; the
// zero values of unused fields are ignored.
//
// Use the constructors (ResponseStart, TextFrame, ...) rather than filling
// the struct by hand; they produce events with exactly the fields the
// protocol defines for each type.
type Event struct {
	Type string `json:"type"`

	// http
	Status   int      `json:"status,omitempty"`
	Headers  []Header `json:"headers,omitempty"`
	Body     []byte   `json:"body,omitempty"`
	MoreBody bool     `json:"more_body,omitempty"`

	// socket
	Text        string `json:"text,omitempty"`
	Bytes       []byte `json:"bytes,omitempty"`
	Code        int    `json:"code,omitempty"`
	Subprotocol string `json:"subprotocol,omitempty"`

	// lifespan failure detail
	Message string `json:"message,omitempty"`
}

// Protocol returns the protocol portion of the event type: the segment
// before the first dot ("http.response.start" -> "http"). Empty if the
// type has no dot.
func (e Event) Protocol() string {
	proto, _, ok := strings.Cut(e.Type, ".")
	if !ok {
		return ""
	}
	return proto
}

// ResponseStart builds an http.response.start event.
func ResponseStart(status int, headers []Header) Event {
	return Event{Type: EventHTTPResponseStart, Status: status, Headers: headers}
}

// ResponseBody builds an http.response.body event. moreBody signals
// whether further body chunks follow.
func ResponseBody(body []byte, moreBody bool) Event {
	return Event{Type: EventHTTPResponseBody, Body: body, MoreBody: moreBody}
}

// RequestChunk builds an http.request event carrying one body chunk.
func RequestChunk(body []byte, moreBody bool) Event {
	return Event{Type: EventHTTPRequest, Body: body, MoreBody: moreBody}
}

// TextFrame builds a socket.send event carrying a text frame.
func TextFrame(text string) Event {
	return Event{Type: EventSocketSend, Text: text}
}

// BinaryFrame builds a socket.send event carrying a binary frame.
func BinaryFrame(data []byte) Event {
	return Event{Type: EventSocketSend, Bytes: data}
}

// Accept builds a socket.accept event. subprotocol may be empty.
func Accept(subprotocol string) Event {
	return Event{Type: EventSocketAccept, Subprotocol: subprotocol}
}

// CloseFrame builds a socket.close event with the given close code.
func CloseFrame(code int) Event {
	return Event{Type: EventSocketClose, Code: code}
}

// wireFields maps each event type to the fields emitted on the wire.
// Used by MarshalJSON to keep wire frames bit-exact per type, and by the
// codec to check required fields before a full parse.
var wireFields = map[string][]string{
	EventLifespanStartup:          {},
	EventLifespanStartupComplete:  {},
	EventLifespanStartupFailed:    {"message"},
	EventLifespanShutdown:         {},
	EventLifespanShutdownComplete: {},
	EventLifespanShutdownFailed:   {"message"},
	EventHTTPRequest:              {"body", "more_body"},
	EventHTTPResponseStart:        {"status", "headers"},
	EventHTTPResponseBody:         {"body", "more_body"},
	EventHTTPDisconnect:           {},
	EventSocketConnect:            {},
	EventSocketAccept:             {"subprotocol"},
	EventSocketReject:             {},
	EventSocketReceive:            {"text", "bytes"},
	EventSocketSend:               {"text", "bytes"},
	EventSocketClose:              {"code"},
	EventSocketDisconnect:         {"code"},
}

// MarshalJSON emits exactly the field set the protocol defines for the
// event's type. Body and frame bytes are base64-encoded per standard JSON
// byte-slice encoding.
func (e Event) MarshalJSON() ([]byte, error) {
	fields, ok := wireFields[e.Type]
	if !ok {
		return nil, fmt.Errorf("marshal event: unknown type %q", e.Type)
	}

	out := make(map[string]any, len(fields)+1)
	out["type"] = e.Type

	for _, f := range fields {
		switch f {
		case "status":
			out["status"] = e.Status
		case "headers":
			headers := e.Headers
			if headers == nil {
				headers = []Header{}
			}
			out["headers"] = headers
		case "body":
			body := e.Body
			if body == nil {
				body = []byte{}
			}
			out["body"] = body
		case "more_body":
			out["more_body"] = e.MoreBody
		case "text":
			// A frame is either text or binary, never both.
			if e.Text != "" || e.Bytes == nil {
				out["text"] = e.Text
			}
		case "bytes":
			if e.Bytes != nil {
				out["bytes"] = e.Bytes
			}
		case "code":
			out["code"] = e.Code
		case "subprotocol":
			if e.Subprotocol != "" {
				out["subprotocol"] = e.Subprotocol
			}
		case "message":
			out["message"] = e.Message
		}
	}

	return json.Marshal(out)
}
