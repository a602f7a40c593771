package gate

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ErrInvalidFrame is returned when a wire frame is not valid JSON.
var ErrInvalidFrame = errors.New("invalid frame")

// The wire codec handles external servers that deliver scopes and events
// as JSON frames. Decoding is two-phase: cheap gjson field checks
// discriminate and validate the frame's shape, then encoding/json does
// the full parse. Byte fields (request/response bodies, binary frames)
// are base64 strings on the wire.

// requiredWireFields lists fields a frame must carry beyond "type",
// checked before the full parse.
var requiredWireFields = map[string][]string{
	EventLifespanStartupFailed:  {"message"},
	EventLifespanShutdownFailed: {"message"},
	EventHTTPResponseStart:      {"status"},
	EventHTTPRequest:            {"body"},
	EventHTTPResponseBody:       {"body"},
	EventSocketClose:            {"code"},
}

// DecodeEvent parses one event frame.
func DecodeEvent(raw []byte) (Event, error) {
	if !gjson.ValidBytes(raw) {
		return Event{}, ErrInvalidFrame
	}

	typ := gjson.GetBytes(raw, "type")
	if typ.Type != gjson.String || typ.String() == "" {
		return Event{}, fmt.Errorf("decode event: missing type field")
	}
	if _, known := wireFields[typ.String()]; !known {
		return Event{}, fmt.Errorf("decode event: unknown type %q", typ.String())
	}
	for _, field := range requiredWireFields[typ.String()] {
		if !gjson.GetBytes(raw, field).Exists() {
			return Event{}, fmt.Errorf("decode event: %s frame missing %q", typ.String(), field)
		}
	}

	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}

// EncodeEvent renders an event as a wire frame carrying exactly the
// fields its type defines.
func EncodeEvent(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}

// DecodeScope parses a connection-scope frame.
func DecodeScope(raw []byte) (*Scope, error) {
	if !gjson.ValidBytes(raw) {
		return nil, ErrInvalidFrame
	}

	typ := gjson.GetBytes(raw, "type")
	if typ.Type != gjson.String || typ.String() == "" {
		return nil, fmt.Errorf("decode scope: missing type field")
	}

	var scope Scope
	if err := json.Unmarshal(raw, &scope); err != nil {
		return nil, fmt.Errorf("decode scope: %w", err)
	}
	if err := scope.validate(); err != nil {
		return nil, err
	}
	return &scope, nil
}
