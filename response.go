package gate

// Response renders into the ordered event sequence that delivers it.
type Response interface {
	Events() []Event
}

// BodyResponse is a single-shot HTTP response: one http.response.start
// followed by one final http.response.body.
type BodyResponse struct {
	Status  int
	Headers []Header
	Body    []byte
}

// Events implements Response.
func (r BodyResponse) Events() []Event {
	status := r.Status
	if status == 0 {
		status = 200
	}
	return []Event{
		ResponseStart(status, r.Headers),
		ResponseBody(r.Body, false),
	}
}

// StreamResponse is a chunked HTTP response: each chunk is sent with
// more_body=true and a final empty chunk terminates the stream.
type StreamResponse struct {
	Status  int
	Headers []Header
	Chunks  [][]byte
}

// Events implements Response.
func (r StreamResponse) Events() []Event {
	status := r.Status
	if status == 0 {
		status = 200
	}
	events := make([]Event, 0, len(r.Chunks)+2)
	events = append(events, ResponseStart(status, r.Headers))
	for _, chunk := range r.Chunks {
		events = append(events, ResponseBody(chunk, true))
	}
	events = append(events, ResponseBody(nil, false))
	return events
}

// PlainText is a text/plain BodyResponse.
func PlainText(status int, body string) BodyResponse {
	return BodyResponse{
		Status:  status,
		Headers: []Header{{"content-type", "text/plain; charset=utf-8"}},
		Body:    []byte(body),
	}
}
