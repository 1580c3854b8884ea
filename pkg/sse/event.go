// Package sse parses Server-Sent Events. It serves both sides of the relay:
// Reader pulls events from a blocking io.Reader (the upstream response body,
// optionally teed verbatim to the downstream client), and Decoder accepts
// arbitrarily split byte chunks as they arrive on the client.
//
// Frame encoding for the downstream wire lives in pkg/wire.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Event represents a single parsed SSE event, delimited by a blank line
// in the byte stream.
type Event struct {
	// Type is the SSE event type from the "event:" field.
	// An empty string means the default "message" type per the SSE spec.
	Type string

	// Data is the concatenated contents of all "data:" lines for this event,
	// joined with "\n".
	Data string

	// ID is the last event ID from the "id:" field, if present.
	ID string
}

// builder accumulates fields for the event currently being parsed.
type builder struct {
	current *Event
	// hasData is set by any field, so the event is dispatched.
	hasData bool
	// hasDataLine is set by "data:" only and controls the "\n" separator.
	hasDataLine bool
}

func newBuilder() builder {
	return builder{current: &Event{}}
}

// line processes one raw line (without its terminator). It returns a
// completed event when the line is the blank line that ends one.
func (b *builder) line(raw string) *Event {
	if raw == "" {
		if !b.hasData {
			// Leading blank lines and keep-alive newlines.
			return nil
		}
		return b.take()
	}

	field, value, ok := parseField(raw)
	if !ok {
		return nil
	}

	switch field {
	case "data":
		if b.hasDataLine {
			b.current.Data += "\n"
		}
		b.current.Data += value
		b.hasData = true
		b.hasDataLine = true
	case "event":
		b.current.Type = value
		b.hasData = true
	case "id":
		b.current.ID = value
		b.hasData = true
	default:
		// "retry" and unknown fields are ignored.
	}

	return nil
}

// dataLine processes one raw line in per-line mode: every "data:" line is
// returned as its own event right away. "event:" and "id:" apply to the data
// lines that follow them until the next blank line.
func (b *builder) dataLine(raw string) *Event {
	if raw == "" {
		b.current = &Event{}
		return nil
	}

	field, value, ok := parseField(raw)
	if !ok {
		return nil
	}

	switch field {
	case "data":
		return &Event{Type: b.current.Type, ID: b.current.ID, Data: value}
	case "event":
		b.current.Type = value
	case "id":
		b.current.ID = value
	}
	return nil
}

// parseField splits a non-empty line into field and value. It reports false
// for comment lines.
func parseField(raw string) (string, string, bool) {
	// Lines starting with ':' are comments.
	if raw[0] == ':' {
		return "", "", false
	}

	before, after, ok := cutColon(raw)
	if !ok {
		// No colon: the whole line is the field name with an empty value.
		return raw, "", true
	}
	// Strip a single leading space after the colon, per spec.
	if len(after) > 0 && after[0] == ' ' {
		after = after[1:]
	}
	return before, after, true
}

// take returns the in-progress event, if any, and resets the builder.
func (b *builder) take() *Event {
	if !b.hasData {
		return nil
	}
	ev := b.current
	b.current = &Event{}
	b.hasData = false
	b.hasDataLine = false
	return ev
}

func cutColon(s string) (string, string, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}
