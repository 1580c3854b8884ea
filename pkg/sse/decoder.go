package sse

import (
	"bytes"
	"strings"
)

// Decoder parses SSE events from byte chunks whose boundaries are arbitrary:
// a chunk may end in the middle of a line or in the middle of a multi-byte
// UTF-8 sequence. Incomplete trailing bytes are retained and joined with the
// next chunk; they are never parsed as a line and never dropped.
//
// A Decoder is owned by a single reader and is not safe for concurrent use.
type Decoder struct {
	pending []byte
	b       builder
	perLine bool
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// PerLine makes the Decoder emit one event for every "data:" line as soon as
// its terminator arrives, instead of waiting for the blank line that ends the
// event. The event carries the type and id seen so far in the current event.
func PerLine() DecoderOption {
	return func(d *Decoder) { d.perLine = true }
}

// NewDecoder returns an empty Decoder.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{b: newBuilder()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Decoder) line(raw string) *Event {
	if d.perLine {
		return d.b.dataLine(raw)
	}
	return d.b.line(raw)
}

// Feed consumes the next chunk and returns the events it completed, in order.
func (d *Decoder) Feed(chunk []byte) []Event {
	d.pending = append(d.pending, chunk...)

	var events []Event
	for {
		i := bytes.IndexByte(d.pending, '\n')
		if i < 0 {
			break
		}

		// '\n' never occurs inside a multi-byte UTF-8 sequence, so a complete
		// line always holds complete runes.
		line := d.pending[:i]
		line = bytes.TrimSuffix(line, []byte{'\r'})
		if ev := d.line(strings.ToValidUTF8(string(line), "�")); ev != nil {
			events = append(events, *ev)
		}
		d.pending = d.pending[i+1:]
	}

	// Compact so a long stream does not pin the first chunk's backing array.
	if len(d.pending) == 0 {
		d.pending = nil
	} else if cap(d.pending) > 4*len(d.pending)+4096 {
		d.pending = append([]byte(nil), d.pending...)
	}

	return events
}

// Flush is called once the source is exhausted. It treats any retained bytes
// as the final line and returns the event in progress, if any.
func (d *Decoder) Flush() []Event {
	var events []Event
	if len(d.pending) > 0 {
		line := bytes.TrimSuffix(d.pending, []byte{'\r'})
		d.pending = nil
		if ev := d.line(strings.ToValidUTF8(string(line), "�")); ev != nil {
			events = append(events, *ev)
		}
	}
	if ev := d.b.take(); ev != nil {
		events = append(events, *ev)
	}
	return events
}

// Buffered reports how many bytes are held back waiting for a line terminator.
func (d *Decoder) Buffered() int {
	return len(d.pending)
}
