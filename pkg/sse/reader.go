package sse

import (
	"bufio"
	"io"
)

// Reader reads SSE events from a source io.Reader. When constructed with
// NewTeeReader it also writes every raw line verbatim to a destination,
// which lets the relay pass an upstream stream through unchanged while still
// inspecting its events.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌──────────────────────────────┐
// │  Reader.Next()   │──▶│ destination io.Writer (tee)  │
// └──────────────────┘   └──────────────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │      Event       │
// └──────────────────┘
type Reader struct {
	scanner *bufio.Scanner
	dest    io.Writer
	b       builder
}

// NewReader returns a Reader that parses SSE events from src.
func NewReader(src io.Reader) *Reader {
	return NewTeeReader(src, nil)
}

// NewTeeReader returns a Reader that parses SSE events from src and writes all
// raw bytes through to dest. A nil dest disables the tee.
func NewTeeReader(src io.Reader, dest io.Writer) *Reader {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	return &Reader{
		scanner: scanner,
		dest:    dest,
		b:       newBuilder(),
	}
}

// Next blocks until a complete event is available (terminated by a blank line
// in the stream) and returns it. Next returns nil, nil when the source is
// exhausted.
func (r *Reader) Next() (*Event, error) {
	for r.scanner.Scan() {
		raw := r.scanner.Text()

		if r.dest != nil {
			// bufio.Scanner strips the newline, so reinsert it.
			if _, err := io.WriteString(r.dest, raw+"\n"); err != nil {
				return nil, err
			}
		}

		if ev := r.b.line(raw); ev != nil {
			return ev, nil
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	// Stream ended without a trailing blank line: yield what is in progress.
	return r.b.take(), nil
}
