// Package wire defines the simplified SSE frames the relay sends to stream
// clients, and the classification clients apply to each data payload.
//
//	data: {"type":"content","content":"<text>"}\n\n   (repeated)
//	data: [DONE]\n\n                                  (terminal)
//	data: {"error":"<message>"}\n\n                   (terminal, on failure)
//
// Clients also accept Anthropic-native content_block_delta payloads so a relay
// running in passthrough mode needs no separate client.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DoneSentinel is the data payload that ends a stream successfully.
const DoneSentinel = "[DONE]"

// ContentType is the "type" of a simplified content frame.
const ContentType = "content"

// ContentFrame carries one delta of answer text.
type ContentFrame struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// ErrorFrame carries a terminal failure message.
type ErrorFrame struct {
	Error string `json:"error"`
}

// WriteContent writes one content frame.
func WriteContent(w io.Writer, text string) error {
	return writeJSON(w, ContentFrame{Type: ContentType, Content: text})
}

// WriteError writes one error frame.
func WriteError(w io.Writer, msg string) error {
	return writeJSON(w, ErrorFrame{Error: msg})
}

// WriteDone writes the terminal sentinel frame.
func WriteDone(w io.Writer) error {
	_, err := io.WriteString(w, "data: "+DoneSentinel+"\n\n")
	return err
}

func writeJSON(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}

	buf := make([]byte, 0, len(b)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, b...)
	buf = append(buf, '\n', '\n')

	_, err = w.Write(buf)
	return err
}

// Kind classifies a data payload received by a client.
type Kind int

const (
	// KindIgnore is a well-formed payload that carries no text (stream start,
	// block start, ping, usage).
	KindIgnore Kind = iota

	// KindDelta carries answer text in Payload.Text.
	KindDelta

	// KindDone ends the stream successfully.
	KindDone

	// KindError ends the stream with Payload.Text as the message.
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindDelta:
		return "delta"
	case KindDone:
		return "done"
	case KindError:
		return "error"
	default:
		return "ignore"
	}
}

// Payload is a classified data payload.
type Payload struct {
	Kind Kind
	Text string
}

// ErrMalformed is returned by Classify for a payload that is not valid JSON.
// Clients skip such lines and keep reading.
var ErrMalformed = errors.New("malformed frame")

// probe is the union of the fields Classify looks at.
type probe struct {
	Type    string          `json:"type"`
	Content *string         `json:"content"`
	Error   json.RawMessage `json:"error"`
	Delta   *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

// Classify inspects one data payload (the text after "data: ").
func Classify(data string) (Payload, error) {
	data = strings.TrimSpace(data)
	if data == DoneSentinel {
		return Payload{Kind: KindDone}, nil
	}
	if data == "" {
		return Payload{Kind: KindIgnore}, nil
	}

	var p probe
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if len(p.Error) > 0 && string(p.Error) != "null" {
		return Payload{Kind: KindError, Text: errorMessage(p.Error)}, nil
	}

	switch p.Type {
	case ContentType:
		if p.Content != nil {
			return Payload{Kind: KindDelta, Text: *p.Content}, nil
		}
	case "content_block_delta":
		if p.Delta != nil && (p.Delta.Type == "" || p.Delta.Type == "text_delta") {
			return Payload{Kind: KindDelta, Text: p.Delta.Text}, nil
		}
	case "message_stop":
		return Payload{Kind: KindDone}, nil
	}

	return Payload{Kind: KindIgnore}, nil
}

// errorMessage accepts both {"error":"msg"} and the Anthropic-native
// {"type":"error","error":{"type":"...","message":"msg"}} shapes.
func errorMessage(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var obj struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}

	return string(raw)
}
