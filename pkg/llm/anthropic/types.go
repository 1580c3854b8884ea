package anthropic

// MessagesRequest is the body of POST /v1/messages.
type MessagesRequest struct {
	Model       string        `json:"model"`
	Messages    []Message     `json:"messages"`
	System      []SystemBlock `json:"system,omitempty"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature *float64      `json:"temperature,omitempty"`
	Stream      bool          `json:"stream"`
}

// Message is one conversation turn. Content is plain text.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SystemBlock is a text block of the system prompt.
type SystemBlock struct {
	Type         string        `json:"type"`
	Text         string        `json:"text"`
	CacheControl *CacheControl `json:"cache_control,omitempty"`
}

// CacheControl marks a prompt block for caching.
type CacheControl struct {
	Type string `json:"type"`
}

// EphemeralSystem returns the system prompt as a single cached text block, or
// nil for an empty prompt.
func EphemeralSystem(prompt string) []SystemBlock {
	if prompt == "" {
		return nil
	}
	return []SystemBlock{{
		Type:         "text",
		Text:         prompt,
		CacheControl: &CacheControl{Type: "ephemeral"},
	}}
}

// Stream event types.
const (
	EventMessageStart      = "message_start"
	EventContentBlockStart = "content_block_start"
	EventContentBlockDelta = "content_block_delta"
	EventContentBlockStop  = "content_block_stop"
	EventMessageDelta      = "message_delta"
	EventMessageStop       = "message_stop"
	EventPing              = "ping"
	EventError             = "error"
)

// StreamEvent is one decoded SSE event of a streaming response.
type StreamEvent struct {
	Type    string       `json:"type"`
	Index   int          `json:"index"`
	Message *MessageInfo `json:"message,omitempty"`
	Delta   *Delta       `json:"delta,omitempty"`
	Usage   *Usage       `json:"usage,omitempty"`
	Error   *APIError    `json:"error,omitempty"`
}

// Text returns the text carried by a content_block_delta, if any.
func (e *StreamEvent) Text() string {
	if e.Type != EventContentBlockDelta || e.Delta == nil {
		return ""
	}
	return e.Delta.Text
}

// MessageInfo is the message envelope sent with message_start.
type MessageInfo struct {
	ID    string `json:"id"`
	Model string `json:"model"`
	Usage *Usage `json:"usage,omitempty"`
}

// Delta is the payload of content_block_delta and message_delta events.
type Delta struct {
	Type       string `json:"type,omitempty"`
	Text       string `json:"text,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`
}

// Usage is token accounting. message_start carries input tokens and
// message_delta the output tokens.
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
}

// APIError is the error object of error responses and error events.
type APIError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Type  string   `json:"type"`
	Error APIError `json:"error"`
}
