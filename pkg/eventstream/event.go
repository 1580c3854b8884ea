package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeAnswerCompleted is emitted after a streamed answer was handed
	// to the variable store.
	EventTypeAnswerCompleted = "streamer.answer.completed"
)

// AnswerCompletedEvent is a transport-neutral event payload for a finished
// answer and the outcome of its variable store update.
type AnswerCompletedEvent struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventID       string      `json:"event_id"`
	EmittedAt     time.Time   `json:"emitted_at"`
	Source        EventSource `json:"source"`

	RequestID    string `json:"request_id,omitempty"`
	UserID       string `json:"user_id"`
	VariableName string `json:"variable_name"`
	AnswerChars  int    `json:"answer_chars"`

	// Partial is set when the stream failed and the answer is what arrived
	// before the failure.
	Partial bool `json:"partial"`

	// VariableStoreStatus is the HTTP status of the update, or 0 when the
	// update never got a response.
	VariableStoreStatus int    `json:"variable_store_status"`
	Error               string `json:"error,omitempty"`
}

// EventSource identifies where the answer originated.
type EventSource struct {
	Project string `json:"project,omitempty"`
	Model   string `json:"model,omitempty"`
}

// NewAnswerCompletedEvent fills in the envelope fields.
func NewAnswerCompletedEvent(now time.Time) *AnswerCompletedEvent {
	return &AnswerCompletedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeAnswerCompleted,
		EventID:       uuid.NewString(),
		EmittedAt:     now.UTC(),
	}
}
