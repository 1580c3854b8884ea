package stream

import "time"

// Phase is the lifecycle stage of a Session.
type Phase int

const (
	// PhaseThinking lasts from the request until the first delta. The mount
	// shows an animated indicator.
	PhaseThinking Phase = iota

	// PhaseResponding lasts while deltas arrive.
	PhaseResponding

	// PhaseDone is terminal: the stream ended normally.
	PhaseDone

	// PhaseFailed is terminal: the content was replaced by ErrorText.
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseThinking:
		return "thinking"
	case PhaseResponding:
		return "responding"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// ErrorText replaces the answer when a stream fails.
const ErrorText = "Error: Failed to get response from Claude API"

// DebugLevel is the severity of a DebugMessage.
type DebugLevel string

const (
	DebugInfo  DebugLevel = "info"
	DebugError DebugLevel = "error"
)

// MaxDebugMessages is how many status lines a mount shows at once.
const MaxDebugMessages = 3

// DebugMessage is a status line shown above the answer.
type DebugMessage struct {
	Level DebugLevel
	Text  string
	At    time.Time
}

// View is a complete snapshot of what a mount should display. Every render
// receives a full View, never a diff.
type View struct {
	Phase Phase

	// Text is the raw accumulated answer.
	Text string

	// HTML is the rendered answer, or the escaped error text once the
	// session failed.
	HTML string

	// Dots is the thinking indicator frame (1-3) while thinking.
	Dots int

	// Debug holds at most MaxDebugMessages lines, oldest first.
	Debug []DebugMessage
}

// Mount is the element a session renders into.
type Mount interface {
	Node

	// Render replaces the displayed content with v. It is always called from
	// one goroutine, in order.
	Render(v View)
}

// Host is the chat runtime that invoked the client. Continue releases it to
// carry on with its own flow.
type Host interface {
	Continue()
}

// HostFunc adapts a function to Host.
type HostFunc func()

// Continue calls f.
func (f HostFunc) Continue() { f() }

// Renderer converts the accumulated markdown buffer into HTML.
type Renderer interface {
	Render(src string) string
}
