// Package eventstream publishes answer events to an event stream backend.
package eventstream

import "context"

// Publisher publishes answer events to an event stream backend.
type Publisher interface {
	PublishAnswer(ctx context.Context, event *AnswerCompletedEvent) error
	Close() error
}
