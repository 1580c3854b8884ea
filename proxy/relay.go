package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/hypedigitaly/streamer/pkg/llm/anthropic"
	"github.com/hypedigitaly/streamer/pkg/wire"
	"github.com/hypedigitaly/streamer/proxy/worker"
)

// relay is the state of one streamed response.
type relay struct {
	proxy     *Proxy
	stream    *anthropic.Stream
	cancel    context.CancelFunc
	log       *slog.Logger
	counter   *byteCounter
	start     time.Time
	requestID string
	req       wire.Request
	model     string
}

// errClientGone marks a relay that stopped because the client went away.
var errClientGone = errors.New("client disconnected")

// run copies upstream deltas to pw as content frames and finishes with
// [DONE] or one error frame.
func (r *relay) run(pw *io.PipeWriter) {
	defer r.cancel()
	defer r.stream.Close()
	defer pw.Close()

	var answer strings.Builder
	frames := 0

	err := r.copy(pw, &answer, &frames)
	switch {
	case errors.Is(err, errClientGone):
		r.log.Warn("client disconnected mid-stream", "frames", frames)
	case err != nil:
		r.log.Error("stream failed", "error", err, "frames", frames)
		if werr := wire.WriteError(pw, err.Error()); werr != nil {
			r.log.Debug("could not write error frame", "error", werr)
		}
	default:
		if werr := wire.WriteDone(pw); werr != nil {
			r.log.Debug("could not write done frame", "error", werr)
		}
	}

	attrs := []any{
		"model", r.model,
		"frames", frames,
		"answer_chars", answer.Len(),
		"duration", time.Since(r.start),
	}
	if r.counter != nil {
		attrs = append(attrs, "upstream_bytes", r.counter.n)
	}
	r.log.Info("stream complete", attrs...)

	r.proxy.enqueueAnswer(r.log, worker.Job{
		RequestID:    r.requestID,
		UserID:       r.req.UserID,
		Project:      r.req.Selector(),
		Model:        r.model,
		VariableName: r.req.VariableName,
		Answer:       answer.String(),
		Partial:      err != nil,
	})
}

// copy relays events until message_stop, an error event, or upstream EOF.
func (r *relay) copy(w io.Writer, answer *strings.Builder, frames *int) error {
	for {
		ev, err := r.stream.Next()
		if err != nil {
			return err
		}
		if ev == nil {
			// Upstream closed without message_stop.
			return nil
		}

		switch ev.Type {
		case anthropic.EventContentBlockDelta:
			text := ev.Text()
			answer.WriteString(text)
			if err := wire.WriteContent(w, text); err != nil {
				return fmt.Errorf("%w: %w", errClientGone, err)
			}
			*frames++
		case anthropic.EventMessageStop:
			return nil
		case anthropic.EventError:
			return upstreamError(ev)
		default:
			// message_start, content_block_start/stop, message_delta and ping
			// carry nothing for the client.
		}
	}
}

func upstreamError(ev *anthropic.StreamEvent) error {
	if ev.Error == nil || ev.Error.Message == "" {
		return errors.New("upstream stream error")
	}
	return errors.New(ev.Error.Message)
}

// byteCounter counts the raw upstream bytes of a debug stream.
type byteCounter struct {
	n int64
}

func (b *byteCounter) Write(p []byte) (int, error) {
	b.n += int64(len(p))
	return len(p), nil
}
