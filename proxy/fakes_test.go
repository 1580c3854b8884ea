package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	. "github.com/onsi/gomega"

	"github.com/hypedigitaly/streamer/pkg/credentials"
	"github.com/hypedigitaly/streamer/pkg/eventstream"
	"github.com/hypedigitaly/streamer/pkg/logger"
)

// recordedRequest is one request seen by a fake upstream.
type recordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   string
}

// fakeServer is an httptest server that records requests and answers with a
// fixed status and body.
type fakeServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
	status   int
	events   []string
}

func newFakeServer() *fakeServer {
	f := &fakeServer{status: http.StatusOK}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	return f
}

func (f *fakeServer) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
		Body:   string(body),
	})
	status := f.status
	events := append([]string(nil), f.events...)
	f.mu.Unlock()

	if status != http.StatusOK {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, strings.Join(events, ""))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	flusher, _ := w.(http.Flusher)
	for _, ev := range events {
		_, _ = io.WriteString(w, ev)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (f *fakeServer) respond(status int, events ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
	f.events = events
}

func (f *fakeServer) Requests() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

// sseEvent formats one upstream event.
func sseEvent(typ, data string) string {
	return fmt.Sprintf("event: %s\ndata: %s\n\n", typ, data)
}

func textDelta(text string) string {
	return sseEvent("content_block_delta",
		fmt.Sprintf(`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":%q}}`, text))
}

var (
	messageStart      = sseEvent("message_start", `{"type":"message_start","message":{"id":"msg_1","model":"claude-3-5-sonnet-20241022","usage":{"input_tokens":12,"output_tokens":1}}}`)
	contentBlockStart = sseEvent("content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`)
	ping              = sseEvent("ping", `{"type":"ping"}`)
	contentBlockStop  = sseEvent("content_block_stop", `{"type":"content_block_stop","index":0}`)
	messageDelta      = sseEvent("message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":5}}`)
	messageStop       = sseEvent("message_stop", `{"type":"message_stop"}`)
)

// recordingPublisher collects published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.AnswerCompletedEvent
}

func (p *recordingPublisher) PublishAnswer(_ context.Context, e *eventstream.AnswerCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Events() []*eventstream.AnswerCompletedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*eventstream.AnswerCompletedEvent(nil), p.events...)
}

// envResolver resolves keys from a fixed environment only.
func envResolver(env map[string]string) *credentials.Resolver {
	return credentials.NewResolver(nil, credentials.WithGetenv(func(k string) string {
		return env[k]
	}))
}

type testProxyOptions struct {
	upstream  string
	store     string
	env       map[string]string
	origins   []string
	push      bool
	publisher eventstream.Publisher
}

func newTestProxy(o testProxyOptions) *Proxy {
	p, err := New(Config{
		ListenAddr:        ":0",
		AllowedOrigins:    o.origins,
		AnthropicUpstream: o.upstream,
		Variables: VariablesConfig{
			Enabled:  o.push,
			Endpoint: o.store,
		},
		Publisher: o.publisher,
	}, envResolver(o.env), logger.Nop())
	Expect(err).NotTo(HaveOccurred())
	return p
}
