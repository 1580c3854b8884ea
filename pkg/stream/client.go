// Package stream is the client side of the relay: it POSTs a prompt, decodes
// the SSE response as it arrives, accumulates the answer and renders it as
// HTML into a host-provided mount, keeping the surrounding scroll container
// pinned to the bottom while the user has not scrolled away.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hypedigitaly/streamer/pkg/logger"
	"github.com/hypedigitaly/streamer/pkg/markdown"
	"github.com/hypedigitaly/streamer/pkg/wire"
)

// Payload is the prompt sent to the relay.
type Payload = wire.Request

// ErrNoPayload is returned by Initiate when it is called without a payload.
var ErrNoPayload = errors.New("no payload received")

// ErrNoMount is returned by Initiate when it is called without a mount.
var ErrNoMount = errors.New("no mount to render into")

// StatusError is returned when the relay answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
}

// DefaultThinkingInterval is the thinking indicator frame period.
const DefaultThinkingInterval = 400 * time.Millisecond

// Client opens streams against one relay endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	renderer   Renderer
	viewport   ScrollContainer
	host       Host
	logger     *slog.Logger
	thinking   time.Duration
	readSize   int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for the stream request.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRenderer replaces the default markdown renderer.
func WithRenderer(r Renderer) Option {
	return func(c *Client) { c.renderer = r }
}

// WithViewport sets the fallback scroll container used when no ancestor of
// the mount scrolls.
func WithViewport(v ScrollContainer) Option {
	return func(c *Client) { c.viewport = v }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithThinkingInterval sets the indicator animation period. Zero disables
// the animation.
func WithThinkingInterval(d time.Duration) Option {
	return func(c *Client) { c.thinking = d }
}

// WithReadSize sets the size of each body read.
func WithReadSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.readSize = n
		}
	}
}

// NewClient returns a Client posting to endpoint and releasing host after
// every invocation.
func NewClient(endpoint string, host Host, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		// No overall timeout: answers stream for as long as the model writes.
		httpClient: &http.Client{},
		renderer:   markdown.NewRenderer(markdown.WithSanitize(true)),
		host:       host,
		logger:     logger.Nop(),
		thinking:   DefaultThinkingInterval,
		readSize:   4096,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initiate renders into mount and runs one stream to completion. The host is
// continued exactly once before Initiate returns, whatever the outcome. The
// returned error is the failure that ended the stream, if any; by then it has
// already been shown in the mount.
func (c *Client) Initiate(ctx context.Context, payload *Payload, mount Mount) error {
	if mount == nil {
		c.logger.Error("stream failed", "error", ErrNoMount)
		if c.host != nil {
			c.host.Continue()
		}
		return ErrNoMount
	}

	debug := payload != nil && payload.Debug()
	s := newSession(sessionConfig{
		mount:    mount,
		viewport: c.viewport,
		renderer: c.renderer,
		host:     c.host,
		logger:   c.logger,
		debug:    debug,
		thinking: c.thinking,
	})
	defer s.Close()

	s.Debug(DebugInfo, "🔄 Initializing streaming response...")

	if payload == nil {
		s.Fail(ErrNoPayload)
		return ErrNoPayload
	}

	if err := c.run(ctx, s, payload); err != nil {
		s.Fail(err)
		return err
	}
	return nil
}

func (c *Client) run(ctx context.Context, s *Session, payload *Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	s.Debug(DebugInfo, "🌐 Connecting to Claude API...")
	c.logger.Debug("opening stream",
		"endpoint", c.endpoint,
		"model", payload.Model,
		"project", payload.Selector(),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	s.Debug(DebugInfo, "✅ Stream connected")

	buf := make([]byte, c.readSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 && s.OnChunk(buf[:n]) {
			return s.terminalErr()
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading stream: %w", err)
		}
	}

	if s.OnEOF() {
		return s.terminalErr()
	}

	// The body ended without a terminal frame. Whatever arrived is the answer.
	s.Finish()
	return nil
}
