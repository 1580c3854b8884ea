// Package anthropic is a minimal streaming client for the Anthropic Messages
// API: one request type, the stream event types, and an event iterator over
// the SSE response.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hypedigitaly/streamer/pkg/logger"
	"github.com/hypedigitaly/streamer/pkg/sse"
)

const (
	// DefaultBaseURL is the public API endpoint.
	DefaultBaseURL = "https://api.anthropic.com"

	// DefaultVersion is sent as the anthropic-version header.
	DefaultVersion = "2023-06-01"
)

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Type       string
	Message    string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("anthropic: %d %s: %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("anthropic: status %d", e.StatusCode)
}

// Client calls the Messages API.
type Client struct {
	baseURL    string
	version    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithVersion overrides the anthropic-version header.
func WithVersion(v string) Option {
	return func(c *Client) {
		if v != "" {
			c.version = v
		}
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a Client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		version:    DefaultVersion,
		httpClient: &http.Client{},
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Stream opens a streaming Messages call with apiKey. When tee is non-nil,
// the raw response bytes are copied to it as events are read. The caller
// must Close the returned Stream.
func (c *Client) Stream(ctx context.Context, apiKey string, req *MessagesRequest, tee io.Writer) (*Stream, error) {
	req.Stream = true
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("x-api-key", apiKey)
	httpReq.Header.Set("anthropic-version", c.version)

	c.logger.Debug("opening upstream stream",
		"url", httpReq.URL.String(),
		"model", req.Model,
		"max_tokens", req.MaxTokens,
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		se := &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
		var env errorEnvelope
		if json.Unmarshal(raw, &env) == nil {
			se.Type = env.Error.Type
			se.Message = env.Error.Message
		}
		return nil, se
	}

	return &Stream{
		body:   resp.Body,
		reader: sse.NewTeeReader(resp.Body, tee),
		logger: c.logger,
	}, nil
}

// Stream iterates over the events of a streaming response.
type Stream struct {
	body   io.ReadCloser
	reader *sse.Reader
	logger *slog.Logger
}

// Next returns the next event. It returns nil, nil when the response body is
// exhausted. Events whose data is not valid JSON are logged and skipped.
func (s *Stream) Next() (*StreamEvent, error) {
	for {
		ev, err := s.reader.Next()
		if err != nil {
			return nil, fmt.Errorf("reading stream: %w", err)
		}
		if ev == nil {
			return nil, nil
		}
		if ev.Data == "" {
			continue
		}

		var out StreamEvent
		if err := json.Unmarshal([]byte(ev.Data), &out); err != nil {
			s.logger.Debug("skipping malformed upstream event", "event", ev.Type, "error", err)
			continue
		}
		if out.Type == "" {
			out.Type = ev.Type
		}
		return &out, nil
	}
}

// Close releases the response body.
func (s *Stream) Close() error {
	return s.body.Close()
}
