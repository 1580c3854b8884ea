// Package variables updates user variables in the Voiceflow runtime state
// store, where the chat flow reads the final answer after a stream ends.
package variables

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hypedigitaly/streamer/pkg/logger"
)

const (
	// DefaultEndpoint is the Voiceflow general runtime.
	DefaultEndpoint = "https://general-runtime.voiceflow.com"

	// DefaultVersionID selects the published version of a project.
	DefaultVersionID = "production"

	// DefaultVariable is the variable that receives the final answer.
	DefaultVariable = "LLM_Main_Response"
)

// ErrMissingUser is returned when an update has no user id.
var ErrMissingUser = errors.New("user_id is required")

// StatusError is returned when the store answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("variable store returned status %d: %s", e.StatusCode, e.Body)
}

// Result is a successful update.
type Result struct {
	StatusCode int
	Body       string
}

// Config holds configuration for the Client.
type Config struct {
	// Endpoint is the runtime base URL. Defaults to DefaultEndpoint.
	Endpoint string

	// VersionID is sent as the versionID header. Defaults to DefaultVersionID.
	VersionID string

	// Timeout bounds one update. Defaults to 30s.
	Timeout time.Duration
}

// Client patches user variables.
type Client struct {
	endpoint   string
	versionID  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client. A nil logger discards output.
func NewClient(c Config, l *slog.Logger) *Client {
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	if c.VersionID == "" {
		c.VersionID = DefaultVersionID
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if l == nil {
		l = logger.Nop()
	}

	return &Client{
		endpoint:   strings.TrimRight(c.Endpoint, "/"),
		versionID:  c.VersionID,
		httpClient: &http.Client{Timeout: c.Timeout},
		logger:     l,
	}
}

// Update merges vars into the state of userID. Concurrent updates for one
// user are not ordered; the last one to arrive wins.
func (c *Client) Update(ctx context.Context, apiKey, userID string, vars map[string]any) (*Result, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}

	body, err := json.Marshal(vars)
	if err != nil {
		return nil, fmt.Errorf("marshaling variables: %w", err)
	}

	u := fmt.Sprintf("%s/state/user/%s/variables", c.endpoint, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("content-type", "application/json")
	req.Header.Set("versionID", c.versionID)
	req.Header.Set("Authorization", apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	c.logger.Debug("variable store update",
		"user_id", userID,
		"status", resp.StatusCode,
		"variables", len(vars),
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	return &Result{StatusCode: resp.StatusCode, Body: string(raw)}, nil
}

// SetAnswer writes one answer into variable (DefaultVariable when empty).
func (c *Client) SetAnswer(ctx context.Context, apiKey, userID, variable, answer string) (*Result, error) {
	if variable == "" {
		variable = DefaultVariable
	}
	return c.Update(ctx, apiKey, userID, map[string]any{variable: answer})
}
