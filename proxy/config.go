package proxy

import (
	"time"

	"github.com/hypedigitaly/streamer/pkg/eventstream"
)

// Default request values applied when the client leaves them out.
const (
	DefaultModel       = "claude-3-5-sonnet-20241022"
	DefaultMaxTokens   = 4096
	DefaultTemperature = 0.0
)

// Config is the proxy server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// AllowedOrigins is the origin allow-list. Empty disables the origin gate.
	AllowedOrigins []string

	// AnthropicUpstream overrides the Messages API base URL.
	AnthropicUpstream string

	// AnthropicVersion overrides the anthropic-version header.
	AnthropicVersion string

	// DefaultModel, DefaultMaxTokens and DefaultTemperature fill in requests
	// that leave the field out. Zero values fall back to the package defaults.
	DefaultModel       string
	DefaultMaxTokens   int
	DefaultTemperature float64

	// UpstreamTimeout bounds one relayed stream (defaults to 5m).
	UpstreamTimeout time.Duration

	// Variables configures the variable store.
	Variables VariablesConfig

	// Publisher receives answer events from the worker pool. Nil publishes
	// nothing.
	Publisher eventstream.Publisher
}

// VariablesConfig configures the variable store push.
type VariablesConfig struct {
	// Enabled turns on the push of finished answers. The explicit update
	// routes work either way.
	Enabled bool

	// Endpoint is the runtime base URL.
	Endpoint string

	// VersionID is sent as the versionID header.
	VersionID string

	// VariableName is written when the request does not name one.
	VariableName string
}

func (c *Config) applyDefaults() {
	if c.DefaultModel == "" {
		c.DefaultModel = DefaultModel
	}
	if c.DefaultMaxTokens <= 0 {
		c.DefaultMaxTokens = DefaultMaxTokens
	}
	if c.UpstreamTimeout <= 0 {
		c.UpstreamTimeout = 5 * time.Minute
	}
}
