package config

import (
	"github.com/hypedigitaly/streamer/pkg/eventstream/kafka"
	"github.com/hypedigitaly/streamer/pkg/llm/anthropic"
	"github.com/hypedigitaly/streamer/pkg/variables"
)

const (
	defaultProxyListen       = ":8080"
	defaultModel             = "claude-3-5-sonnet-20241022"
	defaultMaxTokens         = 4096
	defaultClientProxyTarget = "http://localhost:8080"
	defaultKafkaBroker       = "localhost:9092"
)

// defaultAllowedOrigins are the sites the chat widget is deployed on.
var defaultAllowedOrigins = []string{
	"icuk.cz",
	"kr-ustecky.cz",
	"kr-vysocina.cz",
	"setrivodou.cz",
	"healthytwenty.cz",
	"barber-mnb.cz",
	"teplice.cz",
	"hypedigitaly.ai",
}

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Proxy: ProxyConfig{
			Listen:            defaultProxyListen,
			AllowedOrigins:    append([]string(nil), defaultAllowedOrigins...),
			AnthropicUpstream: anthropic.DefaultBaseURL,
			AnthropicVersion:  anthropic.DefaultVersion,
			DefaultModel:      defaultModel,
			DefaultMaxTokens:  defaultMaxTokens,
		},
		Variables: VariablesConfig{
			Enabled:      true,
			Endpoint:     variables.DefaultEndpoint,
			VersionID:    variables.DefaultVersionID,
			VariableName: variables.DefaultVariable,
		},
		Events: EventsConfig{
			Provider: EventsProviderNone,
			Brokers:  []string{defaultKafkaBroker},
			Topic:    kafka.DefaultTopic,
		},
		Client: ClientConfig{
			ProxyTarget: defaultClientProxyTarget,
		},
	}
}
