package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent streamer configuration stored as
// config.toml in the .streamer/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version   int             `toml:"version"`
	Proxy     ProxyConfig     `toml:"proxy"`
	Variables VariablesConfig `toml:"variables"`
	Events    EventsConfig    `toml:"events"`
	Client    ClientConfig    `toml:"client"`
}

// ProxyConfig holds proxy-specific settings.
type ProxyConfig struct {
	Listen string `toml:"listen,omitempty"`

	// AllowedOrigins is the origin allow-list. Empty accepts every origin.
	AllowedOrigins []string `toml:"allowed_origins"`

	AnthropicUpstream  string  `toml:"anthropic_upstream,omitempty"`
	AnthropicVersion   string  `toml:"anthropic_version,omitempty"`
	DefaultModel       string  `toml:"default_model,omitempty"`
	DefaultMaxTokens   int     `toml:"default_max_tokens,omitempty"`
	DefaultTemperature float64 `toml:"default_temperature"`
}

// VariablesConfig holds variable store settings.
type VariablesConfig struct {
	Enabled      bool   `toml:"enabled"`
	Endpoint     string `toml:"endpoint,omitempty"`
	VersionID    string `toml:"version_id,omitempty"`
	VariableName string `toml:"variable_name,omitempty"`
}

// EventsConfig selects the answer event publisher.
type EventsConfig struct {
	// Provider is "none" or "kafka".
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// ClientConfig holds settings for "streamer ask", which connects to a
// running proxy. ProxyTarget is a full URL (scheme + host + port).
type ClientConfig struct {
	ProxyTarget string `toml:"proxy_target,omitempty"`
	ProjectName string `toml:"project_name,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func listKey(field func(c *Config) *[]string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return joinList(*field(c)) },
		set: func(c *Config, v string) error { *field(c) = SplitList(v); return nil },
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"proxy.listen":             stringKey(func(c *Config) *string { return &c.Proxy.Listen }),
	"proxy.allowed_origins":    listKey(func(c *Config) *[]string { return &c.Proxy.AllowedOrigins }),
	"proxy.anthropic_upstream": stringKey(func(c *Config) *string { return &c.Proxy.AnthropicUpstream }),
	"proxy.anthropic_version":  stringKey(func(c *Config) *string { return &c.Proxy.AnthropicVersion }),
	"proxy.default_model":      stringKey(func(c *Config) *string { return &c.Proxy.DefaultModel }),
	"proxy.default_max_tokens": {
		get: func(c *Config) string { return strconv.Itoa(c.Proxy.DefaultMaxTokens) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid value for proxy.default_max_tokens: %q", v)
			}
			c.Proxy.DefaultMaxTokens = n
			return nil
		},
	},
	"proxy.default_temperature": {
		get: func(c *Config) string { return strconv.FormatFloat(c.Proxy.DefaultTemperature, 'f', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for proxy.default_temperature: %w", err)
			}
			if f < 0 || f > 1 {
				return fmt.Errorf("proxy.default_temperature must be between 0 and 1, got %v", f)
			}
			c.Proxy.DefaultTemperature = f
			return nil
		},
	},
	"variables.enabled": {
		get: func(c *Config) string { return strconv.FormatBool(c.Variables.Enabled) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for variables.enabled: %w", err)
			}
			c.Variables.Enabled = b
			return nil
		},
	},
	"variables.endpoint":      stringKey(func(c *Config) *string { return &c.Variables.Endpoint }),
	"variables.version_id":    stringKey(func(c *Config) *string { return &c.Variables.VersionID }),
	"variables.variable_name": stringKey(func(c *Config) *string { return &c.Variables.VariableName }),
	"events.provider": {
		get: func(c *Config) string { return c.Events.Provider },
		set: func(c *Config, v string) error {
			if !IsValidEventsProvider(v) {
				return fmt.Errorf("unknown events provider %q (available: %s)", v, strings.Join(eventsProviders, ", "))
			}
			c.Events.Provider = v
			return nil
		},
	},
	"events.brokers":      listKey(func(c *Config) *[]string { return &c.Events.Brokers }),
	"events.topic":        stringKey(func(c *Config) *string { return &c.Events.Topic }),
	"client.proxy_target": stringKey(func(c *Config) *string { return &c.Client.ProxyTarget }),
	"client.project_name": stringKey(func(c *Config) *string { return &c.Client.ProjectName }),
}

// Events providers.
const (
	EventsProviderNone  = "none"
	EventsProviderKafka = "kafka"
)

var eventsProviders = []string{EventsProviderNone, EventsProviderKafka}

// IsValidEventsProvider reports whether name is a known events provider.
func IsValidEventsProvider(name string) bool {
	for _, p := range eventsProviders {
		if p == name {
			return true
		}
	}
	return false
}

// SplitList splits a comma or whitespace separated list, dropping empty
// entries.
func SplitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	if len(fields) == 0 {
		return []string{}
	}
	return fields
}

func joinList(list []string) string {
	return strings.Join(list, ",")
}
