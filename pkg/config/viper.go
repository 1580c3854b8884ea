package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/hypedigitaly/streamer/pkg/dotdir"
)

// EnvPrefix prefixes the environment variables that override config keys.
const EnvPrefix = "STREAMER"

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the STREAMER_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (STREAMER_PROXY_LISTEN, STREAMER_EVENTS_PROVIDER, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	// 1. Register all defaults from NewDefaultConfig().
	setViperDefaults(v)

	// 2. Config file discovery via dotdir resolution.
	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// 3. Environment variables: STREAMER_PROXY_LISTEN, STREAMER_VARIABLES_ENABLED, etc.
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// FromViper materializes the effective Config from v.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Version: v.GetInt("version"),
		Proxy: ProxyConfig{
			Listen:             v.GetString("proxy.listen"),
			AllowedOrigins:     listValue(v, "proxy.allowed_origins"),
			AnthropicUpstream:  v.GetString("proxy.anthropic_upstream"),
			AnthropicVersion:   v.GetString("proxy.anthropic_version"),
			DefaultModel:       v.GetString("proxy.default_model"),
			DefaultMaxTokens:   v.GetInt("proxy.default_max_tokens"),
			DefaultTemperature: v.GetFloat64("proxy.default_temperature"),
		},
		Variables: VariablesConfig{
			Enabled:      v.GetBool("variables.enabled"),
			Endpoint:     v.GetString("variables.endpoint"),
			VersionID:    v.GetString("variables.version_id"),
			VariableName: v.GetString("variables.variable_name"),
		},
		Events: EventsConfig{
			Provider: v.GetString("events.provider"),
			Brokers:  listValue(v, "events.brokers"),
			Topic:    v.GetString("events.topic"),
		},
		Client: ClientConfig{
			ProxyTarget: v.GetString("client.proxy_target"),
			ProjectName: v.GetString("client.project_name"),
		},
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}
	if !IsValidEventsProvider(cfg.Events.Provider) {
		return nil, fmt.Errorf("unknown events provider %q", cfg.Events.Provider)
	}

	return cfg, nil
}

// listValue reads a list key. Environment variables and flags arrive as a
// single comma separated string.
func listValue(v *viper.Viper, key string) []string {
	switch raw := v.Get(key).(type) {
	case string:
		return SplitList(raw)
	case []string:
		return append([]string{}, raw...)
	default:
		out := []string{}
		for _, s := range v.GetStringSlice(key) {
			out = append(out, SplitList(s)...)
		}
		return out
	}
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Proxy
	v.SetDefault("proxy.listen", d.Proxy.Listen)
	v.SetDefault("proxy.allowed_origins", d.Proxy.AllowedOrigins)
	v.SetDefault("proxy.anthropic_upstream", d.Proxy.AnthropicUpstream)
	v.SetDefault("proxy.anthropic_version", d.Proxy.AnthropicVersion)
	v.SetDefault("proxy.default_model", d.Proxy.DefaultModel)
	v.SetDefault("proxy.default_max_tokens", d.Proxy.DefaultMaxTokens)
	v.SetDefault("proxy.default_temperature", d.Proxy.DefaultTemperature)

	// Variables
	v.SetDefault("variables.enabled", d.Variables.Enabled)
	v.SetDefault("variables.endpoint", d.Variables.Endpoint)
	v.SetDefault("variables.version_id", d.Variables.VersionID)
	v.SetDefault("variables.variable_name", d.Variables.VariableName)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)

	// Client
	v.SetDefault("client.proxy_target", d.Client.ProxyTarget)
	v.SetDefault("client.project_name", d.Client.ProjectName)
}
