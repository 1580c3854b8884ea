package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --listen
// on both "streamer serve" and "streamerproxy").
type Flag struct {
	// Name is the long flag name (e.g. "listen").
	Name string

	// Shorthand is the one-letter short flag (e.g. "l"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "proxy.listen").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddBoolFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagListen            = "listen"
	FlagAllowedOrigins    = "allowed-origins"
	FlagAnthropicUpstream = "anthropic-upstream"
	FlagVariablesEnabled  = "variables"
	FlagVariablesEndpoint = "variables-endpoint"
	FlagEventsProvider    = "events-provider"
	FlagEventsBrokers     = "events-brokers"
	FlagEventsTopic       = "events-topic"
	FlagProxyTarget       = "proxy-target"
	FlagProjectName       = "project"
)

// ProxyFlags are the flags shared by every command that runs the proxy.
var ProxyFlags = FlagSet{
	FlagListen: {
		Name:        "listen",
		Shorthand:   "l",
		ViperKey:    "proxy.listen",
		Description: "Address for the proxy to listen on",
	},
	FlagAllowedOrigins: {
		Name:        "allowed-origins",
		ViperKey:    "proxy.allowed_origins",
		Description: "Comma separated origin allow-list (empty accepts every origin)",
	},
	FlagAnthropicUpstream: {
		Name:        "anthropic-upstream",
		ViperKey:    "proxy.anthropic_upstream",
		Description: "Anthropic Messages API base URL",
	},
	FlagVariablesEnabled: {
		Name:        "variables",
		ViperKey:    "variables.enabled",
		Description: "Push finished answers to the variable store",
	},
	FlagVariablesEndpoint: {
		Name:        "variables-endpoint",
		ViperKey:    "variables.endpoint",
		Description: "Variable store runtime URL",
	},
	FlagEventsProvider: {
		Name:        "events-provider",
		ViperKey:    "events.provider",
		Description: "Answer event publisher (none, kafka)",
	},
	FlagEventsBrokers: {
		Name:        "events-brokers",
		ViperKey:    "events.brokers",
		Description: "Comma separated Kafka brokers",
	},
	FlagEventsTopic: {
		Name:        "events-topic",
		ViperKey:    "events.topic",
		Description: "Kafka topic for answer events",
	},
}

// ClientFlags are the flags of commands that talk to a running proxy.
var ClientFlags = FlagSet{
	FlagProxyTarget: {
		Name:        "proxy-target",
		ViperKey:    "client.proxy_target",
		Description: "Proxy URL to send requests to",
	},
	FlagProjectName: {
		Name:        "project",
		Shorthand:   "p",
		ViperKey:    "client.project_name",
		Description: "Project name used to select credentials",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddBoolFlag registers a bool flag on cmd from the given FlagSet.
func AddBoolFlag(cmd *cobra.Command, fs FlagSet, key string, target *bool) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultBool(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().BoolVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().BoolVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// Keys returns the registry keys of fs.
func (fs FlagSet) Keys() []string {
	keys := make([]string, 0, len(fs))
	for k := range fs {
		keys = append(keys, k)
	}
	return keys
}

// defaultString returns the default value for a viper key from
// NewDefaultConfig, joining lists with commas.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	if list, ok := v.Get(viperKey).([]string); ok {
		return joinList(list)
	}
	return v.GetString(viperKey)
}

// defaultBool returns the default bool value for a viper key from NewDefaultConfig.
func defaultBool(viperKey string) bool {
	v := viper.New()
	setViperDefaults(v)
	return v.GetBool(viperKey)
}
