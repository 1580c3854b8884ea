// Package configcmder provides the config command for managing persistent
// streamer configuration stored in the .streamer/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent streamer configuration.

Configuration is stored as config.toml in the .streamer/ directory and provides
default values for command flags. CLI flags and STREAMER_* environment
variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  proxy.listen, proxy.allowed_origins, proxy.anthropic_upstream,
  proxy.anthropic_version, proxy.default_model, proxy.default_max_tokens,
  proxy.default_temperature,
  variables.enabled, variables.endpoint, variables.version_id,
  variables.variable_name,
  events.provider, events.brokers, events.topic,
  client.proxy_target, client.project_name

List values are written comma separated.

Use subcommands to get, set, or list configuration values:
  streamer config set <key> <value>    Set a configuration value
  streamer config get <key>            Get a configuration value
  streamer config list                 List all configuration values

Examples:
  streamer config set proxy.allowed_origins teplice.cz,hypedigitaly.ai
  streamer config set events.provider kafka
  streamer config get proxy.default_model
  streamer config list`

const configShortDesc string = "Manage persistent streamer configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
