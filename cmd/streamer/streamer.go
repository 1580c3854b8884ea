// Package streamercmder is the root of the streamer command tree.
package streamercmder

import (
	"github.com/spf13/cobra"

	askcmder "github.com/hypedigitaly/streamer/cmd/streamer/ask"
	authcmder "github.com/hypedigitaly/streamer/cmd/streamer/auth"
	configcmder "github.com/hypedigitaly/streamer/cmd/streamer/config"
	initcmder "github.com/hypedigitaly/streamer/cmd/streamer/init"
	servecmder "github.com/hypedigitaly/streamer/cmd/streamer/serve"
	versioncmder "github.com/hypedigitaly/streamer/cmd/version"
)

const streamerLongDesc string = `Streamer relays Claude answers to chat widgets as they are written.

Run the relay and talk to it using:
  streamer serve       Run the stream proxy
  streamer ask         Stream an answer through a running proxy
  streamer auth        Store Anthropic and Voiceflow API keys
  streamer config      Manage persistent configuration`

const streamerShortDesc string = "Streamer - streaming chat relay"

func NewStreamerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "streamer",
		Short:         streamerShortDesc,
		Long:          streamerLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .streamer/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
