package main

import (
	"fmt"
	"os"

	servecmder "github.com/hypedigitaly/streamer/cmd/streamer/serve"
)

func main() {
	cmd := servecmder.NewServeCmd()

	cmd.Use = "streamerproxy"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .streamer/ config directory")

	err := cmd.Execute()
	if err != nil {
		fmt.Printf("Error executing root command: %v\n", err)
		os.Exit(1)
	}
}
