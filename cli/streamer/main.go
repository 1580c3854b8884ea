package main

import (
	"fmt"
	"os"

	streamercmder "github.com/hypedigitaly/streamer/cmd/streamer"
)

func main() {
	cmd := streamercmder.NewStreamerCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
