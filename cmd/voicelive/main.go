// Package main is the entry point for the voicelive CLI.
//
// Usage:
//
//	voicelive [flags] <command> [subcommand] [args]
//
// Commands:
//
//	talk      - Hold a live voice conversation with an assistant
//	sessions  - Inspect, export and prune archived sessions
//	serve     - Serve archived sessions, live events and metrics over HTTP
//	podcast   - Turn news articles into a two-host audio episode
//	devices   - List audio devices
//	config    - Manage provider contexts
//	version   - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/stylehub-project/news-sub000/cmd/voicelive/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
