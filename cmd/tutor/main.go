// Package main is the entry point for the tutor CLI.
//
// Usage:
//
//	tutor [flags] <command> [args]
//
// Commands:
//
//	serve      - Run the tutor service (HTTP, gRPC health, metrics)
//	talk       - Hold a session in this terminal
//	watch      - Follow the session of a running service
//	health     - Query the gRPC health of a running service
//	languages  - List supported languages
package main

import (
	"fmt"
	"os"

	"ai-voice-tutor/cmd/tutor/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
