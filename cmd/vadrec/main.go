// Package main is the entry point for the vadrec CLI.
//
// Usage:
//
//	vadrec [flags] <command>
//
// Commands:
//
//	serve    - Run the HTTP/WebSocket session server
//	record   - Record and transcribe one utterance in the terminal
//	devices  - List audio input devices
package main

import (
	"fmt"
	"os"

	"github.com/GriffinCanCode/vadrec/cmd/vadrec/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
