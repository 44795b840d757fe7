// Package main is the entry point for the vocalis CLI.
//
// Usage:
//
//	vocalis [flags] <command> [args]
//
// Commands:
//
//	detect     - Classify audio files as REAL or FAKE
//	enroll     - Build a speaker voiceprint from recordings
//	verify     - Check a recording against an enrolled speaker
//	users      - List or delete enrolled speakers
//	results    - Show the verdict log
//	serve      - Run the HTTP service
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/haivivi/vocalis/cmd/vocalis/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
