// avrflash compiles Arduino sketches with avr-gcc and uploads them to AVR
// boards with avrdude.
//
// It can also run as an MCP server so the same operations are available
// to assistants through the Model Context Protocol (MCP).
package main

import (
	"fmt"
	"os"

	"github.com/rmrfslashbin/avrflash/internal/cmd"
)

// Build information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildTime = "unknown"
)

func main() {
	// Set version info for commands to use
	cmd.SetVersionInfo(version, gitCommit, buildTime)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
