// Command glowup runs the GlowUp scoring service.
package main

import (
	"fmt"
	"os"

	"github.com/glowup/glowup-core/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := cli.NewRootCommand(version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
