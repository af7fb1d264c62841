// Command nexus stores and edits AI canvas projects.
package main

import (
	"os"

	"github.com/custodia-labs/nexus-canvas/internal/adapters/driving/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.SetBootstrap(wire)
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
