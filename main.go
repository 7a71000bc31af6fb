package main

import (
	"github.com/giantswarm/mcp-ory/cmd"
)

// version is set via ldflags during build.
var version = "dev"

func main() {
	cmd.SetVersion(version)
	cmd.Execute()
}
