package main

import (
	"os"

	"github.com/dyike/CortexTrade/internal/cli"
)

// dataflow is a standalone feed collector for hosts that only ingest.
func main() {
	cmd := cli.NewCollectCmd()
	cmd.Use = "dataflow"
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
