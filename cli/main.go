package main

import (
	"fmt"
	"os"

	"github.com/trebuchet-org/dvm/internal/cli"
	"github.com/trebuchet-org/dvm/internal/config"
)

// Set by goreleaser
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	config.SetBuildFlags(version, commit, date)

	rootCmd := cli.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
