// Command sid is the ternary semantic diagram engine CLI.
package main

import (
	"os"

	"github.com/popslovesmusic/airs-sub008/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		// Commands report their own diagnostics; here only the exit
		// code matters.
		os.Exit(cli.GetExitCode(err))
	}
}
