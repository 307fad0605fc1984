// Command scrawl compiles, runs, stores and audits SCRAWL VM programs.
//
// Usage:
//
//	scrawl <command> [flags]
//
// Run "scrawl --help" for the command list. Exit status is 0 on success,
// 1 when a run faults, a scenario fails, a replay diverges or a handshake
// mismatches, and 2 for command errors.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/scrawl/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "scrawl: %v\n", err)
	}
	os.Exit(cli.GetExitCode(err))
}
