// Command novella runs, checks and tests tick-driven scripts.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/novella/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
