// Command tsql2 runs TSQL2 statements against a SQL database.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/tsql2/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
