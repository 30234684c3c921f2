// Command deskquery parses desktop search queries, compiles them to SQL and
// searches an index of document metadata.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/deskquery/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
