// Command recpurge bulk-deletes the records of a NetSuite custom record type.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/recpurge/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		// ExitErrors were already reported by the command.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	os.Exit(cli.GetExitCode(err))
}
