// Command docrun validates and runs command documents.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/docrun/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "docrun:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
