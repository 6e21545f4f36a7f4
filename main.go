package main

import (
	"fmt"
	"os"

	"github.com/skoparov/webgraphbuilder/cmd"
)

func main() {
	// Errors are reported on stderr; the exit code is 0 regardless so that
	// batch scripts driving long crawl sequences are not interrupted.
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
}
