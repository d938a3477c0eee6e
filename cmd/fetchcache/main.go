package main

import (
	"fmt"
	"os"

	"github.com/rshade/fetchcache/internal/cli"
	"github.com/rshade/fetchcache/pkg/version"
)

// run executes the CLI and returns the process exit code.
func run(args []string) int {
	root := cli.NewRootCmd(version.GetVersion())
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:]))
}
