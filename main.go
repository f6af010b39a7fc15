package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
)

// Version information (set at build time with -ldflags).
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// appName names the config directory, the login entry and the lock.
const appName = "app-activate"

// execute runs the command line and returns the process exit code. main
// calls it directly or from the macOS main thread.
func execute(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(fmt.Sprintf("%s\nCommit: %s\nBuilt: %s", version, commit, date)),
	); err != nil {
		return exitCode(err)
	}
	return 0
}

func run() int {
	return execute(os.Args[1:])
}
