//go:build darwin

package main

import (
	"os"

	"golang.design/x/hotkey/mainthread"
)

// Carbon hotkey registration must happen while the main thread runs its
// event loop, so the CLI runs on a secondary goroutine.
func main() {
	code := 0
	mainthread.Init(func() { code = run() })
	os.Exit(code)
}
