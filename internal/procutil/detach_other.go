//go:build !windows

package procutil

import (
	"os/exec"
	"syscall"
)

// Detach starts cmd in its own process group so signals sent to the
// launcher's group (Ctrl+C in a terminal, service stop) do not reach it.
// Existing SysProcAttr fields are preserved.
func Detach(cmd *exec.Cmd) {
	if cmd == nil {
		return
	}
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// HideWindow is a no-op on non-Windows platforms.
func HideWindow(_ *exec.Cmd) {}
