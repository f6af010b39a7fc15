// Package launcher starts launch targets detached from the caller.
package launcher

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/pkg/browser"

	"app-activate/internal/procutil"
)

var ErrEmptyTarget = errors.New("empty launch target")

var (
	execCommandFn = exec.Command
	startFn       = func(cmd *exec.Cmd) error { return cmd.Start() }
	waitFn        = func(cmd *exec.Cmd) error { return cmd.Wait() }
	statFn        = os.Stat
	openURLFn     = browser.OpenURL
)

func init() {
	// browser.OpenURL copies the opener's output to os.Stdout by default.
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
}

// Detached launches targets without waiting for them. The zero value uses
// the running platform's opener.
type Detached struct {
	goos string
}

// New returns a launcher for the running platform.
func New() *Detached {
	return &Detached{goos: runtime.GOOS}
}

// Launch opens target and returns once the opener process has started.
// http(s) URLs go to the default browser. Anything else must exist on disk.
func (d *Detached) Launch(target string) error {
	target = strings.TrimSpace(target)
	if target == "" {
		return ErrEmptyTarget
	}
	if IsURL(target) {
		if err := openURLFn(target); err != nil {
			return fmt.Errorf("open url %s: %w", target, err)
		}
		return nil
	}

	info, err := statFn(target)
	if err != nil {
		return fmt.Errorf("launch target: %w", err)
	}

	name, args := commandFor(d.platform(), target, info)
	cmd := execCommandFn(name, args...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	procutil.Detach(cmd)
	procutil.HideWindow(cmd)
	if err := startFn(cmd); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	wait := waitFn
	go reap(cmd, target, wait)
	return nil
}

func (d *Detached) platform() string {
	if d == nil || d.goos == "" {
		return runtime.GOOS
	}
	return d.goos
}

// reap collects the opener's exit status so it does not linger as a zombie.
func reap(cmd *exec.Cmd, target string, wait func(*exec.Cmd) error) {
	if err := wait(cmd); err != nil {
		slog.Debug("[launcher] opener exited with error", "target", target, "error", err)
	}
}

// commandFor returns the opener invocation for target on goos.
// Executable regular files on Linux run directly because xdg-open would
// hand them to a file manager instead.
func commandFor(goos, target string, info os.FileInfo) (string, []string) {
	switch goos {
	case "darwin":
		return "open", []string{target}
	case "windows":
		// The empty string is start's window title argument.
		return "cmd", []string{"/c", "start", "", target}
	default:
		if info != nil && info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0 {
			return target, nil
		}
		return "xdg-open", []string{target}
	}
}

// IsURL reports whether target is an http or https URL.
func IsURL(target string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
