//go:build darwin

package autostart

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
)

var (
	userHomeDirFn = os.UserHomeDir
	stateHomeFn   = func() string { return xdg.StateHome }
	launchctlFn   = func(args ...string) ([]byte, error) {
		return exec.Command("launchctl", args...).CombinedOutput()
	}
)

// launchAgent is a per-user LaunchAgent plist loaded into the gui domain.
type launchAgent struct {
	label string
	args  []string
}

func newPlatform(name string, args []string) Autostart {
	return &launchAgent{label: name, args: args}
}

func (a *launchAgent) Location() string {
	home, err := userHomeDirFn()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "Library", "LaunchAgents", a.label+".plist")
}

func (a *launchAgent) domain() string {
	return "gui/" + strconv.Itoa(os.Getuid())
}

func (a *launchAgent) IsEnabled() bool {
	path := a.Location()
	return path != "" && fileExists(path)
}

func (a *launchAgent) Enable() error {
	path := a.Location()
	if path == "" {
		return errors.New("cannot resolve home directory")
	}
	args, err := program(a.args)
	if err != nil {
		return err
	}
	logDir := filepath.Join(stateHomeFn(), a.label)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	data, err := renderPlist(plistData{
		Label:      a.label,
		Args:       args,
		StdoutPath: filepath.Join(logDir, "stdout.log"),
		StderrPath: filepath.Join(logDir, "stderr.log"),
	})
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path, data); err != nil {
		return err
	}

	// A loaded agent must be booted out first or bootstrap fails with EIO.
	_, _ = launchctlFn("bootout", a.domain()+"/"+a.label)
	if out, err := launchctlFn("bootstrap", a.domain(), path); err != nil {
		slog.Warn("[autostart] launchctl bootstrap failed; the agent starts at next login",
			"label", a.label, "output", strings.TrimSpace(string(out)), "error", err)
	}
	return nil
}

func (a *launchAgent) Disable() error {
	path := a.Location()
	if path == "" {
		return errors.New("cannot resolve home directory")
	}
	if out, err := launchctlFn("bootout", a.domain()+"/"+a.label); err != nil {
		slog.Debug("[autostart] launchctl bootout failed", "label", a.label,
			"output", strings.TrimSpace(string(out)), "error", err)
	}
	return removeEntry(path)
}
