//go:build windows

package autostart

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows/registry"
)

const runKeyPath = `Software\Microsoft\Windows\CurrentVersion\Run`

// runValue is a string value under the per-user Run key.
type runValue struct {
	name string
	args []string
}

func newPlatform(name string, args []string) Autostart {
	return &runValue{name: name, args: args}
}

func (r *runValue) Location() string {
	return `HKCU\` + runKeyPath + `\` + r.name
}

func (r *runValue) IsEnabled() bool {
	key, err := registry.OpenKey(registry.CURRENT_USER, runKeyPath, registry.QUERY_VALUE)
	if err != nil {
		return false
	}
	defer key.Close()
	_, _, err = key.GetStringValue(r.name)
	return err == nil
}

func (r *runValue) Enable() error {
	args, err := program(r.args)
	if err != nil {
		return err
	}
	key, _, err := registry.CreateKey(registry.CURRENT_USER, runKeyPath, registry.SET_VALUE)
	if err != nil {
		return fmt.Errorf("open run key: %w", err)
	}
	defer key.Close()
	if err := key.SetStringValue(r.name, windowsCommandLine(args)); err != nil {
		return fmt.Errorf("set run value: %w", err)
	}
	return nil
}

func (r *runValue) Disable() error {
	key, err := registry.OpenKey(registry.CURRENT_USER, runKeyPath, registry.SET_VALUE)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return ErrNotEnabled
		}
		return fmt.Errorf("open run key: %w", err)
	}
	defer key.Close()
	if err := key.DeleteValue(r.name); err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return ErrNotEnabled
		}
		return fmt.Errorf("delete run value: %w", err)
	}
	return nil
}
