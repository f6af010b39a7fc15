//go:build !darwin && !linux && !windows

package autostart

import (
	"errors"
	"runtime"
)

type unsupported struct{}

func newPlatform(string, []string) Autostart { return unsupported{} }

func (unsupported) Location() string { return "" }
func (unsupported) IsEnabled() bool  { return false }
func (unsupported) Enable() error {
	return errors.New("autostart is not supported on " + runtime.GOOS)
}
func (unsupported) Disable() error { return ErrNotEnabled }
