//go:build linux

package autostart

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

var configHomeFn = func() string { return xdg.ConfigHome }

// desktopEntry is an XDG autostart .desktop file.
type desktopEntry struct {
	name string
	args []string
}

func newPlatform(name string, args []string) Autostart {
	return &desktopEntry{name: name, args: args}
}

func (d *desktopEntry) Location() string {
	return filepath.Join(configHomeFn(), "autostart", d.name+".desktop")
}

func (d *desktopEntry) IsEnabled() bool {
	return fileExists(d.Location())
}

func (d *desktopEntry) Enable() error {
	args, err := program(d.args)
	if err != nil {
		return err
	}
	return writeFileAtomic(d.Location(), renderDesktopEntry(d.name, args))
}

func (d *desktopEntry) Disable() error {
	return removeEntry(d.Location())
}
