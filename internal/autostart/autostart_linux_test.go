//go:build linux

package autostart

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDesktopEntryLifecycle(t *testing.T) {
	configHome := t.TempDir()
	orig := configHomeFn
	t.Cleanup(func() { configHomeFn = orig })
	configHomeFn = func() string { return configHome }
	stubExecutable(t, "/usr/local/bin/app-activate")

	a := New("app-activate", "start")
	wantPath := filepath.Join(configHome, "autostart", "app-activate.desktop")
	if a.Location() != wantPath {
		t.Fatalf("Location() = %q, want %q", a.Location(), wantPath)
	}
	if a.IsEnabled() {
		t.Fatal("IsEnabled() = true before Enable")
	}

	if err := a.Enable(); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}
	if !a.IsEnabled() {
		t.Fatal("IsEnabled() = false after Enable")
	}
	data, err := os.ReadFile(wantPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "Exec=/usr/local/bin/app-activate start\n") {
		t.Fatalf("desktop entry:\n%s", data)
	}

	if err := a.Disable(); err != nil {
		t.Fatalf("Disable() error = %v", err)
	}
	if a.IsEnabled() {
		t.Fatal("IsEnabled() = true after Disable")
	}
	if err := a.Disable(); !errors.Is(err, ErrNotEnabled) {
		t.Fatalf("second Disable() error = %v, want ErrNotEnabled", err)
	}
}
