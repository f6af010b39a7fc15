package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func TestShouldReloadConfig(t *testing.T) {
	configPath := filepath.Clean("/home/u/.config/app-activate/config.toml")
	base := filepath.Base(configPath)
	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{name: "write", event: fsnotify.Event{Name: configPath, Op: fsnotify.Write}, want: true},
		{name: "create", event: fsnotify.Event{Name: configPath, Op: fsnotify.Create}, want: true},
		{name: "rename", event: fsnotify.Event{Name: configPath, Op: fsnotify.Rename}, want: true},
		{name: "chmod only", event: fsnotify.Event{Name: configPath, Op: fsnotify.Chmod}, want: false},
		{name: "remove", event: fsnotify.Event{Name: configPath, Op: fsnotify.Remove}, want: false},
		{name: "sibling file", event: fsnotify.Event{Name: filepath.Join(filepath.Dir(configPath), "other.toml"), Op: fsnotify.Write}, want: false},
		{name: "relative base name", event: fsnotify.Event{Name: base, Op: fsnotify.Create}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldReloadConfig(configPath, base, tt.event); got != tt.want {
				t.Fatalf("shouldReloadConfig(%v) = %v, want %v", tt.event, got, tt.want)
			}
		})
	}
}

func TestWatchCoalescesBurstIntoOneNotification(t *testing.T) {
	path := writeConfigFile(t, "config.toml", basicTOML)
	var calls atomic.Int32
	w, err := Watch(context.Background(), path, func() { calls.Add(1) })
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })

	for range 5 {
		if err := os.WriteFile(path, []byte(basicTOML), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	// Let any trailing debounce fire before counting.
	time.Sleep(3 * DebounceWindow)
	if got := calls.Load(); got != 1 {
		t.Fatalf("onChange calls = %d, want 1", got)
	}
}

func TestWatchIgnoresOtherFiles(t *testing.T) {
	path := writeConfigFile(t, "config.toml", basicTOML)
	var calls atomic.Int32
	w, err := Watch(context.Background(), path, func() { calls.Add(1) })
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })

	other := filepath.Join(filepath.Dir(path), "notes.txt")
	if err := os.WriteFile(other, []byte("x"), 0o600); err != nil {
		t.Fatalf("write other file: %v", err)
	}
	time.Sleep(3 * DebounceWindow)
	if got := calls.Load(); got != 0 {
		t.Fatalf("onChange calls = %d, want 0", got)
	}
}

func TestWatchCloseIsIdempotent(t *testing.T) {
	path := writeConfigFile(t, "config.toml", basicTOML)
	w, err := Watch(context.Background(), path, func() {})
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestWatchMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "config.toml")
	if _, err := Watch(context.Background(), path, func() {}); err == nil {
		t.Fatal("Watch() expected error for missing directory")
	}
}
