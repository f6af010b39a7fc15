package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
)

// DebounceWindow coalesces editor save bursts into one change notification.
const DebounceWindow = 100 * time.Millisecond

// Watcher reports changes of a single config file.
type Watcher struct {
	fs        *fsnotify.Watcher
	path      string
	base      string
	notify    func()
	stop      func()
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Watch starts watching path. onChange runs on a background goroutine at most
// once per DebounceWindow burst; the caller is expected to re-read the whole
// file. The parent directory is watched, not the file, so editors that save
// through temp file + rename keep being observed.
func Watch(ctx context.Context, path string, onChange func()) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch config: resolve path: %w", err)
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch config: %w", err)
	}
	if err := fs.Add(filepath.Dir(absPath)); err != nil {
		_ = fs.Close()
		return nil, fmt.Errorf("watch config dir %s: %w", filepath.Dir(absPath), err)
	}

	debounced := debounce.New(DebounceWindow)
	ctx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		fs:     fs,
		path:   filepath.Clean(absPath),
		base:   filepath.Base(absPath),
		notify: func() { debounced(onChange) },
		stop:   cancel,
	}
	w.wg.Go(func() { w.loop(ctx) })
	slog.Debug("[DEBUG-CONFIG] watching config", "path", w.path)
	return w, nil
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if shouldReloadConfig(w.path, w.base, ev) {
				slog.Debug("[DEBUG-CONFIG] config file event", "op", ev.Op.String(), "name", ev.Name)
				w.notify()
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			slog.Warn("[WARN-CONFIG] config watcher error", "error", err)
		}
	}
}

// Close stops the watcher. It is idempotent.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.stop()
		err = w.fs.Close()
		w.wg.Wait()
	})
	return err
}

// shouldReloadConfig reports whether an fsnotify event concerns the config
// file. Editors that write via temp + rename surface as Create or Rename of
// the base name.
func shouldReloadConfig(configPath, configBase string, event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Clean(event.Name)
	if name == configPath {
		return true
	}
	return filepath.Base(name) == configBase
}
