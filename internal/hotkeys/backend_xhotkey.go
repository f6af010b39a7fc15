//go:build !linux || (cgo && x11)

package hotkeys

import (
	"fmt"
	"sync"

	"app-activate/internal/keyspec"

	"golang.design/x/hotkey"
)

// DefaultBackend is the backend used when the config names none.
const DefaultBackend = BackendAuto

// xhotkeyKeys maps canonical code names onto golang.design/x/hotkey keys.
// Only keys that exist on every supported platform are listed.
var xhotkeyKeys = func() map[string]hotkey.Key {
	keys := map[string]hotkey.Key{
		"space":      hotkey.KeySpace,
		"enter":      hotkey.KeyReturn,
		"escape":     hotkey.KeyEscape,
		"delete":     hotkey.KeyDelete,
		"tab":        hotkey.KeyTab,
		"arrowleft":  hotkey.KeyLeft,
		"arrowright": hotkey.KeyRight,
		"arrowup":    hotkey.KeyUp,
		"arrowdown":  hotkey.KeyDown,
	}
	letters := []hotkey.Key{
		hotkey.KeyA, hotkey.KeyB, hotkey.KeyC, hotkey.KeyD, hotkey.KeyE, hotkey.KeyF,
		hotkey.KeyG, hotkey.KeyH, hotkey.KeyI, hotkey.KeyJ, hotkey.KeyK, hotkey.KeyL,
		hotkey.KeyM, hotkey.KeyN, hotkey.KeyO, hotkey.KeyP, hotkey.KeyQ, hotkey.KeyR,
		hotkey.KeyS, hotkey.KeyT, hotkey.KeyU, hotkey.KeyV, hotkey.KeyW, hotkey.KeyX,
		hotkey.KeyY, hotkey.KeyZ,
	}
	for i, name := range letterCodes() {
		keys[name] = letters[i]
	}
	digits := []hotkey.Key{
		hotkey.Key0, hotkey.Key1, hotkey.Key2, hotkey.Key3, hotkey.Key4,
		hotkey.Key5, hotkey.Key6, hotkey.Key7, hotkey.Key8, hotkey.Key9,
	}
	for i, name := range digitCodes() {
		keys[name] = digits[i]
	}
	functions := []hotkey.Key{
		hotkey.KeyF1, hotkey.KeyF2, hotkey.KeyF3, hotkey.KeyF4, hotkey.KeyF5,
		hotkey.KeyF6, hotkey.KeyF7, hotkey.KeyF8, hotkey.KeyF9, hotkey.KeyF10,
		hotkey.KeyF11, hotkey.KeyF12, hotkey.KeyF13, hotkey.KeyF14, hotkey.KeyF15,
		hotkey.KeyF16, hotkey.KeyF17, hotkey.KeyF18, hotkey.KeyF19, hotkey.KeyF20,
	}
	for i, key := range functions {
		keys[functionCode(i+1)] = key
	}
	return keys
}()

// xhotkeyEntry is one grabbed key and the goroutine forwarding its events.
type xhotkeyEntry struct {
	hk   *hotkey.Hotkey
	done chan struct{}
}

// xhotkeyBackend registers modifier-less grabs through golang.design/x/hotkey.
// On macOS the process must run its main function through mainthread.Init.
type xhotkeyBackend struct {
	mu      sync.Mutex
	entries map[ID]*xhotkeyEntry
}

func newXHotkeyBackend() (backend, error) {
	return &xhotkeyBackend{entries: map[ID]*xhotkeyEntry{}}, nil
}

func (b *xhotkeyBackend) known(spec keyspec.Spec) bool {
	_, ok := xhotkeyKeys[canonicalCode(spec)]
	return ok
}

func (b *xhotkeyBackend) register(id ID, spec keyspec.Spec, emit func(Event)) error {
	key, ok := xhotkeyKeys[canonicalCode(spec)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, spec)
	}

	hk := hotkey.New(nil, key)
	if err := hk.Register(); err != nil {
		return err
	}

	entry := &xhotkeyEntry{hk: hk, done: make(chan struct{})}
	b.mu.Lock()
	b.entries[id] = entry
	b.mu.Unlock()

	go forwardKeyEvents(id, hk.Keydown(), hk.Keyup(), entry.done, emit)
	return nil
}

func (b *xhotkeyBackend) unregister(id ID) error {
	b.mu.Lock()
	entry, ok := b.entries[id]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: id=%d", ErrNotRegistered, id)
	}

	if err := entry.hk.Unregister(); err != nil {
		return err
	}
	close(entry.done)

	b.mu.Lock()
	delete(b.entries, id)
	b.mu.Unlock()
	return nil
}

func (b *xhotkeyBackend) close() error {
	return nil
}
