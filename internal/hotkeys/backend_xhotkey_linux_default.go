//go:build linux && !(cgo && x11)

package hotkeys

import "errors"

// DefaultBackend is evdev here: golang.design/x/hotkey opens the X11
// display in its package init and panics without one, so it is only linked
// into builds tagged x11.
const DefaultBackend = BackendEvdev

func newXHotkeyBackend() (backend, error) {
	return nil, errors.New("the auto hotkey backend is not built in; set backend = \"evdev\" or rebuild with cgo and -tags x11")
}
