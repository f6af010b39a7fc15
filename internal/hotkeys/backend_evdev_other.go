//go:build !linux

package hotkeys

import "errors"

func newEvdevBackend() (backend, error) {
	return nil, errors.New("evdev backend is only available on linux")
}
