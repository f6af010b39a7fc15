package hotkeys

import "fmt"

func newBackend(kind Backend) (backend, error) {
	switch kind {
	case "":
		return newBackend(DefaultBackend)
	case BackendAuto:
		return newXHotkeyBackend()
	case BackendEvdev:
		return newEvdevBackend()
	default:
		return nil, fmt.Errorf("unknown hotkey backend %q", kind)
	}
}
