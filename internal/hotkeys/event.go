package hotkeys

import (
	"errors"
	"fmt"
	"strings"
)

// ID identifies one registration made through Manager.Register.
// IDs are allocated from a process-wide counter and never reused.
type ID uint32

// State is the key transition carried by an Event.
type State int

const (
	Pressed State = iota
	Released
)

func (s State) String() string {
	switch s {
	case Pressed:
		return "pressed"
	case Released:
		return "released"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event is one hotkey notification delivered by a backend.
type Event struct {
	ID    ID
	State State
}

var (
	// ErrUnknownKey is returned when a symbolic key name has no mapping on
	// the active backend.
	ErrUnknownKey = errors.New("unknown key")
	// ErrNotRegistered is returned by Unregister for IDs the manager does
	// not hold.
	ErrNotRegistered = errors.New("hotkey not registered")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("hotkey manager closed")
)

// Backend selects the capture mechanism.
type Backend string

const (
	// BackendAuto grabs keys through the platform hotkey API
	// (Carbon on macOS, RegisterHotKey on Windows, XGrabKey on X11). Linux
	// builds only carry it with -tags x11.
	BackendAuto Backend = "auto"
	// BackendEvdev observes /dev/input on Linux. Keys are seen but not
	// grabbed, so they still reach the focused application.
	BackendEvdev Backend = "evdev"
)

// ParseBackend validates a backend name from configuration.
// An empty name selects DefaultBackend.
func ParseBackend(name string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(name))) {
	case "":
		return DefaultBackend, nil
	case BackendAuto:
		return BackendAuto, nil
	case BackendEvdev:
		return BackendEvdev, nil
	default:
		return "", fmt.Errorf("unknown hotkey backend %q (available: auto, evdev)", name)
	}
}
