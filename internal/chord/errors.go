package chord

import (
	"errors"
	"fmt"

	"app-activate/internal/hotkeys"
	"app-activate/internal/keyspec"
)

var (
	// ErrHotkeyLeak marks an unregister that failed even after a retry. The
	// key stays grabbed by the process until a later release succeeds.
	ErrHotkeyLeak = errors.New("hotkey leak")
	// ErrClosed is returned by Apply after Close.
	ErrClosed = errors.New("chord machine closed")

	ErrEmptyLeader    = errors.New("leader key is empty")
	ErrUnknownKey     = errors.New("unknown key name")
	ErrDuplicateKey   = errors.New("duplicate key binding")
	ErrEmptyLabel     = errors.New("empty key label")
	ErrEmptyTarget    = errors.New("empty launch target")
	ErrNoApplications = errors.New("no applications configured")
	ErrInvalidTimeout = errors.New("timeout must be positive")
)

// ConfigError reports a settings value that cannot be turned into a chord
// table. Apply leaves the running state untouched when it returns one.
type ConfigError struct {
	Field string
	Label string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Label == "" {
		return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Label, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// RegistrationError reports a register or unregister call refused by the
// hotkey facility.
type RegistrationError struct {
	Op   string
	Spec keyspec.Spec
	ID   hotkeys.ID
	Err  error
}

func (e *RegistrationError) Error() string {
	if e.ID == 0 {
		return fmt.Sprintf("%s hotkey %q: %v", e.Op, e.Spec, e.Err)
	}
	return fmt.Sprintf("%s hotkey %q (id=%d): %v", e.Op, e.Spec, e.ID, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// LaunchError reports a target the launcher could not start.
type LaunchError struct {
	Target string
	Err    error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %q: %v", e.Target, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// AuditError reports a launch that happened but could not be recorded.
type AuditError struct {
	Target string
	Err    error
}

func (e *AuditError) Error() string {
	return fmt.Sprintf("record launch of %q: %v", e.Target, e.Err)
}

func (e *AuditError) Unwrap() error { return e.Err }
