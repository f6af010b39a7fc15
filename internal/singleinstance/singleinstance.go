// Package singleinstance keeps a second launcher from grabbing the same
// hotkeys as a running one.
package singleinstance

import (
	"errors"

	"app-activate/internal/userutil"
)

// ErrAlreadyRunning is returned by TryLock when another instance holds the lock.
var ErrAlreadyRunning = errors.New("another instance is already running")

// DefaultName returns the per-user lock name. It mirrors the naming of
// ipc.DefaultAddress.
func DefaultName() string {
	return "app-activate-" + userutil.SanitizeUsername(userutil.CurrentUsername())
}
