//go:build !windows

package ipc

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

var runtimeDirFn = func() string { return xdg.RuntimeDir }

func defaultAddress(username string) string {
	return filepath.Join(runtimeDirFn(), "app-activate-"+username+".sock")
}

func validAddress(value string) bool {
	return filepath.IsAbs(value) && strings.HasSuffix(value, ".sock") && filepath.Clean(value) == value
}

// listen binds a unix socket readable only by the current user. A leftover
// socket file nobody answers on is removed first.
func listen(address string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(address), 0o700); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}
	if _, err := os.Lstat(address); err == nil {
		conn, dialErr := net.DialTimeout("unix", address, time.Second)
		if dialErr == nil {
			_ = conn.Close()
			return nil, fmt.Errorf("%s is already served by another process", address)
		}
		slog.Debug("[ipc] removing stale socket", "path", address, "error", dialErr)
		if err := os.Remove(address); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
	}
	listener, err := net.Listen("unix", address)
	if err != nil {
		return nil, err
	}
	if ul, ok := listener.(*net.UnixListener); ok {
		ul.SetUnlinkOnClose(true)
	}
	if err := os.Chmod(address, 0o600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}
	return listener, nil
}

func dial(address string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout("unix", address, timeout)
}

// cleanup removes the socket file if closing the listener left it behind.
func cleanup(address string) {
	if err := os.Remove(address); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Debug("[ipc] failed to remove socket file", "path", address, "error", err)
	}
}
