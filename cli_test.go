package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"app-activate/internal/audit"
	"app-activate/internal/autostart"
	"app-activate/internal/config"
	"app-activate/internal/ipc"
	"app-activate/internal/testutil"
)

// runCLI executes the command tree without fang so output can be captured.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	testutil.CaptureLogBuffer(t, slog.LevelError)
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "plain error", err: errors.New("boom"), want: 1},
		{name: "explicit code", err: &exitError{code: 3, err: errNotRunningCLI}, want: 3},
		{name: "wrapped code", err: fmt.Errorf("status: %w", &exitError{code: 4, err: errors.New("x")}), want: 4},
		{name: "zero code falls back", err: &exitError{err: errors.New("x")}, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Fatalf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func stubSend(t *testing.T, fn func(string, ipc.Request) (ipc.Response, error)) {
	t.Helper()
	orig := sendIPCFn
	t.Cleanup(func() { sendIPCFn = orig })
	sendIPCFn = fn
}

func TestSendControl(t *testing.T) {
	tests := []struct {
		name     string
		resp     ipc.Response
		err      error
		wantOut  string
		wantCode int
		wantMsg  string
	}{
		{name: "success", resp: ipc.Response{Stdout: "mode: waiting\n"}, wantOut: "mode: waiting\n"},
		{name: "not running", err: fmt.Errorf("dial: %w", fs.ErrNotExist), wantCode: 3, wantMsg: "not running"},
		{name: "remote failure", resp: ipc.Response{ExitCode: 1, Stderr: "reload failed: bad toml\n"}, wantCode: 1, wantMsg: "reload failed: bad toml"},
		{name: "remote failure without message", resp: ipc.Response{ExitCode: 2}, wantCode: 2, wantMsg: "reload failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotReq ipc.Request
			stubSend(t, func(address string, req ipc.Request) (ipc.Response, error) {
				gotReq = req
				return tt.resp, tt.err
			})
			var out bytes.Buffer
			err := sendControl(&out, ipc.CommandReload)

			if gotReq.Command != ipc.CommandReload {
				t.Fatalf("sent command = %q, want reload", gotReq.Command)
			}
			if out.String() != tt.wantOut {
				t.Fatalf("output = %q, want %q", out.String(), tt.wantOut)
			}
			if tt.wantCode == 0 {
				if err != nil {
					t.Fatalf("sendControl() error = %v", err)
				}
				return
			}
			if got := exitCode(err); got != tt.wantCode {
				t.Fatalf("exitCode = %d, want %d (err %v)", got, tt.wantCode, err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("error = %v, want %q", err, tt.wantMsg)
			}
		})
	}
}

func TestStatusCommandPrintsResponse(t *testing.T) {
	stubSend(t, func(string, ipc.Request) (ipc.Response, error) {
		return ipc.Response{Stdout: "leader:   space\n"}, nil
	})
	out, err := runCLI(t, "status")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	if out != "leader:   space\n" {
		t.Fatalf("status output = %q", out)
	}
}

func TestConfigCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	out, err := runCLI(t, "--config", path, "config", "path")
	if err != nil || strings.TrimSpace(out) != path {
		t.Fatalf("config path = %q, %v; want %q", out, err, path)
	}

	out, err = runCLI(t, "--config", path, "config", "init")
	if err != nil || !strings.Contains(out, "created") {
		t.Fatalf("config init = %q, %v; want created", out, err)
	}
	out, err = runCLI(t, "--config", path, "config", "init")
	if err != nil || !strings.Contains(out, "already exists") {
		t.Fatalf("second config init = %q, %v; want already exists", out, err)
	}

	out, err = runCLI(t, "--config", path, "config", "check")
	if err != nil || !strings.Contains(out, "ok (leader space") {
		t.Fatalf("config check = %q, %v", out, err)
	}

	if err := os.WriteFile(path, []byte("leader_key = \"\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, "--config", path, "config", "check"); err == nil {
		t.Fatal("config check of invalid file expected error")
	}
}

func TestConfigPathFollowsEnvironment(t *testing.T) {
	want := filepath.Join(t.TempDir(), "env.yaml")
	t.Setenv(config.EnvConfigPath, want)
	out, err := runCLI(t, "config", "path")
	if err != nil || strings.TrimSpace(out) != want {
		t.Fatalf("config path = %q, %v; want %q", out, err, want)
	}
}

func TestKeysCommandListsBindings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(baseConfig), 0o600); err != nil {
		t.Fatal(err)
	}
	out, err := runCLI(t, "--config", path, "keys")
	if err != nil {
		t.Fatalf("keys error = %v", err)
	}
	for _, want := range []string{"Leader space", "space a", "/bin/alpha", "/bin/beta", "secondary", "/bin/other"} {
		if !strings.Contains(out, want) {
			t.Fatalf("keys output missing %q:\n%s", want, out)
		}
	}
}

func TestReportCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("db = \"log.db\"\n"+baseConfig), 0o600); err != nil {
		t.Fatal(err)
	}
	store, err := audit.Open(filepath.Join(dir, "log.db"))
	if err != nil {
		t.Fatalf("audit.Open() error = %v", err)
	}
	if _, err := store.Insert(context.Background(), time.Now().Add(-time.Minute), "/bin/alpha"); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	out, err := runCLI(t, "--config", path, "report")
	if err != nil {
		t.Fatalf("report error = %v", err)
	}
	for _, want := range []string{"Today", "Last 30 days", "alpha"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}

func TestReportCommandRequiresDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(baseConfig), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := runCLI(t, "--config", path, "report")
	if err == nil || !strings.Contains(err.Error(), "auditing is disabled") {
		t.Fatalf("report error = %v, want auditing is disabled", err)
	}
}

type fakeAutostart struct {
	enableErr  error
	disableErr error
	enabled    bool
}

func (f *fakeAutostart) IsEnabled() bool  { return f.enabled }
func (f *fakeAutostart) Enable() error    { f.enabled = f.enableErr == nil; return f.enableErr }
func (f *fakeAutostart) Disable() error   { return f.disableErr }
func (f *fakeAutostart) Location() string { return "/tmp/app-activate.desktop" }

func TestRegisterCommands(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	tests := []struct {
		name     string
		args     []string
		entry    *fakeAutostart
		wantArgs []string
		wantOut  string
		wantErr  bool
	}{
		{name: "register default config", args: []string{"register"}, entry: &fakeAutostart{}, wantArgs: []string{"start"}, wantOut: "registered /tmp/app-activate.desktop"},
		{name: "register explicit config", args: []string{"--config", configPath, "register"}, entry: &fakeAutostart{}, wantArgs: []string{"start", "--config", configPath}, wantOut: "registered"},
		{name: "register failure", args: []string{"register"}, entry: &fakeAutostart{enableErr: errors.New("denied")}, wantArgs: []string{"start"}, wantErr: true},
		{name: "unregister", args: []string{"unregister"}, entry: &fakeAutostart{}, wantArgs: []string{"start"}, wantOut: "removed"},
		{name: "unregister missing entry", args: []string{"unregister"}, entry: &fakeAutostart{disableErr: autostart.ErrNotEnabled}, wantArgs: []string{"start"}, wantOut: "not registered"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := newAutostartFn
			t.Cleanup(func() { newAutostartFn = orig })
			var gotName string
			var gotArgs []string
			newAutostartFn = func(name string, args ...string) autostart.Autostart {
				gotName, gotArgs = name, args
				return tt.entry
			}

			out, err := runCLI(t, tt.args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if gotName != appName || !reflect.DeepEqual(gotArgs, tt.wantArgs) {
				t.Fatalf("autostart.New(%q, %v), want (%q, %v)", gotName, gotArgs, appName, tt.wantArgs)
			}
			if !strings.Contains(out, tt.wantOut) {
				t.Fatalf("output = %q, want %q", out, tt.wantOut)
			}
		})
	}
}

func TestRootAndStartRunHost(t *testing.T) {
	orig := runHostFn
	t.Cleanup(func() { runHostFn = orig })
	for _, args := range [][]string{nil, {"start"}, {"--debug", "start"}} {
		var calls int
		var debug bool
		runHostFn = func(_ context.Context, opts *cliOptions) error {
			calls++
			debug = opts.level.Level() == slog.LevelDebug
			return nil
		}
		if _, err := runCLI(t, args...); err != nil {
			t.Fatalf("%v: error = %v", args, err)
		}
		if calls != 1 {
			t.Fatalf("%v: runHost calls = %d, want 1", args, calls)
		}
		wantDebug := len(args) > 0 && args[0] == "--debug"
		if debug != wantDebug {
			t.Fatalf("%v: debug level = %v, want %v", args, debug, wantDebug)
		}
	}
}
