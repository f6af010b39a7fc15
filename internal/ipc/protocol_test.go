package ipc

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestDefaultAddressSanitizesUsername(t *testing.T) {
	t.Setenv(EnvAddress, "")
	t.Setenv("USERNAME", "unit user!")

	got := DefaultAddress()
	if !strings.Contains(got, "app-activate-unit_user_") {
		t.Fatalf("DefaultAddress() = %q, want sanitized username", got)
	}
}

func TestDefaultAddressRejectsUntrustedEnvOverride(t *testing.T) {
	t.Setenv(EnvAddress, "relative/socket")
	t.Setenv("USERNAME", "unit-tester")

	got := DefaultAddress()
	if got == "relative/socket" {
		t.Fatal("DefaultAddress() unexpectedly accepted untrusted env override")
	}
	if !strings.Contains(got, "app-activate-unit-tester") {
		t.Fatalf("DefaultAddress() = %q, want per-user default", got)
	}
}

func TestDefaultAddressFallbackWhenUsernameEmpty(t *testing.T) {
	t.Setenv(EnvAddress, "")
	t.Setenv("USERNAME", "")
	t.Setenv("USER", "")

	// user.Current() may succeed (returning the OS user) or fail
	// (returning "unknown" via the sanitizer fallback).
	got := DefaultAddress()
	if strings.Contains(got, "app-activate-.") || strings.HasSuffix(got, "app-activate-") {
		t.Fatalf("DefaultAddress() = %q, username part must not be empty", got)
	}
}

func TestDecodeRequestNormalizes(t *testing.T) {
	raw, err := json.Marshal(map[string]any{"command": " status "})
	if err != nil {
		t.Fatalf("json.Marshal error = %v", err)
	}

	req, err := decodeRequest(raw)
	if err != nil {
		t.Fatalf("decodeRequest error = %v", err)
	}
	if req.Command != CommandStatus {
		t.Errorf("decodeRequest: Command = %q, want %q", req.Command, CommandStatus)
	}
	if req.Args == nil || len(req.Args) != 0 {
		t.Errorf("decodeRequest: Args = %#v, want empty slice", req.Args)
	}
}

func TestDecodeRequestRejectsGarbage(t *testing.T) {
	if _, err := decodeRequest([]byte("not json")); err == nil {
		t.Fatal("decodeRequest() expected error")
	}
}

func TestResponseWireFormat(t *testing.T) {
	raw, err := encodeResponse(Response{ExitCode: 0, Stdout: "pong\n"})
	if err != nil {
		t.Fatalf("encodeResponse error = %v", err)
	}
	if string(raw) != `{"exit_code":0,"stdout":"pong\n"}` {
		t.Fatalf("encodeResponse = %s", raw)
	}
	resp, err := decodeResponse(raw)
	if err != nil || resp.Stdout != "pong\n" {
		t.Fatalf("decodeResponse = %+v, %v", resp, err)
	}
}
