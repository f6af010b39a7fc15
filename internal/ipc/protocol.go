package ipc

import (
	"encoding/json"
	"log/slog"
	"os"
	"strings"

	"app-activate/internal/userutil"
)

// EnvAddress overrides the control channel address.
const EnvAddress = "APP_ACTIVATE_SOCKET"

// Commands understood by the running launcher.
const (
	CommandPing   = "ping"
	CommandStatus = "status"
	CommandReload = "reload"
)

// Request is a single control command.
type Request struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// Response is the reply to one Request.
type Response struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
}

// Executor handles a request and returns a response.
type Executor interface {
	Execute(req Request) Response
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(req Request) Response

func (f ExecutorFunc) Execute(req Request) Response { return f(req) }

// DefaultAddress returns the address to use. If APP_ACTIVATE_SOCKET is set
// and passes validation, its value is used; otherwise a per-user default is
// constructed from the current username.
func DefaultAddress() string {
	if v, ok := trustedAddressFromEnv(); ok {
		return v
	}
	return defaultAddress(userutil.SanitizeUsername(userutil.CurrentUsername()))
}

func trustedAddressFromEnv() (string, bool) {
	value := strings.TrimSpace(os.Getenv(EnvAddress))
	if value == "" {
		return "", false
	}
	if !validAddress(value) {
		slog.Warn("[ipc] "+EnvAddress+" rejected: value does not match allowed pattern", "value", value)
		return "", false
	}
	return value, true
}

func encodeRequest(req Request) ([]byte, error) {
	return json.Marshal(req)
}

func decodeRequest(raw []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return Request{}, err
	}
	req.Command = strings.TrimSpace(req.Command)
	if req.Args == nil {
		req.Args = []string{}
	}
	return req, nil
}

func encodeResponse(resp Response) ([]byte, error) {
	return json.Marshal(resp)
}

func decodeResponse(raw []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}
