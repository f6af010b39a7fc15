package ipc

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"net"
	"strings"
	"testing"
)

func TestReadDelimitedFrameWithinLimit(t *testing.T) {
	payload := `{"exit_code":0,"stdout":"ok\n"}` + "\n"
	reader := bufio.NewReaderSize(strings.NewReader(payload), maxResponseBytes+1)

	raw, err := readDelimitedFrame(reader, maxResponseBytes)
	if err != nil {
		t.Fatalf("readDelimitedFrame() error = %v", err)
	}
	if string(raw) != payload {
		t.Fatalf("readDelimitedFrame() = %q, want %q", string(raw), payload)
	}
}

func TestReadDelimitedFrameRejectsOversizedFrame(t *testing.T) {
	for _, limit := range []int{maxRequestBytes, maxResponseBytes} {
		oversized := strings.Repeat("b", limit+1) + "\n"
		reader := bufio.NewReaderSize(strings.NewReader(oversized), limit+1)

		_, err := readDelimitedFrame(reader, limit)
		if err == nil {
			t.Fatalf("readDelimitedFrame(limit=%d) expected size error", limit)
		}
		if !strings.Contains(err.Error(), "exceeds") {
			t.Fatalf("readDelimitedFrame() error = %q, want 'exceeds' message", err.Error())
		}
	}
}

func TestReadDelimitedFrameReturnsEOFOnEmptyInput(t *testing.T) {
	reader := bufio.NewReaderSize(strings.NewReader(""), maxResponseBytes+1)

	_, err := readDelimitedFrame(reader, maxResponseBytes)
	if err != io.EOF {
		t.Fatalf("readDelimitedFrame() error = %v, want io.EOF", err)
	}
}

func TestReadDelimitedFrameAcceptsEOFWithPartialData(t *testing.T) {
	// Data without trailing newline should be returned on EOF.
	payload := `{"command":"ping"}`
	reader := bufio.NewReaderSize(strings.NewReader(payload), maxRequestBytes+1)

	raw, err := readDelimitedFrame(reader, maxRequestBytes)
	if err != nil {
		t.Fatalf("readDelimitedFrame() error = %v, want nil", err)
	}
	if string(raw) != payload {
		t.Fatalf("readDelimitedFrame() = %q, want %q", string(raw), payload)
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "dial op", err: &net.OpError{Op: "dial", Err: errors.New("refused")}, want: true},
		{name: "read op", err: &net.OpError{Op: "read", Err: errors.New("reset")}, want: false},
		{name: "missing socket", err: &fs.PathError{Op: "open", Path: "/x.sock", Err: fs.ErrNotExist}, want: true},
		{name: "other", err: errors.New("invalid response"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConnectionError(tt.err); got != tt.want {
				t.Fatalf("IsConnectionError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
