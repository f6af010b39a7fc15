package sessionlog

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

// newTestCallback returns a callback that records entries and a getter for them.
func newTestCallback() (EntryCallback, func() []Entry) {
	var mu sync.Mutex
	var entries []Entry

	cb := func(e Entry) {
		mu.Lock()
		defer mu.Unlock()
		entries = append(entries, e)
	}
	get := func() []Entry {
		mu.Lock()
		defer mu.Unlock()
		return append([]Entry(nil), entries...)
	}
	return cb, get
}

func TestTeeHandlerGatesCallbackByLevel(t *testing.T) {
	tests := []struct {
		name     string
		level    slog.Level
		wantTeed bool
	}{
		{name: "debug", level: slog.LevelDebug, wantTeed: false},
		{name: "info", level: slog.LevelInfo, wantTeed: false},
		{name: "warn", level: slog.LevelWarn, wantTeed: true},
		{name: "error", level: slog.LevelError, wantTeed: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			base := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
			cb, get := newTestCallback()
			logger := slog.New(NewTeeHandler(base, slog.LevelWarn, cb))

			logger.Log(context.Background(), tt.level, "[hotkey] register failed", "key", "Alt+E")

			if !strings.Contains(buf.String(), "register failed") {
				t.Fatalf("base handler output = %q, want message", buf.String())
			}
			got := get()
			if !tt.wantTeed {
				if len(got) != 0 {
					t.Fatalf("callback entries = %+v, want none", got)
				}
				return
			}
			if len(got) != 1 {
				t.Fatalf("callback entries = %d, want 1", len(got))
			}
			if got[0].Level != tt.level || got[0].Message != "[hotkey] register failed" || got[0].Attrs != "key=Alt+E" {
				t.Fatalf("entry = %+v", got[0])
			}
		})
	}
}

func TestTeeHandlerEnabledDefersToBase(t *testing.T) {
	base := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError})
	h := NewTeeHandler(base, slog.LevelDebug, nil)

	if h.Enabled(context.Background(), slog.LevelWarn) {
		t.Fatal("Enabled(Warn) = true, want base handler's answer")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("Enabled(Error) = false")
	}
}

func TestTeeHandlerGroupsAndAttrs(t *testing.T) {
	cb, get := newTestCallback()
	logger := slog.New(NewTeeHandler(slog.NewTextHandler(io.Discard, nil), slog.LevelWarn, cb))
	logger = logger.With("component", "chord").WithGroup("reload").WithGroup("leader")

	logger.Warn("failed", "error", errors.New("busy"))

	got := get()
	if len(got) != 1 {
		t.Fatalf("callback entries = %d, want 1", len(got))
	}
	if got[0].Group != "reload.leader" {
		t.Fatalf("Group = %q, want reload.leader", got[0].Group)
	}
	if got[0].Attrs != "component=chord error=busy" {
		t.Fatalf("Attrs = %q", got[0].Attrs)
	}
}

func TestTeeHandlerEmptyGroupAndAttrsReturnReceiver(t *testing.T) {
	h := NewTeeHandler(slog.NewTextHandler(io.Discard, nil), slog.LevelWarn, nil)
	if h.WithGroup("") != slog.Handler(h) {
		t.Error("WithGroup(\"\") should return the receiver")
	}
	if h.WithAttrs(nil) != slog.Handler(h) {
		t.Error("WithAttrs(nil) should return the receiver")
	}
}

type errorHandler struct{ err error }

func (h *errorHandler) Enabled(context.Context, slog.Level) bool  { return true }
func (h *errorHandler) Handle(context.Context, slog.Record) error { return h.err }
func (h *errorHandler) WithAttrs([]slog.Attr) slog.Handler        { return h }
func (h *errorHandler) WithGroup(string) slog.Handler             { return h }

func TestTeeHandlerBaseErrorStillTees(t *testing.T) {
	baseErr := errors.New("disk full")
	cb, get := newTestCallback()
	h := NewTeeHandler(&errorHandler{err: baseErr}, slog.LevelWarn, cb)

	err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelError, "boom", 0))
	if !errors.Is(err, baseErr) {
		t.Fatalf("Handle() error = %v, want base error", err)
	}
	if len(get()) != 1 {
		t.Fatal("callback not invoked when base handler failed")
	}
}

func TestTeeHandlerCallbackPanicWritesToStderr(t *testing.T) {
	origStderr := os.Stderr
	readPipe, writePipe, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() error = %v", err)
	}
	os.Stderr = writePipe
	t.Cleanup(func() {
		os.Stderr = origStderr
		_ = readPipe.Close()
		_ = writePipe.Close()
	})

	h := NewTeeHandler(slog.NewTextHandler(io.Discard, nil), slog.LevelInfo, func(Entry) {
		panic("stderr panic test")
	})
	if handleErr := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "test", 0)); handleErr != nil {
		t.Fatalf("Handle() error = %v, want nil", handleErr)
	}
	_ = writePipe.Close()

	stderrBytes, readErr := io.ReadAll(readPipe)
	if readErr != nil {
		t.Fatalf("io.ReadAll(stderr) error = %v", readErr)
	}
	if !strings.Contains(string(stderrBytes), "[session-log] callback panicked: stderr panic test") {
		t.Fatalf("stderr output = %q, want panic diagnostic prefix", stderrBytes)
	}
}
