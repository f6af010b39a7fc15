package sessionlog

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestRingKeepsMostRecent(t *testing.T) {
	r := NewRing(3)
	for i := range 5 {
		r.Add(Entry{Message: fmt.Sprintf("m%d", i)})
	}

	got := r.Entries()
	if len(got) != 3 || got[0].Message != "m2" || got[2].Message != "m4" {
		t.Fatalf("Entries() = %+v, want m2..m4", got)
	}
	if r.Dropped() != 2 {
		t.Fatalf("Dropped() = %d, want 2", r.Dropped())
	}
}

func TestRingPartiallyFilled(t *testing.T) {
	r := NewRing(0)
	r.Add(Entry{Message: "only"})

	got := r.Entries()
	if len(got) != 1 || got[0].Message != "only" {
		t.Fatalf("Entries() = %+v", got)
	}
	if r.Dropped() != 0 {
		t.Fatalf("Dropped() = %d, want 0", r.Dropped())
	}
}

func TestRingExactlyFull(t *testing.T) {
	r := NewRing(2)
	r.Add(Entry{Message: "a"})
	r.Add(Entry{Message: "b"})

	got := r.Entries()
	if len(got) != 2 || got[0].Message != "a" || got[1].Message != "b" {
		t.Fatalf("Entries() = %+v, want [a b]", got)
	}
}

func TestRingFormat(t *testing.T) {
	r := NewRing(1)
	if r.Format() != "" {
		t.Fatal("Format() of empty ring should be empty")
	}
	at := time.Date(2024, 3, 1, 9, 5, 7, 0, time.UTC)
	r.Add(Entry{Time: at, Level: slog.LevelWarn, Message: "first"})
	r.Add(Entry{Time: at, Level: slog.LevelError, Message: "[chord] hotkey leak", Attrs: "id=4"})

	got := r.Format()
	want := "(1 older entries dropped)\n09:05:07 ERROR [chord] hotkey leak id=4\n"
	if got != want {
		t.Fatalf("Format() = %q, want %q", got, want)
	}
}

func TestRingAsTeeCallback(t *testing.T) {
	r := NewRing(8)
	logger := slog.New(NewTeeHandler(slog.NewTextHandler(io.Discard, nil), slog.LevelWarn, r.Add))

	var wg sync.WaitGroup
	for i := range 4 {
		wg.Go(func() { logger.Warn("concurrent", "n", i) })
	}
	wg.Wait()
	logger.Info("not teed")

	if got := len(r.Entries()); got != 4 {
		t.Fatalf("Entries() = %d, want 4", got)
	}
	if !strings.Contains(r.Format(), "concurrent n=") {
		t.Fatalf("Format() = %q", r.Format())
	}
}
