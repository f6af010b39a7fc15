package sessionlog

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultRingSize is the number of entries the status command reports.
const DefaultRingSize = 32

// Ring is a bounded, concurrency-safe buffer of the most recent entries.
type Ring struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
	dropped int
}

// NewRing returns a Ring holding at most size entries. size <= 0 selects
// DefaultRingSize.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Ring{entries: make([]Entry, size)}
}

// Add stores e, evicting the oldest entry when the ring is full.
func (r *Ring) Add(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		r.dropped++
	}
	r.entries[r.next] = e
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
}

// Entries returns the stored entries, oldest first.
func (r *Ring) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		return append([]Entry(nil), r.entries[:r.next]...)
	}
	out := make([]Entry, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	return append(out, r.entries[:r.next]...)
}

// Dropped returns how many entries were evicted.
func (r *Ring) Dropped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Format renders the entries one per line for the status command.
func (r *Ring) Format() string {
	entries := r.Entries()
	if len(entries) == 0 {
		return ""
	}
	var b strings.Builder
	if dropped := r.Dropped(); dropped > 0 {
		fmt.Fprintf(&b, "(%d older entries dropped)\n", dropped)
	}
	for _, e := range entries {
		fmt.Fprintf(&b, "%s %-5s %s", e.Time.Format(time.TimeOnly), e.Level, e.Message)
		if e.Attrs != "" {
			b.WriteString(" " + e.Attrs)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
