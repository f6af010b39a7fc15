package chord

import (
	"errors"
	"time"

	"app-activate/internal/hotkeys"
	"app-activate/internal/keyspec"
)

var errRefused = errors.New("refused by OS")

// fakeFacility mirrors hotkeys.Manager semantics: monotonic ids and
// case-insensitive key names.
type fakeFacility struct {
	known      map[string]bool
	nextID     hotkeys.ID
	active     map[hotkeys.ID]keyspec.Spec
	failReg    map[string]error
	failUnreg  map[string]int // remaining failures per folded key
	registers  int
	unregCalls int
}

func newFakeFacility(keys ...string) *fakeFacility {
	known := map[string]bool{}
	for _, k := range keys {
		known[keyspec.Spec(k).Fold()] = true
	}
	return &fakeFacility{
		known:     known,
		active:    map[hotkeys.ID]keyspec.Spec{},
		failReg:   map[string]error{},
		failUnreg: map[string]int{},
	}
}

func (f *fakeFacility) Known(spec keyspec.Spec) bool {
	return f.known[spec.Fold()]
}

func (f *fakeFacility) Register(spec keyspec.Spec) (hotkeys.ID, error) {
	f.registers++
	if err := f.failReg[spec.Fold()]; err != nil {
		return 0, err
	}
	f.nextID++
	f.active[f.nextID] = spec
	return f.nextID, nil
}

func (f *fakeFacility) Unregister(id hotkeys.ID) error {
	f.unregCalls++
	spec, ok := f.active[id]
	if !ok {
		return hotkeys.ErrNotRegistered
	}
	if n := f.failUnreg[spec.Fold()]; n > 0 {
		f.failUnreg[spec.Fold()] = n - 1
		return errRefused
	}
	delete(f.active, id)
	return nil
}

// idFor returns the live id registered for spec.
func (f *fakeFacility) idFor(spec keyspec.Spec) (hotkeys.ID, bool) {
	for id, s := range f.active {
		if s.Equal(spec) {
			return id, true
		}
	}
	return 0, false
}

func (f *fakeFacility) activeSpecs() map[string]bool {
	out := map[string]bool{}
	for _, s := range f.active {
		out[s.Fold()] = true
	}
	return out
}

type fakeLauncher struct {
	launched []string
	err      error
}

func (l *fakeLauncher) Launch(target string) error {
	if l.err != nil {
		return l.err
	}
	l.launched = append(l.launched, target)
	return nil
}

type auditEntry struct {
	ts     time.Time
	target string
}

type fakeAuditor struct {
	entries []auditEntry
	err     error
}

func (a *fakeAuditor) Record(ts time.Time, target string) error {
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, auditEntry{ts: ts, target: target})
	return nil
}

// fakeClock is advanced explicitly by tests.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }
