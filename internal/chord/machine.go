// Package chord implements the leader-key state machine: which keys the
// hotkey facility must watch, how key and timeout events move the machine
// between Waiting and AwaitingSecondKey, and when a launch fires.
//
// A Machine is not safe for concurrent use. The host loop owns it and hands
// it one notification at a time.
package chord

import (
	"errors"
	"log/slog"
	"time"

	"app-activate/internal/hotkeys"
	"app-activate/internal/keyspec"
)

// Facility is the process-wide hotkey registrar.
type Facility interface {
	Register(spec keyspec.Spec) (hotkeys.ID, error)
	Unregister(id hotkeys.ID) error
	Known(spec keyspec.Spec) bool
}

// Launcher starts a target detached from this process.
type Launcher interface {
	Launch(target string) error
}

// Auditor records completed launches.
type Auditor interface {
	Record(ts time.Time, target string) error
}

// Option configures a Machine.
type Option func(*Machine)

// WithAuditor records every successful launch through a.
func WithAuditor(a Auditor) Option {
	return func(m *Machine) { m.auditor = a }
}

// WithClock replaces time.Now for the timestamps of key events.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// Machine is the chord state machine. It owns every registration it makes
// through its Facility.
type Machine struct {
	facility Facility
	launcher Launcher
	auditor  Auditor
	now      func() time.Time

	table      table
	configured bool
	generation uint64
	leaderID   hotkeys.ID
	hasLeader  bool

	state  State
	leaked map[hotkeys.ID]keyspec.Spec
	closed bool
}

// New returns an unconfigured machine. Nothing is registered until the first
// Apply.
func New(facility Facility, launcher Launcher, opts ...Option) *Machine {
	m := &Machine{
		facility: facility,
		launcher: launcher,
		now:      time.Now,
		leaked:   map[hotkeys.ID]keyspec.Spec{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle processes one hotkey notification. Released events and events that
// match nothing are ignored. The returned error reports side-effect failures
// only; the state has already been updated when it is returned.
func (m *Machine) Handle(ev hotkeys.Event) (Control, error) {
	if m.closed || ev.State != hotkeys.Pressed {
		return m.Control(), nil
	}
	isLeader := m.hasLeader && ev.ID == m.leaderID

	switch m.state.Mode {
	case Waiting:
		if !isLeader {
			return m.Control(), nil
		}
		err := m.enter(Primary, m.now())
		return m.Control(), err

	case AwaitingSecondKey:
		if isLeader {
			if !m.table.hasSecondary() {
				slog.Debug("[chord] leader pressed again without a secondary set, ignoring")
				return m.Control(), nil
			}
			err := m.swap(m.now())
			return m.Control(), err
		}
		binding, ok := m.state.Registered[ev.ID]
		if !ok {
			slog.Debug("[chord] ignoring unbound key", "id", ev.ID)
			return m.Control(), nil
		}
		dispatchErr := m.dispatch(binding)
		resetErr := m.reset()
		return m.Control(), errors.Join(dispatchErr, resetErr)
	}
	return m.Control(), nil
}

// Tick resets an expired chord. It is safe to call at any time and any
// number of times: only the first call past the deadline changes state.
func (m *Machine) Tick(now time.Time) (Control, error) {
	if m.state.Mode != AwaitingSecondKey {
		return m.Control(), nil
	}
	if now.Sub(m.state.PressedAt) <= m.table.timeout {
		return m.Control(), nil
	}
	slog.Debug("[chord] chord timed out", "pressedAt", m.state.PressedAt, "timeout", m.table.timeout)
	err := m.reset()
	return m.Control(), err
}

// Control reports how the host should wait for the next notification.
func (m *Machine) Control() Control {
	if m.state.Mode != AwaitingSecondKey {
		return Control{Kind: WaitIndefinitely}
	}
	return Control{Kind: WaitUntil, Deadline: m.state.PressedAt.Add(m.table.timeout)}
}

// State returns a copy of the current state.
func (m *Machine) State() State {
	return m.state.clone()
}

// Snapshot is a read-only view of the machine for status reporting.
type Snapshot struct {
	Leader    keyspec.Spec
	LeaderID  hotkeys.ID
	Timeout   time.Duration
	Primary   AppSet
	Secondary AppSet
	State     State
	Leaked    []LeakedKey
	// Generation counts successful Apply calls.
	Generation uint64
}

// Snapshot returns the applied table and the current state.
func (m *Machine) Snapshot() Snapshot {
	return Snapshot{
		Leader:    m.table.leader,
		LeaderID:  m.leaderID,
		Timeout:   m.table.timeout,
		Primary:   append(AppSet(nil), m.table.sets[Primary]...),
		Secondary: append(AppSet(nil), m.table.sets[Secondary]...),
		State:     m.State(),
		Leaked:    m.Leaked(),

		Generation: m.generation,
	}
}

// Close abandons any chord and releases the leader. It is idempotent.
func (m *Machine) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	errs := []error{m.reset()}
	if m.hasLeader {
		errs = append(errs, m.unregister(m.leaderID, m.table.leader))
		m.hasLeader = false
	}
	m.retryLeaked()
	return errors.Join(errs...)
}

// enter registers set and starts a chord at now.
func (m *Machine) enter(set SetName, now time.Time) error {
	registered, err := m.registerSet(m.table.sets[set])
	m.state = State{
		Mode:       AwaitingSecondKey,
		PressedAt:  now,
		Active:     set,
		Registered: registered,
	}
	slog.Debug("[chord] awaiting second key", "set", set, "keys", len(registered))
	return err
}

// swap replaces the active set with the other one and refreshes the deadline.
func (m *Machine) swap(now time.Time) error {
	releaseErr := m.releaseSet(m.state.Registered)
	m.state.Registered = nil
	enterErr := m.enter(m.state.Active.other(), now)
	return errors.Join(releaseErr, enterErr)
}

// reset returns to Waiting, releasing every registered second key.
func (m *Machine) reset() error {
	if m.state.Mode == Waiting {
		return nil
	}
	err := m.releaseSet(m.state.Registered)
	m.state = State{Mode: Waiting}
	return err
}
