package hotkeys

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"app-activate/internal/keyspec"
)

// eventBufferSize bounds the queue between backend callbacks and the host
// loop. A chord needs at most a handful of events per second; overflow means
// the consumer is stuck and events are dropped with a warning.
const eventBufferSize = 64

// backend is the platform capture mechanism behind Manager.
// register must not call emit synchronously while holding its own locks.
type backend interface {
	known(spec keyspec.Spec) bool
	register(id ID, spec keyspec.Spec, emit func(Event)) error
	unregister(id ID) error
	close() error
}

// failureReporter is implemented by backends whose capture can stop on its
// own, such as a keyboard device that disappears.
type failureReporter interface {
	onFailure(fail func(error))
}

// newBackendFn is a test seam.
var newBackendFn = newBackend

// Manager owns every global hotkey registration of the process.
// Only one Manager should exist per process because the underlying OS hooks
// are process-wide.
type Manager struct {
	mu      sync.Mutex
	backend backend
	nextID  ID
	active  map[ID]keyspec.Spec
	events  chan Event
	closed  bool

	// emitMu orders sends on events against fail closing it.
	emitMu  sync.RWMutex
	stopped bool
	err     error
}

// NewManager creates a manager on the requested backend.
func NewManager(kind Backend) (*Manager, error) {
	b, err := newBackendFn(kind)
	if err != nil {
		return nil, err
	}
	return newManagerWithBackend(b), nil
}

func newManagerWithBackend(b backend) *Manager {
	m := &Manager{
		backend: b,
		active:  map[ID]keyspec.Spec{},
		events:  make(chan Event, eventBufferSize),
	}
	if fr, ok := b.(failureReporter); ok {
		fr.onFailure(m.fail)
	}
	return m
}

// Events returns the channel that receives key notifications for every
// registered hotkey. It is closed only when the backend stops capturing on
// its own; Err then reports why.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// Known reports whether spec can be registered on this backend.
func (m *Manager) Known(spec keyspec.Spec) bool {
	return m.backend.known(spec)
}

// Register grabs spec and returns the ID that its events will carry.
func (m *Manager) Register(spec keyspec.Spec) (ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	if !m.backend.known(spec) {
		return 0, fmt.Errorf("%w: %q", ErrUnknownKey, spec)
	}

	m.nextID++
	id := m.nextID
	if err := m.backend.register(id, spec, m.emit); err != nil {
		return 0, fmt.Errorf("register hotkey %q failed: %w", spec, err)
	}
	m.active[id] = spec
	slog.Debug("[hotkey] registered", "id", id, "key", spec)
	return id, nil
}

// Unregister releases the grab held by id. The id stays reserved when the
// backend refuses, so the caller may retry.
func (m *Manager) Unregister(id ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	spec, ok := m.active[id]
	if !ok {
		return fmt.Errorf("%w: id=%d", ErrNotRegistered, id)
	}
	if err := m.backend.unregister(id); err != nil {
		return fmt.Errorf("unregister hotkey %q (id=%d) failed: %w", spec, id, err)
	}
	delete(m.active, id)
	slog.Debug("[hotkey] unregistered", "id", id, "key", spec)
	return nil
}

// Active returns the live registrations ordered by ID.
func (m *Manager) Active() []Registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Registration, 0, len(m.active))
	for id, spec := range m.active {
		out = append(out, Registration{ID: id, Spec: spec})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Registration is one live grab.
type Registration struct {
	ID   ID
	Spec keyspec.Spec
}

// Close releases every remaining registration and shuts the backend down.
// It is idempotent.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	for id, spec := range m.active {
		if err := m.backend.unregister(id); err != nil {
			slog.Error("[hotkey] unregister on close failed (resource leak)",
				"id", id, "key", spec, "error", err)
			errs = append(errs, fmt.Errorf("unregister %q (id=%d): %w", spec, id, err))
			continue
		}
		delete(m.active, id)
	}
	if err := m.backend.close(); err != nil {
		errs = append(errs, fmt.Errorf("close backend: %w", err))
	}
	return errors.Join(errs...)
}

// Err returns the failure that closed Events, or nil.
func (m *Manager) Err() error {
	m.emitMu.RLock()
	defer m.emitMu.RUnlock()
	return m.err
}

// fail closes Events once. Later events are discarded.
func (m *Manager) fail(err error) {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()
	if m.stopped {
		return
	}
	m.stopped = true
	m.err = err
	close(m.events)
	slog.Error("[hotkey] key capture stopped", "error", err)
}

// emit is handed to backends. It never blocks: a full queue drops the event.
func (m *Manager) emit(ev Event) {
	m.emitMu.RLock()
	defer m.emitMu.RUnlock()
	if m.stopped {
		return
	}
	select {
	case m.events <- ev:
	default:
		slog.Warn("[hotkey] event queue full, dropping event", "id", ev.ID, "state", ev.State)
	}
}
