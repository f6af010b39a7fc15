package chord

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"app-activate/internal/hotkeys"
	"app-activate/internal/keyspec"
)

// LeakedKey is a registration the facility refused to release.
type LeakedKey struct {
	ID   hotkeys.ID
	Spec keyspec.Spec
}

// registerSet registers every binding of set except one equal to the leader.
// Failures are logged and skipped; the returned map holds exactly the ids
// that were registered.
func (m *Machine) registerSet(set AppSet) (map[hotkeys.ID]Binding, error) {
	registered := make(map[hotkeys.ID]Binding, len(set))
	var errs []error
	for _, b := range set {
		if b.Spec.Equal(m.table.leader) {
			continue
		}
		id, err := m.facility.Register(b.Spec)
		if err != nil {
			slog.Warn("[chord] failed to register key, skipping", "key", b.Spec, "error", err)
			errs = append(errs, &RegistrationError{Op: "register", Spec: b.Spec, Err: err})
			continue
		}
		registered[id] = b
	}
	return registered, errors.Join(errs...)
}

// releaseSet unregisters every id in registered. Leaks from earlier batches
// are retried first.
func (m *Machine) releaseSet(registered map[hotkeys.ID]Binding) error {
	m.retryLeaked()

	ids := make([]hotkeys.ID, 0, len(registered))
	for id := range registered {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var errs []error
	for _, id := range ids {
		if err := m.unregister(id, registered[id].Spec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// unregister releases one id, retrying once. A second failure records the id
// as leaked and returns an error wrapping ErrHotkeyLeak.
func (m *Machine) unregister(id hotkeys.ID, spec keyspec.Spec) error {
	err := m.facility.Unregister(id)
	if err == nil || errors.Is(err, hotkeys.ErrNotRegistered) {
		return nil
	}
	slog.Warn("[chord] unregister failed, retrying", "id", id, "key", spec, "error", err)

	err = m.facility.Unregister(id)
	if err == nil || errors.Is(err, hotkeys.ErrNotRegistered) {
		return nil
	}
	m.leaked[id] = spec
	slog.Error("[chord] unregister failed twice (resource leak)", "id", id, "key", spec, "error", err)
	return fmt.Errorf("%w: %w", ErrHotkeyLeak, &RegistrationError{Op: "unregister", Spec: spec, ID: id, Err: err})
}

func (m *Machine) retryLeaked() {
	for id, spec := range m.leaked {
		if err := m.facility.Unregister(id); err != nil && !errors.Is(err, hotkeys.ErrNotRegistered) {
			slog.Debug("[chord] leaked key still held", "id", id, "key", spec, "error", err)
			continue
		}
		delete(m.leaked, id)
		slog.Info("[chord] released previously leaked key", "id", id, "key", spec)
	}
}

// Leaked returns the registrations that could not be released, by id.
func (m *Machine) Leaked() []LeakedKey {
	out := make([]LeakedKey, 0, len(m.leaked))
	for id, spec := range m.leaked {
		out = append(out, LeakedKey{ID: id, Spec: spec})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
