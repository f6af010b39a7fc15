package chord

import (
	"errors"
	"log/slog"
	"sort"
	"strings"

	"app-activate/internal/keyspec"
)

// Apply installs settings on a running machine.
//
// Invalid settings return a *ConfigError and change nothing. Otherwise any
// in-flight chord is abandoned, the old leader is released and the new one
// registered. When the new leader cannot be registered the previous leader
// is restored where possible, the previous table is kept and a
// *RegistrationError is returned. A leak while releasing the old leader does
// not stop the reconcile; it is returned wrapped in ErrHotkeyLeak alongside a
// successfully applied table.
func (m *Machine) Apply(s Settings) error {
	if m.closed {
		return ErrClosed
	}
	next, err := m.derive(s)
	if err != nil {
		return err
	}

	var leaks []error
	if err := m.reset(); err != nil {
		leaks = append(leaks, err)
	}

	prev := m.table
	hadLeader := m.hasLeader
	if m.hasLeader {
		if err := m.unregister(m.leaderID, prev.leader); err != nil {
			leaks = append(leaks, err)
		}
		m.hasLeader = false
	}

	id, err := m.facility.Register(next.leader)
	if err != nil {
		regErr := &RegistrationError{Op: "register", Spec: next.leader, Err: err}
		slog.Error("[chord] failed to register leader key, keeping previous configuration",
			"key", next.leader, "error", err)
		if hadLeader {
			m.restoreLeader(prev.leader)
		}
		return errors.Join(append([]error{regErr}, leaks...)...)
	}

	m.leaderID = id
	m.hasLeader = true
	m.table = next
	m.configured = true
	m.generation++
	slog.Info("[chord] configuration applied",
		"leader", next.leader,
		"primary", len(next.sets[Primary]),
		"secondary", len(next.sets[Secondary]),
		"timeout", next.timeout)
	return errors.Join(leaks...)
}

// Configured reports whether an Apply has succeeded.
func (m *Machine) Configured() bool {
	return m.configured
}

// Generation counts successful Apply calls. A caller compares it before and
// after Apply to tell a leak-only error from a rejected configuration.
func (m *Machine) Generation() uint64 {
	return m.generation
}

func (m *Machine) restoreLeader(spec keyspec.Spec) {
	id, err := m.facility.Register(spec)
	if err != nil {
		slog.Error("[chord] failed to restore previous leader key, no leader is registered",
			"key", spec, "error", err)
		return
	}
	m.leaderID = id
	m.hasLeader = true
}

// derive validates s and builds its table without touching the facility's
// registrations.
func (m *Machine) derive(s Settings) (table, error) {
	var errs []error

	leaderLabel := strings.TrimSpace(s.Leader)
	leader := keyspec.Normalize(leaderLabel)
	switch {
	case leaderLabel == "":
		errs = append(errs, &ConfigError{Field: "leader_key", Err: ErrEmptyLeader})
	case !m.facility.Known(leader):
		errs = append(errs, &ConfigError{Field: "leader_key", Label: leaderLabel, Err: ErrUnknownKey})
	}
	if s.Timeout <= 0 {
		errs = append(errs, &ConfigError{Field: "timeout_ms", Label: s.Timeout.String(), Err: ErrInvalidTimeout})
	}
	if len(s.Primary) == 0 {
		errs = append(errs, &ConfigError{Field: "applications", Err: ErrNoApplications})
	}

	primary, err := m.deriveSet("applications", s.Primary)
	errs = append(errs, err)
	secondary, err := m.deriveSet("secondary_applications", s.Secondary)
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return table{}, err
	}
	return table{
		leader:  leader,
		sets:    [2]AppSet{Primary: primary, Secondary: secondary},
		timeout: s.Timeout,
	}, nil
}

func (m *Machine) deriveSet(field string, labels map[string]string) (AppSet, error) {
	keys := make([]string, 0, len(labels))
	for label := range labels {
		keys = append(keys, label)
	}
	sort.Strings(keys)

	var errs []error
	set := make(AppSet, 0, len(keys))
	seen := make(map[string]string, len(keys))
	for _, label := range keys {
		target := strings.TrimSpace(labels[label])
		trimmed := strings.TrimSpace(label)
		if trimmed == "" {
			errs = append(errs, &ConfigError{Field: field, Label: label, Err: ErrEmptyLabel})
			continue
		}
		spec := keyspec.Normalize(trimmed)
		if !m.facility.Known(spec) {
			errs = append(errs, &ConfigError{Field: field, Label: label, Err: ErrUnknownKey})
			continue
		}
		if first, dup := seen[spec.Fold()]; dup {
			errs = append(errs, &ConfigError{Field: field, Label: first + ", " + label, Err: ErrDuplicateKey})
			continue
		}
		if target == "" {
			errs = append(errs, &ConfigError{Field: field, Label: label, Err: ErrEmptyTarget})
			continue
		}
		seen[spec.Fold()] = label
		set = append(set, Binding{Label: trimmed, Spec: spec, Target: target})
	}
	return set, errors.Join(errs...)
}
