package chord

import "log/slog"

// dispatch launches b.Target and records the launch. Neither failure
// affects the chord state; the caller resets regardless.
func (m *Machine) dispatch(b Binding) error {
	if err := m.launcher.Launch(b.Target); err != nil {
		slog.Warn("[chord] launch failed", "key", b.Label, "target", b.Target, "error", err)
		return &LaunchError{Target: b.Target, Err: err}
	}
	slog.Info("[chord] launched", "key", b.Label, "target", b.Target)

	if m.auditor == nil {
		return nil
	}
	if err := m.auditor.Record(m.now(), b.Target); err != nil {
		slog.Warn("[chord] failed to record launch", "target", b.Target, "error", err)
		return &AuditError{Target: b.Target, Err: err}
	}
	return nil
}
