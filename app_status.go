package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"app-activate/internal/chord"
	"app-activate/internal/config"
	"app-activate/internal/hotkeys"
)

// statusReport describes the running launcher for the status command. Must
// be called from the event loop.
func (a *App) statusReport(now time.Time) string {
	cfg := a.getConfigSnapshot()
	snap := a.machine.Snapshot()
	stats := a.statsSnapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (pid %d), up %s\n", appName, version, os.Getpid(), now.Sub(a.startedAt).Round(time.Second))
	fmt.Fprintf(&b, "config:   %s (%s)\n", a.configPath, config.FormatFor(a.configPath))
	fmt.Fprintf(&b, "backend:  %s\n", displayBackend(cfg.Backend))
	fmt.Fprintf(&b, "leader:   %s (id %d), timeout %s\n", snap.Leader, snap.LeaderID, snap.Timeout)
	fmt.Fprintf(&b, "bindings: %d primary, %d secondary\n", len(snap.Primary), len(snap.Secondary))
	fmt.Fprintf(&b, "mode:     %s\n", describeMode(snap, now))
	fmt.Fprintf(&b, "launches: %d ok, %d failed\n", stats.launches, stats.launchFailures)
	b.WriteString("audit:    " + a.describeAudit() + "\n")
	b.WriteString("reloads:  " + describeReloads(stats) + "\n")
	b.WriteString("leaked:   " + describeLeaks(snap.Leaked) + "\n")

	if recent := a.logRing.Format(); recent != "" {
		b.WriteString("\nrecent warnings:\n")
		b.WriteString(recent)
		if !strings.HasSuffix(recent, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func displayBackend(name string) string {
	if strings.TrimSpace(name) == "" {
		return string(hotkeys.DefaultBackend)
	}
	return name
}

func describeMode(snap chord.Snapshot, now time.Time) string {
	st := snap.State
	if st.Mode != chord.AwaitingSecondKey {
		return st.Mode.String()
	}
	left := st.PressedAt.Add(snap.Timeout).Sub(now)
	if left < 0 {
		left = 0
	}
	return fmt.Sprintf("%s (%s set, %d keys, %s left)", st.Mode, st.Active, len(st.Registered), left.Round(time.Millisecond))
}

func (a *App) describeAudit() string {
	if a.recorder == nil {
		return "disabled"
	}
	written, failed := a.recorder.Stats()
	path := ""
	if a.store != nil {
		path = a.store.Path() + " "
	}
	return fmt.Sprintf("%s(%d written, %d failed)", path, written, failed)
}

func describeReloads(stats runStats) string {
	if stats.reloads == 0 {
		return "none"
	}
	outcome := "ok"
	if stats.lastReloadErr != nil {
		outcome = "failed: " + stats.lastReloadErr.Error()
	}
	return fmt.Sprintf("%d, last at %s %s", stats.reloads, stats.lastReloadAt.Format(time.TimeOnly), outcome)
}

func describeLeaks(leaked []chord.LeakedKey) string {
	if len(leaked) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(leaked))
	for _, k := range leaked {
		parts = append(parts, fmt.Sprintf("%s (id %d)", k.Spec, k.ID))
	}
	return strings.Join(parts, ", ")
}
