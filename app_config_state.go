package main

import (
	"log/slog"
	"maps"
	"strings"

	"app-activate/internal/chord"
	"app-activate/internal/config"
)

// getConfigSnapshot returns a deep-copied config protected by cfgMu.
// All read access to App.cfg should go through this helper.
func (a *App) getConfigSnapshot() config.Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return config.Clone(a.cfg)
}

// setConfigSnapshot stores a deep-copied config protected by cfgMu.
// All write access to App.cfg should go through this helper.
func (a *App) setConfigSnapshot(cfg config.Config) {
	a.cfgMu.Lock()
	a.cfg = config.Clone(cfg)
	a.cfgMu.Unlock()
}

func settingsFromConfig(cfg config.Config) chord.Settings {
	return chord.Settings{
		Leader:    cfg.LeaderKey,
		Primary:   maps.Clone(cfg.Applications),
		Secondary: maps.Clone(cfg.SecondaryApplications),
		Timeout:   cfg.Timeout(),
	}
}

// reload re-reads the config file and applies it. A file that fails to load
// or a table the machine rejects keeps the running configuration. Must be
// called from the event loop.
func (a *App) reload(reason string) error {
	cfg, err := loadConfigFn(a.configPath)
	if err != nil {
		a.recordReload(nowFn(), err)
		slog.Warn("[app] reload failed; keeping previous configuration",
			"reason", reason, "path", a.configPath, "error", err)
		return err
	}
	return a.applyConfig(cfg, reason)
}

func (a *App) applyConfig(cfg config.Config, reason string) error {
	previous := a.getConfigSnapshot()
	before := a.machine.Generation()
	err := a.machine.Apply(settingsFromConfig(cfg))
	if a.machine.Generation() == before {
		a.recordReload(nowFn(), err)
		slog.Warn("[app] configuration rejected; keeping previous configuration",
			"reason", reason, "path", a.configPath, "error", err)
		return err
	}
	if err != nil {
		slog.Warn("[app] configuration applied with leaked hotkeys", "error", err)
	}

	a.setConfigSnapshot(cfg)
	a.applyLogLevel(cfg.LogLevel)
	if !strings.EqualFold(strings.TrimSpace(cfg.Backend), strings.TrimSpace(previous.Backend)) {
		slog.Warn("[app] backend change takes effect after restart", "running", previous.Backend, "configured", cfg.Backend)
	}
	if cfg.DB != previous.DB {
		slog.Warn("[app] audit database change takes effect after restart", "configured", cfg.DB)
	}
	a.recordReload(nowFn(), nil)
	slog.Info("[app] configuration reloaded",
		"reason", reason,
		"leader", cfg.LeaderKey,
		"primary", len(cfg.Applications),
		"secondary", len(cfg.SecondaryApplications),
	)
	return nil
}

// applyLogLevel follows log_level unless --debug pinned the level.
func (a *App) applyLogLevel(name string) {
	if a.pinnedLevel {
		return
	}
	level, err := config.ParseLogLevel(name)
	if err != nil {
		slog.Warn("[app] ignoring invalid log_level", "value", name, "error", err)
		return
	}
	a.logLevel.Set(level)
}
