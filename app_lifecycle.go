package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"app-activate/internal/audit"
	"app-activate/internal/chord"
	"app-activate/internal/config"
	"app-activate/internal/hotkeys"
	"app-activate/internal/ipc"
	"app-activate/internal/launcher"
	"app-activate/internal/singleinstance"
)

var (
	tryLockFn          = singleinstance.TryLock
	loadConfigFn       = config.Load
	watchConfigFn      = config.Watch
	openAuditStoreFn   = audit.Open
	newAuditRecorderFn = func(ctx context.Context, store *audit.Store) auditRecorder { return audit.NewRecorder(ctx, store) }
	newHotkeysFn       = func(kind hotkeys.Backend) (hotkeyFacility, error) { return hotkeys.NewManager(kind) }
	newLauncherFn      = func() chord.Launcher { return launcher.New() }
	newIPCServerFn     = func(address string, executor ipc.Executor) ipcServer { return ipc.NewServer(address, executor) }
	nowFn              = time.Now
)

// auditRecorder is the part of audit.Recorder the host uses.
type auditRecorder interface {
	chord.Auditor
	Stats() (written, failed int64)
	Close() error
}

const shutdownWaitTimeout = 10 * time.Second

// startup acquires every resource the event loop needs. On error the caller
// must still call shutdown to release what was acquired.
func (a *App) startup(ctx context.Context) error {
	a.startedAt = nowFn()

	lock, err := tryLockFn(singleinstance.DefaultName())
	if err != nil {
		if errors.Is(err, singleinstance.ErrAlreadyRunning) {
			return fmt.Errorf("another app-activate is already running: %w", err)
		}
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	a.lock = lock

	cfg, err := loadConfigFn(a.configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", a.configPath, err)
	}
	a.applyLogLevel(cfg.LogLevel)

	kind, err := hotkeys.ParseBackend(cfg.Backend)
	if err != nil {
		return err
	}
	facility, err := newHotkeysFn(kind)
	if err != nil {
		return fmt.Errorf("start hotkey backend %s: %w", kind, err)
	}
	a.facility = facility

	var opts []chord.Option
	if rec := a.startAudit(ctx, cfg); rec != nil {
		opts = append(opts, chord.WithAuditor(rec))
	}
	a.machine = chord.New(a.facility, launchCounter{next: newLauncherFn(), app: a}, opts...)

	if err := a.machine.Apply(settingsFromConfig(cfg)); err != nil {
		if !a.machine.Configured() {
			return fmt.Errorf("apply config %s: %w", a.configPath, err)
		}
		slog.Warn("[app] configuration applied with leaked hotkeys", "error", err)
	}
	a.setConfigSnapshot(cfg)
	slog.Info("[app] leader key registered",
		"leader", cfg.LeaderKey,
		"backend", kind,
		"primary", len(cfg.Applications),
		"secondary", len(cfg.SecondaryApplications),
		"timeout", cfg.Timeout(),
	)

	watcher, err := watchConfigFn(ctx, a.configPath, a.notifyConfigChanged)
	if err != nil {
		slog.Warn("[app] config watcher unavailable; use reload to pick up edits", "path", a.configPath, "error", err)
	} else {
		a.watcher = watcher
	}

	server := newIPCServerFn("", ipc.ExecutorFunc(a.Execute))
	if err := server.Start(); err != nil {
		slog.Warn("[app] control socket unavailable; status and reload are disabled", "error", err)
	} else {
		a.server = server
	}
	return nil
}

// startAudit opens the launch log. Auditing is optional: any failure leaves
// the launcher running without it.
func (a *App) startAudit(ctx context.Context, cfg config.Config) chord.Auditor {
	path, err := cfg.ResolveDB(a.configPath)
	if err != nil {
		slog.Warn("[app] invalid audit database path; launches are not recorded", "error", err)
		return nil
	}
	if path == "" {
		slog.Debug("[app] audit database disabled")
		return nil
	}
	store, err := openAuditStoreFn(path)
	if err != nil {
		slog.Warn("[app] cannot open audit database; launches are not recorded", "path", path, "error", err)
		return nil
	}
	a.store = store
	a.recorder = newAuditRecorderFn(ctx, store)
	slog.Debug("[app] audit database opened", "path", path)
	return a.recorder
}

// shutdown releases resources in reverse order of acquisition. It is safe to
// call after a partial startup and more than once.
func (a *App) shutdown() {
	if a.shuttingDown.Swap(true) {
		return
	}
	if a.server != nil {
		if err := a.server.Stop(); err != nil {
			slog.Warn("[app] stop control socket", "error", err)
		}
	}
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			slog.Warn("[app] stop config watcher", "error", err)
		}
	}
	if a.machine != nil {
		if err := a.machine.Close(); err != nil {
			slog.Warn("[app] release hotkeys", "error", err)
		}
	}
	if a.facility != nil {
		if err := a.facility.Close(); err != nil {
			slog.Warn("[app] stop hotkey backend", "error", err)
		}
	}
	if a.recorder != nil {
		if !waitWithTimeout(func() { _ = a.recorder.Close() }, shutdownWaitTimeout) {
			slog.Warn("[app] audit writer did not flush in time", "timeout", shutdownWaitTimeout)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Warn("[app] close audit database", "error", err)
		}
	}
	if a.lock != nil {
		if err := a.lock.Release(); err != nil {
			slog.Warn("[app] release instance lock", "error", err)
		}
	}
	slog.Debug("[app] shutdown complete")
}

func waitWithTimeout(waitFn func(), timeout time.Duration) bool {
	// The waiting goroutine may outlive timeout when waitFn blocks; this is
	// only used while the process is exiting.
	done := make(chan struct{})
	go func() {
		waitFn()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}
