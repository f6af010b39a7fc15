package main

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"app-activate/internal/audit"
	"app-activate/internal/chord"
	"app-activate/internal/config"
	"app-activate/internal/hotkeys"
	"app-activate/internal/ipc"
	"app-activate/internal/sessionlog"
	"app-activate/internal/singleinstance"
)

// hotkeyFacility is the part of hotkeys.Manager the host uses.
type hotkeyFacility interface {
	chord.Facility
	Events() <-chan hotkeys.Event
	Close() error
}

type ipcServer interface {
	Start() error
	Stop() error
	Address() string
}

// ipcCall carries one control request into the event loop, which owns the
// chord machine.
type ipcCall struct {
	req   ipc.Request
	reply chan ipc.Response
}

// runStats counts what the status command reports. Protected by App.statsMu.
type runStats struct {
	launches       int
	launchFailures int
	reloads        int
	lastReloadAt   time.Time
	lastReloadErr  error
}

// App is the long-running launcher: it owns the hotkey facility, the chord
// machine and every collaborator around them.
//
// The chord machine has no locks. Only the goroutine in run touches it;
// IPC handlers reach it through requests.
type App struct {
	// Runtime context lifecycle. Set while run is looping.
	ctx   context.Context
	ctxMu sync.RWMutex

	configPath string
	logLevel   *slog.LevelVar
	logRing    *sessionlog.Ring
	// pinnedLevel is true when --debug fixed the level; log_level is ignored.
	pinnedLevel bool

	// Configuration of the last successful apply.
	cfgMu sync.RWMutex
	cfg   config.Config

	facility hotkeyFacility
	machine  *chord.Machine
	store    *audit.Store
	recorder auditRecorder
	watcher  *config.Watcher
	server   ipcServer
	lock     *singleinstance.Lock

	configChanged chan struct{}
	requests      chan ipcCall

	startedAt    time.Time
	statsMu      sync.Mutex
	stats        runStats
	shuttingDown atomic.Bool
}

// NewApp creates the launcher service for the config file at configPath.
func NewApp(configPath string, level *slog.LevelVar, ring *sessionlog.Ring, debug bool) *App {
	if level == nil {
		level = new(slog.LevelVar)
	}
	if ring == nil {
		ring = sessionlog.NewRing(sessionlog.DefaultRingSize)
	}
	return &App{
		configPath:    configPath,
		logLevel:      level,
		logRing:       ring,
		pinnedLevel:   debug,
		configChanged: make(chan struct{}, 1),
		requests:      make(chan ipcCall),
	}
}

// notifyConfigChanged queues a reload. Bursts collapse into one pending
// signal.
func (a *App) notifyConfigChanged() {
	select {
	case a.configChanged <- struct{}{}:
	default:
	}
}

// launchCounter counts launch outcomes for the status command.
type launchCounter struct {
	next chord.Launcher
	app  *App
}

func (l launchCounter) Launch(target string) error {
	err := l.next.Launch(target)
	l.app.statsMu.Lock()
	if err != nil {
		l.app.stats.launchFailures++
	} else {
		l.app.stats.launches++
	}
	l.app.statsMu.Unlock()
	return err
}

func (a *App) recordReload(at time.Time, err error) {
	a.statsMu.Lock()
	a.stats.reloads++
	a.stats.lastReloadAt = at
	a.stats.lastReloadErr = err
	a.statsMu.Unlock()
}

func (a *App) statsSnapshot() runStats {
	a.statsMu.Lock()
	defer a.statsMu.Unlock()
	return a.stats
}
