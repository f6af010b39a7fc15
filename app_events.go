package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"app-activate/internal/chord"
	"app-activate/internal/ipc"
)

// ipcLoopTimeout bounds how long a control request waits for the event loop.
const ipcLoopTimeout = 5 * time.Second

// notifyReloadSignalFn subscribes ch to SIGHUP. Windows never delivers it.
var notifyReloadSignalFn = func(ch chan<- os.Signal) (stop func()) {
	signal.Notify(ch, syscall.SIGHUP)
	return func() { signal.Stop(ch) }
}

// run is the event loop. It is the only goroutine that touches the chord
// machine, and it returns when ctx is cancelled.
func (a *App) run(ctx context.Context) error {
	if err := a.requireStarted(); err != nil {
		return err
	}
	a.setRuntimeContext(ctx)
	defer a.setRuntimeContext(nil)

	hup := make(chan os.Signal, 1)
	stopHUP := notifyReloadSignalFn(hup)
	defer stopHUP()

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	events := a.facility.Events()
	ctrl := a.machine.Control()
	for {
		// A pending config change is applied before the next key event.
		select {
		case <-a.configChanged:
			ctrl = a.step("config-change", a.reloadStep("file changed"))
			continue
		default:
		}

		timerC := armTimer(timer, ctrl, nowFn())
		select {
		case <-ctx.Done():
			slog.Info("[app] stopping", "cause", context.Cause(ctx))
			return nil
		case <-a.configChanged:
			ctrl = a.step("config-change", a.reloadStep("file changed"))
		case <-hup:
			ctrl = a.step("sighup", a.reloadStep("SIGHUP"))
		case ev, ok := <-events:
			if !ok {
				return facilityStopped(a.facility)
			}
			slog.Debug("[app] hotkey event", "id", ev.ID, "state", ev.State)
			ctrl = a.step("hotkey", func() (chord.Control, error) { return a.machine.Handle(ev) })
		case now := <-timerC:
			ctrl = a.step("timeout", func() (chord.Control, error) { return a.machine.Tick(now) })
		case call := <-a.requests:
			a.serveCall(call)
			ctrl = a.machine.Control()
		}
	}
}

// facilityStopped explains a closed event stream, wrapping the backend's
// own failure when it reports one.
func facilityStopped(f hotkeyFacility) error {
	if r, ok := f.(interface{ Err() error }); ok {
		if err := r.Err(); err != nil {
			return fmt.Errorf("hotkey backend stopped delivering events: %w", err)
		}
	}
	return errors.New("hotkey backend stopped delivering events")
}

// armTimer schedules the chord deadline. A deadline already in the past
// fires almost immediately so the machine still observes it.
func armTimer(timer *time.Timer, ctrl chord.Control, now time.Time) <-chan time.Time {
	timer.Stop()
	if ctrl.Kind != chord.WaitUntil {
		return nil
	}
	wait := ctrl.Deadline.Sub(now)
	if wait <= 0 {
		wait = time.Millisecond
	}
	timer.Reset(wait)
	return timer.C
}

func (a *App) reloadStep(reason string) func() (chord.Control, error) {
	return func() (chord.Control, error) {
		// reload logs its own outcome.
		_ = a.reload(reason)
		return a.machine.Control(), nil
	}
}

// step runs one machine transition. A panic is logged and the loop carries
// on from the machine's current control.
func (a *App) step(event string, fn func() (chord.Control, error)) (ctrl chord.Control) {
	defer func() {
		if recoverEventPanic(event, recover()) {
			ctrl = a.machine.Control()
		}
	}()
	ctrl, err := fn()
	if err != nil {
		logMachineError(event, err)
	}
	return ctrl
}

func logMachineError(event string, err error) {
	var (
		launchErr *chord.LaunchError
		auditErr  *chord.AuditError
		regErr    *chord.RegistrationError
	)
	switch {
	case errors.As(err, &launchErr):
		slog.Warn("[app] launch failed", "target", launchErr.Target, "error", launchErr.Err)
	case errors.As(err, &auditErr):
		slog.Warn("[app] launch not recorded", "error", err)
	case errors.Is(err, chord.ErrHotkeyLeak):
		slog.Warn("[app] hotkey could not be released", "event", event, "error", err)
	case errors.As(err, &regErr):
		slog.Warn("[app] hotkey registration failed", "event", event, "error", err)
	default:
		slog.Error("[app] event handling failed", "event", event, "error", err)
	}
}

// Execute answers control requests. It runs on IPC connection goroutines and
// forwards anything that touches the machine to the event loop.
func (a *App) Execute(req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandPing:
		return ipc.Response{Stdout: "pong\n"}
	case ipc.CommandStatus, ipc.CommandReload:
		return a.forward(req)
	default:
		return ipc.Response{ExitCode: 2, Stderr: fmt.Sprintf("unknown command %q\n", req.Command)}
	}
}

func (a *App) forward(req ipc.Request) ipc.Response {
	ctx := a.runtimeContext()
	if ctx == nil {
		return errorResponse(errNotRunning)
	}
	call := ipcCall{req: req, reply: make(chan ipc.Response, 1)}
	timer := time.NewTimer(ipcLoopTimeout)
	defer timer.Stop()

	select {
	case a.requests <- call:
	case <-ctx.Done():
		return errorResponse(errNotRunning)
	case <-timer.C:
		return errorResponse(errLoopBusy)
	}
	select {
	case resp := <-call.reply:
		return resp
	case <-timer.C:
		return errorResponse(errLoopBusy)
	}
}

// serveCall always replies, even when serving panics.
func (a *App) serveCall(call ipcCall) {
	resp := errorResponse(errors.New("internal error"))
	defer func() { call.reply <- resp }()
	defer func() { recoverEventPanic("ipc:"+call.req.Command, recover()) }()
	resp = a.serve(call.req)
}

func (a *App) serve(req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		return ipc.Response{Stdout: a.statusReport(nowFn())}
	case ipc.CommandReload:
		if err := a.reload("control request"); err != nil {
			return ipc.Response{ExitCode: 1, Stderr: fmt.Sprintf("reload failed: %v\n", err)}
		}
		return ipc.Response{Stdout: "configuration reloaded\n"}
	default:
		return ipc.Response{ExitCode: 2, Stderr: fmt.Sprintf("unknown command %q\n", req.Command)}
	}
}

func errorResponse(err error) ipc.Response {
	return ipc.Response{ExitCode: 1, Stderr: err.Error() + "\n"}
}
