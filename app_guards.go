package main

import "errors"

var (
	errNotStarted = errors.New("launcher is not started")
	errNotRunning = errors.New("launcher event loop is not running")
	errLoopBusy   = errors.New("launcher event loop did not answer in time")
)

func (a *App) requireStarted() error {
	if a.machine == nil || a.facility == nil {
		return errNotStarted
	}
	return nil
}
