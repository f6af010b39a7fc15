package main

import (
	"log/slog"
	"runtime/debug"
)

// recoverEventPanic logs a panic raised while the event loop handled one
// event. The loop keeps running with whatever state the machine reports.
func recoverEventPanic(event string, recovered any) bool {
	if recovered != nil {
		slog.Error("[DEBUG-PANIC] event loop recovered from panic",
			"event", event,
			"panic", recovered,
			"stack", string(debug.Stack()),
		)
		return true
	}
	return false
}
