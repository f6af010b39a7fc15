package main

import (
	"io"
	"log/slog"

	"app-activate/internal/sessionlog"
)

// installLogger routes slog to w at level and keeps warnings and errors in
// ring for the status command.
func installLogger(w io.Writer, level *slog.LevelVar, ring *sessionlog.Ring) {
	base := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	var callback sessionlog.EntryCallback
	if ring != nil {
		callback = ring.Add
	}
	slog.SetDefault(slog.New(sessionlog.NewTeeHandler(base, slog.LevelWarn, callback)))
}
