// Package ui provides the breaktime terminal panel.
// This file defines message types for daemon calls using the Bubble Tea
// command pattern. Every call to the daemon returns one of these messages
// so the event loop never blocks on the bus.
package ui

import (
	"time"

	"breaktime/internal/engine"
	"breaktime/internal/ipc"
)

// statusLoadedMsg is sent when a daemon snapshot arrives.
type statusLoadedMsg struct {
	status engine.Status
	err    error
}

// breakStartedMsg is sent when a manual break start completes.
type breakStartedMsg struct {
	err error
}

// breakFinishedMsg is sent when the active break was finished.
type breakFinishedMsg struct {
	elapsed time.Duration
	auto    bool // countdown ran out
	err     error
}

// breakSkippedMsg is sent when the active break was skipped.
type breakSkippedMsg struct {
	err error
}

// breakStateMsg is sent when the daemon announces a break transition.
type breakStateMsg struct {
	active bool
}

// settingsSavedMsg is sent when a settings save completes.
type settingsSavedMsg struct {
	report ipc.Report
	err    error
}

// syncDoneMsg is sent when a manual sync completes.
type syncDoneMsg struct {
	report ipc.Report
	err    error
}
