// Package ui provides the breaktime terminal panel.
// This file contains tea.Cmd factories that wrap daemon calls. These
// commands run the calls asynchronously to keep the Bubble Tea event loop
// responsive. Each command returns a message type defined in messages.go.
package ui

import (
	"context"
	"time"

	"breaktime/internal/engine"
	"breaktime/internal/ipc"
	"breaktime/internal/schedule"

	tea "github.com/charmbracelet/bubbletea"
)

// callTimeout bounds one daemon call; syncs may wait on the remote.
const callTimeout = 60 * time.Second

// Daemon is the daemon interface the panel drives.
type Daemon interface {
	Status(ctx context.Context) (engine.Status, error)
	StartBreak(ctx context.Context) error
	FinishBreak(ctx context.Context) (time.Duration, error)
	SkipBreak(ctx context.Context) error
	SaveSettings(ctx context.Context, cfg schedule.Config) (ipc.Report, error)
	SyncNow(ctx context.Context) (ipc.Report, error)
}

// BreakWatcher is implemented by daemons that announce break transitions.
type BreakWatcher interface {
	WatchBreakState(ctx context.Context) (<-chan bool, error)
}

var (
	_ Daemon       = (*ipc.Client)(nil)
	_ BreakWatcher = (*ipc.Client)(nil)
)

// =============================================================================
// Status Commands
// =============================================================================

// loadStatusCmd returns a command that fetches a daemon snapshot.
func loadStatusCmd(d Daemon) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		st, err := d.Status(ctx)
		return statusLoadedMsg{status: st, err: err}
	}
}

// waitBreakStateCmd waits for the next break transition on ch.
func waitBreakStateCmd(ch <-chan bool) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		active, ok := <-ch
		if !ok {
			return nil
		}
		return breakStateMsg{active: active}
	}
}

// =============================================================================
// Break Commands
// =============================================================================

// startBreakCmd returns a command that starts a manual break.
func startBreakCmd(d Daemon) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		return breakStartedMsg{err: d.StartBreak(ctx)}
	}
}

// finishBreakCmd returns a command that finishes the active break.
func finishBreakCmd(d Daemon, auto bool) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		elapsed, err := d.FinishBreak(ctx)
		return breakFinishedMsg{elapsed: elapsed, auto: auto, err: err}
	}
}

// skipBreakCmd returns a command that skips the active break.
func skipBreakCmd(d Daemon) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		return breakSkippedMsg{err: d.SkipBreak(ctx)}
	}
}

// =============================================================================
// Schedule Commands
// =============================================================================

// saveSettingsCmd returns a command that replaces the schedule.
func saveSettingsCmd(d Daemon, cfg schedule.Config) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		rep, err := d.SaveSettings(ctx, cfg)
		return settingsSavedMsg{report: rep, err: err}
	}
}

// syncCmd returns a command that runs a sync.
func syncCmd(d Daemon) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		rep, err := d.SyncNow(ctx)
		return syncDoneMsg{report: rep, err: err}
	}
}
