package ui

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"breaktime/internal/config"
	"breaktime/internal/engine"
	"breaktime/internal/ipc"
	"breaktime/internal/schedule"
	"breaktime/internal/storage"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// testNow is the fixed panel clock: Tuesday mid-morning.
var testNow = time.Date(2024, 6, 4, 10, 30, 0, 0, time.UTC)

// setupTest prepares the test environment for deterministic rendering.
// It disables colors so assertions can match plain text.
func setupTest(t *testing.T) {
	t.Helper()
	lipgloss.SetColorProfile(termenv.Ascii)
}

// createTestStyles creates a default Styles instance for testing.
func createTestStyles() *Styles {
	return NewStylesFromTheme(&config.ThemeConfig{})
}

// fakeDaemon records calls and returns canned results.
type fakeDaemon struct {
	mu sync.Mutex

	status    engine.Status
	statusErr error
	startErr  error
	finishErr error
	skipErr   error
	saveErr   error
	syncErr   error
	elapsed   time.Duration
	report    ipc.Report

	calls []string
	saved []schedule.Config
}

func (f *fakeDaemon) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeDaemon) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeDaemon) Status(context.Context) (engine.Status, error) {
	f.record("status")
	return f.status, f.statusErr
}

func (f *fakeDaemon) StartBreak(context.Context) error {
	f.record("start")
	return f.startErr
}

func (f *fakeDaemon) FinishBreak(context.Context) (time.Duration, error) {
	f.record("finish")
	return f.elapsed, f.finishErr
}

func (f *fakeDaemon) SkipBreak(context.Context) error {
	f.record("skip")
	return f.skipErr
}

func (f *fakeDaemon) SaveSettings(_ context.Context, cfg schedule.Config) (ipc.Report, error) {
	f.record("save")
	f.mu.Lock()
	f.saved = append(f.saved, cfg)
	f.mu.Unlock()
	return f.report, f.saveErr
}

func (f *fakeDaemon) SyncNow(context.Context) (ipc.Report, error) {
	f.record("sync")
	return f.report, f.syncErr
}

// idleStatus is a signed-in snapshot with reminders on.
func idleStatus() engine.Status {
	next := testNow.Add(30 * time.Minute)
	return engine.Status{
		Now:                testNow,
		SignedIn:           true,
		Email:              "ada@example.com",
		Schedule:           schedule.Default(),
		ScheduleSource:     storage.SourceRemote,
		NextReminder:       &next,
		Reminding:          true,
		TrialDaysRemaining: 5,
	}
}

// activeStatus is idleStatus with a break started a minute ago.
func activeStatus() engine.Status {
	st := idleStatus()
	st.Break = storage.BreakState{
		Active:    true,
		StartedAt: testNow.Add(-time.Minute),
		Trigger:   storage.TriggerReminder,
		UpdatedAt: testNow.Add(-time.Minute),
	}
	return st
}

// newTestApp builds a loaded App at 100x40 on the fixed clock.
func newTestApp(t *testing.T, d *fakeDaemon) *App {
	t.Helper()
	setupTest(t)
	app := NewApp(d, createTestStyles(), &AppConfig{
		Keys:                  &config.KeysConfig{},
		ConfirmSkip:           true,
		NarrowLayoutThreshold: 80,
	})
	t.Cleanup(app.cancel)
	app.now = func() time.Time { return testNow }
	app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	app.Update(statusLoadedMsg{status: d.status})
	return app
}

// keyPress builds a key message.
func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func contains(s, substr string) bool {
	return strings.Contains(s, substr)
}
