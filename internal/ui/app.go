// Package ui provides the breaktime terminal panel.
// This file contains the main App model which shows the idle dashboard or
// the break in progress, and routes messages using the Bubble Tea
// architecture. All state comes from the daemon.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"breaktime/internal/breaks"
	"breaktime/internal/config"
	"breaktime/internal/engine"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// LayoutMode determines how panes are arranged based on terminal width.
type LayoutMode int

const (
	// LayoutWide shows the reminder and schedule panes side-by-side.
	LayoutWide LayoutMode = iota
	// LayoutNarrow stacks them.
	LayoutNarrow
)

// refreshEvery is how many ticks pass between status refreshes.
const refreshEvery = 30

// AppConfig holds user configuration for the panel.
type AppConfig struct {
	Keys                  *config.KeysConfig
	ConfirmSkip           bool
	NarrowLayoutThreshold int
}

// watchStartedMsg carries the break-state subscription.
type watchStartedMsg struct {
	ch  <-chan bool
	err error
}

// App is the main panel model.
type App struct {
	daemon      Daemon
	styles      *Styles
	config      *AppConfig
	form        *SettingsForm
	breakView   *BreakView
	helpOverlay *HelpOverlay
	help        help.Model

	state   engine.Status
	loaded  bool
	loadErr error

	editing     bool
	showHelp    bool
	confirmSkip bool
	busy        bool // a break call is in flight
	finishing   bool // auto-finish sent for the current break

	layoutMode  LayoutMode
	width       int
	height      int
	toast       string
	toastErr    bool
	toastUntil  time.Time
	ticks       int
	quitting    bool
	lastElapsed time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	watch  <-chan bool
	now    func() time.Time

	keys      GlobalKeyMap
	breakKeys BreakKeyMap
	helpKeys  HelpKeyMap
}

// NewApp creates the panel. Daemon calls start in Init.
func NewApp(d Daemon, styles *Styles, cfg *AppConfig) *App {
	if cfg == nil {
		cfg = &AppConfig{
			Keys:                  &config.KeysConfig{},
			ConfirmSkip:           true,
			NarrowLayoutThreshold: 60,
		}
	}
	if cfg.Keys == nil {
		cfg.Keys = &config.KeysConfig{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := help.New()
	h.Styles.ShortKey = styles.HelpKeyStyle
	h.Styles.ShortDesc = styles.HelpStyle
	h.Styles.FullKey = styles.HelpKeyStyle
	h.Styles.FullDesc = styles.HelpStyle

	return &App{
		daemon:      d,
		styles:      styles,
		config:      cfg,
		form:        NewSettingsForm(styles, NewFormKeyMap(cfg.Keys)),
		breakView:   NewBreakView(styles),
		helpOverlay: NewHelpOverlay(styles),
		help:        h,
		ctx:         ctx,
		cancel:      cancel,
		now:         time.Now,
		keys:        NewGlobalKeyMap(cfg.Keys),
		breakKeys:   NewBreakKeyMap(cfg.Keys),
		helpKeys:    DefaultHelpKeyMap(),
	}
}

// tickMsg is sent periodically for time updates.
type tickMsg time.Time

// tickCmd returns a command that sends a tick every second.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init starts the clock, loads the status and subscribes to break changes.
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(), loadStatusCmd(a.daemon)}
	if w, ok := a.daemon.(BreakWatcher); ok {
		ctx := a.ctx
		cmds = append(cmds, func() tea.Msg {
			ch, err := w.WatchBreakState(ctx)
			return watchStartedMsg{ch: ch, err: err}
		})
	}
	return tea.Batch(cmds...)
}

// Update handles all messages and routes them appropriately.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case statusLoadedMsg:
		if msg.err != nil {
			a.loadErr = msg.err
			a.SetStatus("Daemon: "+msg.err.Error(), true)
			return a, nil
		}
		a.loadErr = nil
		a.loaded = true
		a.state = msg.status
		if !a.state.Break.Active {
			a.finishing = false
		}
		return a, nil

	case watchStartedMsg:
		if msg.err != nil {
			// Periodic refresh still picks up changes.
			return a, nil
		}
		a.watch = msg.ch
		return a, waitBreakStateCmd(a.watch)

	case breakStateMsg:
		return a, tea.Batch(loadStatusCmd(a.daemon), waitBreakStateCmd(a.watch))

	case breakStartedMsg:
		a.busy = false
		if msg.err != nil {
			a.SetStatus("Start break: "+msg.err.Error(), true)
		} else {
			a.SetStatus("Break started", false)
		}
		return a, loadStatusCmd(a.daemon)

	case breakFinishedMsg:
		a.busy = false
		switch {
		case msg.err != nil && msg.auto && errors.Is(msg.err, breaks.ErrInvalidTransition):
			// Finished elsewhere first.
		case msg.err != nil:
			a.SetStatus("Finish break: "+msg.err.Error(), true)
		default:
			a.lastElapsed = msg.elapsed
			a.SetStatus(fmt.Sprintf("Break finished after %s. Nice!", formatDuration(msg.elapsed)), false)
		}
		return a, loadStatusCmd(a.daemon)

	case breakSkippedMsg:
		a.busy = false
		if msg.err != nil {
			a.SetStatus("Skip break: "+msg.err.Error(), true)
		} else {
			a.SetStatus("Break skipped", false)
		}
		return a, loadStatusCmd(a.daemon)

	case settingsSavedMsg:
		if msg.err != nil {
			a.form.SetError(msg.err)
			a.SetStatus("Settings not saved: "+msg.err.Error(), true)
			return a, nil
		}
		a.editing = false
		a.form.SetError(nil)
		status := "Settings saved"
		if !msg.report.NextFire.IsZero() {
			status += ", next reminder " + formatUntil(msg.report.NextFire, a.now())
		}
		a.SetStatus(status, false)
		return a, loadStatusCmd(a.daemon)

	case syncDoneMsg:
		switch {
		case msg.err != nil:
			a.SetStatus("Sync: "+msg.err.Error(), true)
		case !msg.report.SignedIn:
			a.SetStatus("Sign in to sync your schedule", true)
		case msg.report.FetchError != "":
			a.SetStatus("Sync: schedule service unavailable, keeping current schedule", true)
		case msg.report.ConfigChanged:
			a.SetStatus("Synced: schedule updated", false)
		default:
			a.SetStatus("Synced: no changes", false)
		}
		return a, loadStatusCmd(a.daemon)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.updateLayout()
		return a, nil

	case tickMsg:
		return a, a.onTick()

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	if a.editing {
		_, cmd := a.form.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) onTick() tea.Cmd {
	if a.toast != "" && !a.toastUntil.IsZero() && a.now().After(a.toastUntil) {
		a.toast = ""
		a.toastErr = false
		a.toastUntil = time.Time{}
	}

	cmds := []tea.Cmd{tickCmd()}
	a.ticks++
	if a.ticks%refreshEvery == 0 {
		cmds = append(cmds, loadStatusCmd(a.daemon))
	}

	if a.state.Break.Active && !a.finishing && !a.busy {
		_, remaining, _ := breakProgress(a.state.Break.StartedAt, a.state.Schedule.BreakDuration(), a.now())
		if remaining <= 0 {
			a.finishing = true
			a.busy = true
			cmds = append(cmds, finishBreakCmd(a.daemon, true))
		}
	}
	return tea.Batch(cmds...)
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.showHelp {
		if key.Matches(msg, a.helpKeys.Close) {
			a.showHelp = false
		}
		return a, nil
	}

	if a.editing {
		res, cmd := a.form.Update(msg)
		switch res {
		case formCancel:
			a.editing = false
			a.SetStatus("Canceled", false)
			return a, nil
		case formSubmit:
			cfg, err := a.form.Config()
			if err != nil {
				a.form.SetError(err)
				return a, nil
			}
			a.form.SetSaving(true)
			return a, saveSettingsCmd(a.daemon, cfg)
		}
		return a, cmd
	}

	if a.confirmSkip {
		switch msg.String() {
		case "y", "Y", "enter":
			a.confirmSkip = false
			a.busy = true
			return a, skipBreakCmd(a.daemon)
		case "n", "N", "esc":
			a.confirmSkip = false
			a.SetStatus("Canceled", false)
		}
		return a, nil
	}

	switch {
	case key.Matches(msg, a.keys.Quit):
		a.quitting = true
		a.cancel()
		return a, tea.Quit

	case key.Matches(msg, a.keys.Help):
		a.showHelp = true
		return a, nil

	case key.Matches(msg, a.keys.Sync):
		a.SetStatus("Syncing...", false)
		return a, syncCmd(a.daemon)

	case key.Matches(msg, a.keys.Settings):
		if !a.loaded {
			a.SetStatus("Daemon not reachable", true)
			return a, nil
		}
		a.editing = true
		return a, a.form.Load(a.state.Schedule)
	}

	if !a.loaded || a.busy {
		return a, nil
	}

	if a.state.Break.Active {
		switch {
		case key.Matches(msg, a.breakKeys.Finish):
			a.busy = true
			return a, finishBreakCmd(a.daemon, false)
		case key.Matches(msg, a.breakKeys.Skip):
			if a.config.ConfirmSkip {
				a.confirmSkip = true
				return a, nil
			}
			a.busy = true
			return a, skipBreakCmd(a.daemon)
		}
		return a, nil
	}

	if key.Matches(msg, a.breakKeys.Start) {
		a.busy = true
		return a, startBreakCmd(a.daemon)
	}
	return a, nil
}

// updateLayout recalculates sizes based on terminal dimensions.
func (a *App) updateLayout() {
	a.helpOverlay.SetSize(a.width, a.height)
	a.form.SetSize(a.width)
	a.breakView.SetSize(a.width)
	a.help.Width = a.width

	threshold := a.config.NarrowLayoutThreshold
	if threshold <= 0 {
		threshold = 60
	}
	if a.width < threshold {
		a.layoutMode = LayoutNarrow
	} else {
		a.layoutMode = LayoutWide
	}
}

// View renders the entire panel.
func (a *App) View() string {
	if a.quitting {
		return a.renderGoodbye()
	}

	if a.showHelp {
		return a.helpOverlay.View()
	}

	if a.editing {
		return RenderCentered(a.form.View(), a.width, a.height)
	}

	if a.confirmSkip {
		return a.renderConfirmSkip()
	}

	var b strings.Builder
	b.WriteString(a.renderTitleBar())
	b.WriteString("\n")

	switch {
	case !a.loaded:
		b.WriteString(a.renderUnavailable())
	case a.state.Break.Active:
		b.WriteString(a.breakView.View(a.state.Break, a.state.Schedule.BreakDuration(), a.now()))
	default:
		b.WriteString(a.renderDashboard())
	}
	b.WriteString("\n")

	b.WriteString(a.renderHelpBar())
	return b.String()
}

func (a *App) renderUnavailable() string {
	msg := "Connecting to breakd..."
	if a.loadErr != nil {
		msg = "breakd is not reachable. Start it with: breakd"
	}
	return a.styles.PaneStyle.Width(max(a.width-4, 24)).Render(a.styles.StatLabelStyle.Render(msg))
}

func (a *App) renderConfirmSkip() string {
	overlayWidth := 60
	if a.width > 0 {
		overlayWidth = min(60, max(20, a.width-4))
	}

	overlayStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(a.styles.ColorWarning).
		Padding(1, 2).
		Width(overlayWidth)

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(a.styles.ColorWarning).
		MarginBottom(1)

	hintStyle := lipgloss.NewStyle().
		Foreground(a.styles.ColorTextMuted)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Skip this break?"))
	b.WriteString("\n\n")
	b.WriteString(a.styles.InputTextStyle.Render("Skipped breaks are not counted."))
	b.WriteString("\n\n")
	b.WriteString(hintStyle.Render("[y/enter] skip    [n/esc] keep going"))

	return RenderCentered(overlayStyle.Render(b.String()), a.width, a.height)
}

// renderGoodbye shows an exit message.
func (a *App) renderGoodbye() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString("  Take care!\n")
	if a.lastElapsed > 0 {
		b.WriteString(fmt.Sprintf("  Last break: %s\n", formatDuration(a.lastElapsed)))
	}
	b.WriteString("\n")
	return b.String()
}

// renderTitleBar creates the top title bar with the break state and date.
func (a *App) renderTitleBar() string {
	title := a.styles.TitleStyle.Render(" breaktime ")

	var state string
	switch {
	case !a.loaded:
	case a.state.Break.Active:
		_, remaining, _ := breakProgress(a.state.Break.StartedAt, a.state.Schedule.BreakDuration(), a.now())
		state = a.styles.BreakTitleStyle.Render("▶ break " + clockFormat(max(remaining, 0)))
	case a.state.Reminding:
		state = a.styles.RemindingStyle.Render("● reminders on")
	default:
		state = a.styles.PausedStyle.Render("○ paused")
	}

	date := a.styles.DateStyle.Render(a.now().Format("Mon Jan 2 · 15:04"))

	used := lipgloss.Width(title) + lipgloss.Width(state) + lipgloss.Width(date)
	spacer := max(a.width-used-4, 2)
	left := strings.Repeat(" ", spacer/2)
	right := strings.Repeat(" ", spacer-spacer/2)

	return title + "  " + left + state + right + date
}

// renderHelpBar shows the toast if any, otherwise key hints.
func (a *App) renderHelpBar() string {
	if a.toast != "" {
		if a.toastErr {
			return a.styles.ErrorStyle.Render(a.toast)
		}
		return a.styles.StatusStyle.Render(a.toast)
	}
	if a.state.Break.Active {
		return a.help.View(breakKeys{global: a.keys, breaks: a.breakKeys})
	}
	return a.help.View(dashboardKeys{global: a.keys, breaks: a.breakKeys})
}

// SetStatus sets a toast message to display to the user.
func (a *App) SetStatus(msg string, isErr bool) {
	a.toast = msg
	a.toastErr = isErr
	ttl := 5 * time.Second
	if isErr {
		ttl = 8 * time.Second
	}
	a.toastUntil = a.now().Add(ttl)
}

// Run starts the Bubble Tea program against a daemon.
func Run(d Daemon, styles *Styles, cfg *AppConfig) error {
	app := NewApp(d, styles, cfg)
	defer app.cancel()
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
