package ui

import (
	"fmt"
	"strings"
	"time"

	"breaktime/internal/gate"
	"breaktime/internal/schedule"
	"breaktime/internal/storage"

	"github.com/charmbracelet/lipgloss"
)

// reasonText explains a paused reminder.
func reasonText(reason string) string {
	switch gate.Reason(reason) {
	case gate.ReasonNoSession:
		return "sign in to get reminders"
	case gate.ReasonTrialExpired:
		return "trial expired"
	case gate.ReasonNotWorkDay:
		return "not a work day"
	case gate.ReasonOutsideHours:
		return "outside work hours"
	case gate.ReasonStateUnavailable:
		return "state unavailable"
	default:
		return reason
	}
}

// describeSchedule renders a schedule on one line.
func describeSchedule(cfg schedule.Config) string {
	return fmt.Sprintf("every %d min, %02d:00-%02d:00, %s",
		cfg.IntervalMinutes, cfg.StartHour, cfg.EndHour, schedule.FormatDays(cfg.WorkDays))
}

// formatUntil renders at relative to now: "11:30 (in 42m)".
func formatUntil(at, now time.Time) string {
	d := at.Sub(now).Round(time.Minute)
	clock := at.Local().Format("15:04")
	if at.YearDay() != now.YearDay() || at.Year() != now.Year() {
		clock = at.Local().Format("Mon 15:04")
	}
	if d <= 0 {
		return clock + " (due)"
	}
	return fmt.Sprintf("%s (in %s)", clock, formatDuration(d))
}

// formatDuration renders a duration compactly: "1h05m", "42m", "30s".
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d/time.Second))
	}
	h := int(d / time.Hour)
	m := int(d%time.Hour) / int(time.Minute)
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// renderReminderPane renders the reminder state.
func (a *App) renderReminderPane(width int) string {
	st := a.state
	var b strings.Builder
	b.WriteString(a.styles.PaneTitleStyle.Render("REMINDERS"))
	b.WriteString("\n")

	if st.Reminding {
		b.WriteString(a.styles.RemindingStyle.Render("● active"))
	} else {
		b.WriteString(a.styles.PausedStyle.Render("○ paused: " + reasonText(st.Reason)))
	}
	b.WriteString("\n\n")

	now := a.now()
	b.WriteString(a.stat("Next", func() string {
		if st.NextReminder == nil {
			return "not armed"
		}
		return formatUntil(*st.NextReminder, now)
	}()))
	if st.SnoozedUntil != nil {
		b.WriteString(a.stat("Snoozed until", formatUntil(*st.SnoozedUntil, now)))
	}
	b.WriteString("\n")
	b.WriteString(a.styles.HelpStyle.Render("Press b to take a break now."))

	return a.styles.PaneFocusedStyle.Width(width).Render(b.String())
}

// renderAccountPane renders the schedule and account.
func (a *App) renderAccountPane(width int) string {
	st := a.state
	var b strings.Builder
	b.WriteString(a.styles.PaneTitleStyle.Render("SCHEDULE"))
	b.WriteString("\n")

	b.WriteString(a.stat("Reminders", describeSchedule(st.Schedule)))
	b.WriteString(a.stat("Break length", fmt.Sprintf("%d min", st.Schedule.BreakDurationMinutes)))

	source := a.styles.SyncDisabledStyle.Render("built-in default")
	switch st.ScheduleSource {
	case storage.SourceRemote:
		source = a.styles.SyncRemoteStyle.Render("synced")
	case storage.SourceLocal:
		source = a.styles.SyncLocalStyle.Render("edited here")
	}
	b.WriteString(a.stat("Source", source))
	b.WriteString("\n")

	switch {
	case !st.SignedIn:
		b.WriteString(a.stat("Account", a.styles.SyncDisabledStyle.Render("signed out")))
	case st.Organization != "":
		b.WriteString(a.stat("Account", st.Email))
		b.WriteString(a.stat("Organization", st.Organization))
	default:
		b.WriteString(a.stat("Account", st.Email))
		if st.Pro {
			b.WriteString(a.stat("Plan", "pro"))
		} else {
			b.WriteString(a.stat("Trial", trialText(st.TrialDaysRemaining)))
		}
	}

	return a.styles.PaneStyle.Width(width).Render(b.String())
}

func trialText(days int) string {
	switch days {
	case 0:
		return "expired"
	case 1:
		return "1 day left"
	default:
		return fmt.Sprintf("%d days left", days)
	}
}

func (a *App) stat(label, value string) string {
	return a.styles.StatLabelStyle.Render(fmt.Sprintf("%-14s", label)) + a.styles.StatValueStyle.Render(value) + "\n"
}

// renderDashboard renders the idle view.
func (a *App) renderDashboard() string {
	total := max(a.width-4, 24)
	if a.layoutMode == LayoutNarrow {
		return a.renderReminderPane(total) + "\n" + a.renderAccountPane(total)
	}
	left := total * 45 / 100
	right := total - left - 1
	return lipgloss.JoinHorizontal(lipgloss.Top, a.renderReminderPane(left), " ", a.renderAccountPane(right))
}
