package ui

import (
	"fmt"
	"strings"
	"time"

	"breaktime/internal/storage"

	"github.com/charmbracelet/bubbles/progress"
)

// breakProgress reports how far a break started at started has run.
func breakProgress(started time.Time, length time.Duration, now time.Time) (elapsed, remaining time.Duration, pct float64) {
	elapsed = now.Sub(started)
	if elapsed < 0 || started.IsZero() {
		elapsed = 0
	}
	remaining = length - elapsed
	if length <= 0 {
		return elapsed, remaining, 1
	}
	pct = float64(elapsed) / float64(length)
	return elapsed, remaining, min(pct, 1)
}

// BreakView renders an active break: countdown and progress bar.
type BreakView struct {
	bar    progress.Model
	styles *Styles
	width  int
}

// NewBreakView creates a break view.
func NewBreakView(styles *Styles) *BreakView {
	bar := progress.New(
		progress.WithSolidFill(string(styles.ColorSecondary)),
		progress.WithoutPercentage(),
	)
	return &BreakView{bar: bar, styles: styles}
}

// SetSize sets the view width.
func (v *BreakView) SetSize(width int) {
	v.width = width
	v.bar.Width = max(10, min(60, width-8))
}

var triggerText = map[storage.BreakTrigger]string{
	storage.TriggerReminder: "from a reminder",
	storage.TriggerSnooze:   "after a snooze",
	storage.TriggerManual:   "started by you",
}

// View renders the break.
func (v *BreakView) View(st storage.BreakState, length time.Duration, now time.Time) string {
	elapsed, remaining, pct := breakProgress(st.StartedAt, length, now)

	var b strings.Builder
	b.WriteString(v.styles.BreakTitleStyle.Render("ON A BREAK"))
	if t, ok := triggerText[st.Trigger]; ok {
		b.WriteString(v.styles.StatLabelStyle.Render("  " + t))
	}
	b.WriteString("\n\n")

	if remaining > 0 {
		b.WriteString(v.styles.CountdownStyle.Render(clockFormat(remaining) + " left"))
	} else {
		b.WriteString(v.styles.OvertimeStyle.Render("Done! " + clockFormat(elapsed) + " away from the screen"))
	}
	b.WriteString("\n\n")
	b.WriteString(v.bar.ViewAs(pct))
	b.WriteString("\n\n")
	b.WriteString(v.styles.HelpStyle.Render("Stand up, stretch, look at something far away."))

	width := max(v.width-4, 24)
	return v.styles.PaneFocusedStyle.Width(width).Render(b.String())
}

// clockFormat renders a duration as mm:ss.
func clockFormat(d time.Duration) string {
	d = d.Round(time.Second)
	if d < 0 {
		d = -d
	}
	return fmt.Sprintf("%02d:%02d", int(d/time.Minute), int(d%time.Minute/time.Second))
}

